package metrics

import (
	"strconv"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

func (m *Metrics) ObserveParse(provenance domain.Provenance, err error, duration time.Duration) {
	outcome := "success"
	kind := "none"
	if err != nil {
		outcome = "error"
		kind = "unknown"
		if k := domain.KindOf(err); k != nil {
			kind = k.Error()
		}
	}
	prov := string(provenance)
	if prov == "" {
		prov = "none"
	}
	m.parseTotal.WithLabelValues(m.service, prov, outcome, kind).Inc()
	m.parseDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *Metrics) ObserveOCR(statusCode int, err error) {
	status := "transport_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode/100) + "xx"
	} else if err == nil {
		status = "unknown"
	}
	m.ocrRequestTotal.WithLabelValues(m.service, status).Inc()
}
