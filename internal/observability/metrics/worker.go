package metrics

import (
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

func (m *Metrics) StartFile() {
	m.processInFlight.Inc()
}

func (m *Metrics) FinishFile(status domain.ProcessingStatus, duration time.Duration) {
	m.processInFlight.Dec()

	if status == "" {
		status = domain.ProcessingError
	}
	m.processTotal.WithLabelValues(m.service, string(status)).Inc()
	m.processDuration.WithLabelValues(m.service, string(status)).Observe(duration.Seconds())
}
