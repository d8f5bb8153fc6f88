package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoice_agent"

// Metrics owns a private registry shared by the HTTP API, the extraction
// pipeline, the updater and the folder worker.
type Metrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	parseTotal      *prometheus.CounterVec
	parseDuration   *prometheus.HistogramVec
	ocrRequestTotal *prometheus.CounterVec

	updateStateTotal  *prometheus.CounterVec
	updateBytesTotal  prometheus.Counter
	updateLastSession prometheus.Gauge
	updateDownloaded  prometheus.Gauge
	updateRatio       prometheus.Gauge

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		service:  service,

		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help: "Number of in-flight HTTP requests.", ConstLabels: constLabels,
		}),

		parseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "extraction", Name: "parse_total",
			Help: "Invoice parse calls by provenance and outcome.",
		}, []string{"service", "provenance", "outcome", "kind"}),
		parseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "extraction", Name: "parse_duration_seconds",
			Help:    "Invoice parse duration in seconds by outcome.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service", "outcome"}),
		ocrRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "extraction", Name: "ocr_requests_total",
			Help: "OCR fallback requests by HTTP status class.",
		}, []string{"service", "status"}),

		updateStateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "update", Name: "state_transitions_total",
			Help: "Update state transitions.",
		}, []string{"service", "state"}),
		updateBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "update", Name: "downloaded_bytes_total",
			Help: "Bytes downloaded by completed update sessions.", ConstLabels: constLabels,
		}),
		updateLastSession: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "update", Name: "last_download_bytes",
			Help: "Size of the most recently completed update download.", ConstLabels: constLabels,
		}),
		updateDownloaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "update", Name: "download_bytes",
			Help: "Bytes received so far by the running update download.", ConstLabels: constLabels,
		}),
		updateRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "update", Name: "download_ratio",
			Help: "Fraction of the running update download received, when its size is known.", ConstLabels: constLabels,
		}),

		processTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "watcher", Name: "files_processed_total",
			Help: "Files processed by the invoice folder worker by status.",
		}, []string{"service", "status"}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "watcher", Name: "file_process_duration_seconds",
			Help: "File processing duration in seconds by status.", Buckets: prometheus.DefBuckets,
		}, []string{"service", "status"}),
		processInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "watcher", Name: "files_in_flight",
			Help: "Number of files currently being processed.", ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.requestTotal, m.requestDuration, m.requestInFlight,
		m.parseTotal, m.parseDuration, m.ocrRequestTotal,
		m.updateStateTotal, m.updateBytesTotal, m.updateLastSession,
		m.updateDownloaded, m.updateRatio,
		m.processTotal, m.processDuration, m.processInFlight,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
