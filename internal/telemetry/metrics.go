// Package telemetry wires the mcpstream server's Prometheus metrics and
// OpenTelemetry tracing, following the same promauto-registration style
// as the teacher's internal/adapter/inbound/http/metrics.go.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus series the transport records (SPEC_FULL.md
// "Metrics" section). Pass a single instance to the HTTP adapter and the
// transport's callback hooks.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	ActiveStreams      prometheus.Gauge
	SSEFramesTotal     *prometheus.CounterVec
	KeepAlivesTotal    prometheus.Counter
	EventStoreAppended prometheus.Counter
}

// NewMetrics creates and registers every series with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpstream",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled by the streamable transport",
			},
			[]string{"method", "status"}, // method=POST/GET/DELETE, status=ok/error
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcpstream",
				Name:      "active_sessions",
				Help:      "Number of sessions currently initialized",
			},
		),
		ActiveStreams: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mcpstream",
				Name:      "active_streams",
				Help:      "Number of open SSE or pending JSON response streams",
			},
		),
		SSEFramesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpstream",
				Name:      "sse_frames_total",
				Help:      "Total SSE frames written",
			},
			[]string{"stream_kind"}, // stream_kind=standalone/post
		),
		KeepAlivesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcpstream",
				Name:      "keepalives_total",
				Help:      "Total keep-alive comments written to open SSE streams",
			},
		),
		EventStoreAppended: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "mcpstream",
				Name:      "event_store_events_total",
				Help:      "Total events appended to the configured event store",
			},
		),
	}
}

// StatusLabel converts an HTTP status code to the "ok"/"error" label
// value used by RequestsTotal, matching the teacher's statusToLabel.
func StatusLabel(code int) string {
	if code >= 200 && code < 400 {
		return "ok"
	}
	return "error"
}
