package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterName mirrors tracerName; this is a separate OTel metrics pipeline
// from the Prometheus series in metrics.go, following the teacher's
// go.mod which already lists both stdout exporters.
const meterName = "github.com/streamrelay/mcpstream/internal/transport"

// NewMeterProvider wires an OpenTelemetry SDK meter provider exporting
// periodic snapshots to w via stdoutmetric. Callers must call Shutdown
// during graceful shutdown.
func NewMeterProvider(w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// SessionUptimeRecorder observes wall-clock session age through the OTel
// metrics pipeline, independent of the Prometheus gauges above: a second,
// lower-cardinality signal meant for a local stdout trace of server
// lifetime rather than a scrape target.
type SessionUptimeRecorder struct {
	gauge metric.Float64ObservableGauge
}

// NewSessionUptimeRecorder registers an observable gauge that reports the
// number of seconds since started. The recorder has no way to unregister
// the gauge; it reports for as long as the meter provider runs.
func NewSessionUptimeRecorder(started time.Time) (*SessionUptimeRecorder, error) {
	meter := otel.Meter(meterName)
	r := &SessionUptimeRecorder{}
	gauge, err := meter.Float64ObservableGauge(
		"mcpstream.session.uptime_seconds",
		metric.WithDescription("Seconds elapsed since the current session was initialized"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(time.Since(started).Seconds())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	r.gauge = gauge
	return r, nil
}
