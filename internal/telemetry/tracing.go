package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the fixed name under which every span in this repo is
// created (SPEC_FULL.md "Tracing"): mcpstream.post, mcpstream.get,
// mcpstream.delete.
const tracerName = "github.com/streamrelay/mcpstream/internal/transport"

// NewTracerProvider wires an OpenTelemetry SDK trace provider exporting
// to w via stdouttrace, the same exporter family the teacher declares
// in go.mod but never wires into a running pipeline (DESIGN.md records
// this as the one gap this repo closes). Callers must call Shutdown on
// the returned provider during graceful shutdown.
func NewTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName("mcpstream"),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the shared tracer used to instrument POST/GET/DELETE
// handling.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span under the given operation name
// ("mcpstream.post", "mcpstream.get", "mcpstream.delete") tagged with
// session.id and stream.id attributes when non-empty.
func StartSpan(ctx context.Context, operation, sessionID, streamID string) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	if sessionID != "" {
		attrs = append(attrs, attribute.String("session.id", sessionID))
	}
	if streamID != "" {
		attrs = append(attrs, attribute.String("stream.id", streamID))
	}
	return Tracer().Start(ctx, operation, trace.WithAttributes(attrs...))
}
