// Package httpserver assembles the mcpstream transport into a concrete
// net/http.Handler and http.Server, following the same
// middleware-chain-plus-mux shape as the teacher's
// internal/adapter/inbound/http.HTTPTransport, adapted to a single
// transport instance instead of a multi-tenant proxy.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/streamrelay/mcpstream/internal/ctxkey"
	"github.com/streamrelay/mcpstream/internal/telemetry"
)

// RequestIDMiddleware extracts or generates an X-Request-ID, enriches the
// logger with it, and stores both in the request context, mirroring the
// teacher's RequestIDMiddleware.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)
			ctx := context.WithValue(r.Context(), ctxkey.LoggerKey{}, enriched)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context, falling
// back to slog.Default() if none was set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// statusRecorder wraps http.ResponseWriter to capture the status code,
// the same pattern the teacher uses in its own metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush delegates to the underlying ResponseWriter, required for SSE
// connections to work through the metrics middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware records mcpstream_requests_total{method,status} for
// every request except /metrics and /health.
func MetricsMiddleware(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			m.RequestsTotal.WithLabelValues(r.Method, telemetry.StatusLabel(wrapped.status)).Inc()
		})
	}
}

// CORSPreflightMiddleware answers OPTIONS requests directly, ahead of the
// transport. SPEC_FULL.md keeps CORS/auth/TLS out of C6 entirely
// (spec.md §1 non-goals); this only stops preflight requests from
// reaching the state machine as an unsupported method, it does not
// enforce or reflect any Origin allow-list.
func CORSPreflightMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.Header().Set("Allow", "GET, POST, DELETE, OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
