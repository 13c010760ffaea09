package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamrelay/mcpstream/internal/httpadapter"
	"github.com/streamrelay/mcpstream/internal/telemetry"
	"github.com/streamrelay/mcpstream/internal/transport"
)

// NewHandler builds the composite net/http.Handler serving t at path,
// wrapped with the same middleware ordering the teacher uses
// (Metrics -> RequestID -> Handler, outermost first), plus /health and
// /metrics endpoints and OPTIONS preflight passthrough (SPEC_FULL.md
// item 5).
func NewHandler(t *transport.Transport, path string, reg *prometheus.Registry, metrics *telemetry.Metrics, logger *slog.Logger) http.Handler {
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := httpadapter.NewRequest(r)
		resp := httpadapter.NewResponse(w, r)
		t.HandleRequest(req, resp)
	})

	handler := http.Handler(mcpHandler)
	handler = CORSPreflightMiddleware()(handler)
	handler = RequestIDMiddleware(logger)(handler)
	handler = MetricsMiddleware(metrics)(handler)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	mux.Handle("/health", healthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// NewRegistry builds a Prometheus registry pre-populated with the Go
// runtime and process collectors, matching the teacher's Start method.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Server wraps http.Server with the graceful shutdown sequence the
// teacher's HTTPTransport.Start/shutdown implement: run in a goroutine,
// select on ctx.Done() versus a server error, then Shutdown with a fixed
// grace period.
type Server struct {
	inner  *http.Server
	logger *slog.Logger
}

// New constructs a Server listening on addr and serving handler.
func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		inner:  &http.Server{Addr: addr, Handler: handler},
		logger: logger,
	}
}

// Run blocks until ctx is cancelled or the server fails to start,
// gracefully draining in-flight requests (and, transitively, open SSE
// streams once the caller also calls Transport.Close) before returning.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.inner.Addr)
		if err := s.inner.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.inner.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}
