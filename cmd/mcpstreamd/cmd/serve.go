package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	memorystore "github.com/streamrelay/mcpstream/internal/adapter/outbound/eventstore/memory"
	sqlitestore "github.com/streamrelay/mcpstream/internal/adapter/outbound/eventstore/sqlite"
	"github.com/streamrelay/mcpstream/internal/config"
	"github.com/streamrelay/mcpstream/internal/httpserver"
	"github.com/streamrelay/mcpstream/internal/session"
	"github.com/streamrelay/mcpstream/internal/telemetry"
	"github.com/streamrelay/mcpstream/internal/transport"
	"github.com/streamrelay/mcpstream/pkg/eventstore"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streamable HTTP transport server",
	Long: `Start mcpstreamd's streamable HTTP transport server.

Examples:
  # Start with config file settings
  mcpstreamd serve

  # Start with a specific config file
  mcpstreamd --config /path/to/mcpstream.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := buildEventStore(cfg.EventStore)
	if err != nil {
		return fmt.Errorf("failed to build event store: %w", err)
	}
	defer closeStore()

	tp, err := telemetry.NewTracerProvider(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to start tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	reg := httpserver.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	keepAlive, err := cfg.Transport.KeepAliveDuration()
	if err != nil {
		return fmt.Errorf("transport.keep_alive_interval: %w", err)
	}
	sessionTimeout, err := cfg.Transport.SessionTimeoutDuration()
	if err != nil {
		return fmt.Errorf("transport.session_timeout: %w", err)
	}

	var idGen session.IDGenerator
	if !cfg.Transport.Stateless {
		idGen = session.GenerateID
	}

	t := transport.New(transport.Options{
		SessionIDGenerator: idGen,
		Metrics:            metrics,
		OnSessionInitialized: func(sessionID string) {
			metrics.ActiveSessions.Inc()
			logger.Info("session initialized", "session_id", sessionID)
		},
		EnableJSONResponse:        cfg.Transport.EnableJSONResponse,
		EventStore:                store,
		KeepAliveInterval:         keepAlive,
		SessionTimeout:            sessionTimeout,
		SupportedProtocolVersions: cfg.Transport.SupportedProtocolVersions,
		Logger:                    logger,
		OnError: func(err error) {
			logger.Error("transport error", "error", err)
		},
		OnClose: func() {
			metrics.ActiveSessions.Dec()
			logger.Info("transport closed")
		},
	})
	if err := t.Start(); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	defer t.Close()

	handler := httpserver.NewHandler(t, cfg.Server.Path, reg, metrics, logger)
	srv := httpserver.New(cfg.Server.HTTPAddr, handler, logger)

	logger.Info("mcpstreamd listening", "addr", cfg.Server.HTTPAddr, "path", cfg.Server.Path)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("mcpstreamd stopped")
	return nil
}

// buildEventStore selects the SSE resumability backend named in cfg,
// returning a cleanup func that closes it during shutdown.
func buildEventStore(cfg config.EventStoreConfig) (eventstore.Store, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := sqlitestore.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s := memorystore.New()
		return s, func() { _ = s.Close() }, nil
	}
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// info for unrecognized values, matching the teacher's own helper.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
