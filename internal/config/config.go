// Package config provides configuration types for the mcpstream server.
//
// The schema mirrors the teacher's OSS configuration philosophy: a single
// YAML file plus environment overrides, validated with go-playground's
// validator before use, defaults applied so a bare "mcpstreamd serve"
// with no config file at all still starts.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for cmd/mcpstreamd.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Transport configures the streamable HTTP transport itself
	// (spec.md §6 "Construction parameters").
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`

	// EventStore selects and configures the SSE resumability backend.
	EventStore EventStoreConfig `yaml:"event_store" mapstructure:"event_store"`

	// DevMode enables verbose logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server. HTTP only; put a reverse
// proxy in front for TLS.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g. "127.0.0.1:8080",
	// "0.0.0.0:8080"). Defaults to "127.0.0.1:8080" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// Path is the single HTTP path the transport is mounted at.
	// Defaults to "/mcp" if empty.
	Path string `yaml:"path" mapstructure:"path" validate:"omitempty,startswith=/"`

	// LogLevel sets the minimum log level. Valid values: "debug",
	// "info", "warn", "error". Defaults to "info". DevMode=true
	// overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// TransportConfig configures the streamable HTTP transport's own
// behavior.
type TransportConfig struct {
	// Stateless disables session id issuance and Mcp-Session-Id
	// validation (spec.md §4.5).
	Stateless bool `yaml:"stateless" mapstructure:"stateless"`

	// EnableJSONResponse selects buffered JSON responses over SSE for
	// POSTs carrying requests (spec.md §4.6.1 case, SPEC_FULL.md
	// response-mode section).
	EnableJSONResponse bool `yaml:"enable_json_response" mapstructure:"enable_json_response"`

	// KeepAliveInterval, e.g. "25s". Empty selects the transport's own
	// 25s default; a negative duration disables keep-alives entirely.
	KeepAliveInterval string `yaml:"keep_alive_interval" mapstructure:"keep_alive_interval" validate:"omitempty"`

	// SessionTimeout, e.g. "30m". Empty disables the idle session
	// timeout (SPEC_FULL.md "SUPPLEMENTED FEATURES" item 3).
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty"`

	// SupportedProtocolVersions is the MCP-Protocol-Version allow-list
	// (SPEC_FULL.md item 1). Empty accepts any (or no) header value.
	SupportedProtocolVersions []string `yaml:"supported_protocol_versions" mapstructure:"supported_protocol_versions"`
}

// EventStoreConfig selects the SSE resumability backend.
type EventStoreConfig struct {
	// Backend is "memory" (default) or "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory sqlite"`

	// DSN is the SQLite data source name, used only when Backend is
	// "sqlite". A bare file path or ":memory:" both work.
	DSN string `yaml:"dsn" mapstructure:"dsn" validate:"omitempty"`
}

// SetDefaults applies sensible default values to the configuration,
// mirroring the teacher's habit of applying defaults before validation
// so a zero-value Config still validates.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/mcp"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.DevMode {
		c.Server.LogLevel = "debug"
	}

	if c.Transport.KeepAliveInterval == "" {
		c.Transport.KeepAliveInterval = "25s"
	}

	if c.EventStore.Backend == "" {
		// Only apply the default when the user hasn't explicitly set
		// it, mirroring the teacher's viper.IsSet guard for booleans
		// that have a meaningful zero value.
		if !viper.IsSet("event_store.backend") {
			c.EventStore.Backend = "memory"
		}
	}
	if c.EventStore.Backend == "sqlite" && c.EventStore.DSN == "" {
		c.EventStore.DSN = "mcpstream-events.db"
	}
}

// WriteYAML marshals the configuration and writes it to path, creating a
// starter file an operator can hand-edit. Unlike the values viper reads
// back in, this goes through yaml.v3 directly so the emitted file uses
// plain block style rather than viper's internal representation.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// KeepAliveDuration parses TransportConfig.KeepAliveInterval, returning 0
// (the transport's own default) when unset.
func (t TransportConfig) KeepAliveDuration() (time.Duration, error) {
	if t.KeepAliveInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(t.KeepAliveInterval)
}

// SessionTimeoutDuration parses TransportConfig.SessionTimeout, returning 0
// (disabled) when unset.
func (t TransportConfig) SessionTimeoutDuration() (time.Duration, error) {
	if t.SessionTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(t.SessionTimeout)
}
