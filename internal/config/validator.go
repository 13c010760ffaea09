package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers mcpstream-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("go_duration", validateGoDuration); err != nil {
		return fmt.Errorf("failed to register go_duration validator: %w", err)
	}
	return nil
}

// validateGoDuration accepts anything time.ParseDuration accepts, plus the
// empty string (handled by the omitempty tag on the field itself).
func validateGoDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDurations(); err != nil {
		return err
	}
	if err := c.validateEventStore(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateDurations() error {
	if c.Transport.KeepAliveInterval != "" {
		if _, err := time.ParseDuration(c.Transport.KeepAliveInterval); err != nil {
			return fmt.Errorf("transport.keep_alive_interval: %w", err)
		}
	}
	if c.Transport.SessionTimeout != "" {
		if _, err := time.ParseDuration(c.Transport.SessionTimeout); err != nil {
			return fmt.Errorf("transport.session_timeout: %w", err)
		}
	}
	return nil
}

// validateEventStore ensures a sqlite backend always carries a DSN, since
// SetDefaults only supplies one when it runs before Validate.
func (c *Config) validateEventStore() error {
	if c.EventStore.Backend == "sqlite" && c.EventStore.DSN == "" {
		return errors.New("event_store.dsn is required when event_store.backend is \"sqlite\"")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "go_duration":
		return fmt.Sprintf("%s must be a valid Go duration (e.g. \"25s\", \"1m\")", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
