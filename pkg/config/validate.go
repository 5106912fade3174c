package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "retention.default_days").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// session.base_path is not required here: a missing base path is a runtime
// condition handled by the orphan directory.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateSession(cfg *SessionConfig) []FieldError {
	var errs []FieldError

	if cfg.DetailLevel < 0 {
		errs = append(errs, FieldError{
			Field:   "session.detail_level",
			Message: "detail level must be non-negative",
		})
	}
	if cfg.FlushThreshold < 0 {
		errs = append(errs, FieldError{
			Field:   "session.flush_threshold",
			Message: "flush threshold must be non-negative",
		})
	}
	if cfg.ExclusiveSequence && !cfg.AddSequenceSubdir {
		errs = append(errs, FieldError{
			Field:   "session.exclusive_sequence",
			Message: "exclusive_sequence requires add_sequence_subdir",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxSizeMB < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.max_size_mb",
			Message: "max size must be non-negative",
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultDays < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.default_days",
			Message: "default days must be positive",
		})
	}

	if _, err := cfg.Location(); err != nil {
		errs = append(errs, FieldError{
			Field:   "retention.timezone",
			Message: err.Error(),
		})
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}

	for i, base := range cfg.Bases {
		if strings.TrimSpace(base) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("retention.bases[%d]", i),
				Message: "base path must not be empty",
			})
		}
	}

	if cfg.WatchOverrides && cfg.OverridesPath == "" {
		errs = append(errs, FieldError{
			Field:   "retention.watch_overrides",
			Message: "watching requires retention.overrides_path",
		})
	}

	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	validDrivers := map[string]bool{"sqlite": true, "sqlite3": true}
	if !validDrivers[cfg.Driver] {
		errs = append(errs, FieldError{
			Field:   "history.driver",
			Message: fmt.Sprintf("invalid driver %q, must be one of: sqlite, sqlite3", cfg.Driver),
		})
	}

	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "database path is required when history is enabled",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q, must be one of: debug, info, warn, error", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q, must be one of: json, text, console", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: fmt.Sprintf("invalid listen address %q: %v", cfg.Metrics.ListenAddress, err),
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
	}

	return errs
}
