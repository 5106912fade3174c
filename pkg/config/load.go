package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Unknown keys are rejected. The configuration is not modified by environment
// variables; use LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	// Apply defaults
	ApplyDefaults(cfg)

	// Validate
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention DAYLOG_SECTION_FIELD (e.g., DAYLOG_SESSION_BASE_PATH).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// parse decodes YAML into a Config pre-set with the defaults that a zero
// value cannot express.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format DAYLOG_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Session overrides
	if val := os.Getenv("DAYLOG_SESSION_BASE_PATH"); val != "" {
		cfg.Session.BasePath = val
	}
	if val := os.Getenv("DAYLOG_SESSION_ADD_SEQUENCE_SUBDIR"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Session.AddSequenceSubdir = b
		}
	}
	if val := os.Getenv("DAYLOG_SESSION_EXCLUSIVE_SEQUENCE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Session.ExclusiveSequence = b
		}
	}
	if val := os.Getenv("DAYLOG_SESSION_DEBUG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Session.Debug = b
		}
	}
	if val := os.Getenv("DAYLOG_SESSION_DETAIL_LEVEL"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Session.DetailLevel = i
		}
	}
	if val := os.Getenv("DAYLOG_SESSION_NO_LOG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Session.NoLog = b
		}
	}
	if val := os.Getenv("DAYLOG_SESSION_CALLER"); val != "" {
		cfg.Session.Caller = val
	}

	// Fallback overrides
	if val := os.Getenv("DAYLOG_FALLBACK_ORPHAN_DIR"); val != "" {
		cfg.Fallback.OrphanDir = val
	}

	// Audit overrides
	if val := os.Getenv("DAYLOG_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv("DAYLOG_AUDIT_MAX_SIZE_MB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.MaxSizeMB = i
		}
	}

	// Retention overrides
	if val := os.Getenv("DAYLOG_RETENTION_DEFAULT_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.DefaultDays = i
		}
	}
	if val := os.Getenv("DAYLOG_RETENTION_OVERRIDES_PATH"); val != "" {
		cfg.Retention.OverridesPath = val
	}
	if val := os.Getenv("DAYLOG_RETENTION_WATCH_OVERRIDES"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Retention.WatchOverrides = b
		}
	}
	if val := os.Getenv("DAYLOG_RETENTION_TIMEZONE"); val != "" {
		cfg.Retention.Timezone = val
	}
	if val := os.Getenv("DAYLOG_RETENTION_SCHEDULE"); val != "" {
		cfg.Retention.Schedule = val
	}
	if val := os.Getenv("DAYLOG_RETENTION_BASES"); val != "" {
		cfg.Retention.Bases = splitList(val)
	}
	if val := os.Getenv("DAYLOG_RETENTION_PRUNE_ON_OPEN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Retention.PruneOnOpen = &b
		}
	}

	// History overrides
	if val := os.Getenv("DAYLOG_HISTORY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.History.Enabled = b
		}
	}
	if val := os.Getenv("DAYLOG_HISTORY_DRIVER"); val != "" {
		cfg.History.Driver = val
	}
	if val := os.Getenv("DAYLOG_HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}

	// Telemetry overrides
	if val := os.Getenv("DAYLOG_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("DAYLOG_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("DAYLOG_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("DAYLOG_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	if val := os.Getenv("DAYLOG_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}

// splitList splits a comma-separated environment value, dropping blanks.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Location resolves the configured timezone. "Local" and "" map to
// time.Local.
func (c RetentionConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
		}
		return loc, nil
	}
}
