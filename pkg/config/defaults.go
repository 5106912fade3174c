package config

import (
	"os"
	"path/filepath"
)

// Default values for configuration fields.
const (
	// Session defaults
	DefaultDetailLevel    = 5
	DefaultFlushThreshold = 10000

	// Audit defaults
	DefaultAuditMaxSizeMB = 10

	// Retention defaults
	DefaultRetentionDays     = 30
	DefaultRetentionTimezone = "Local"
	DefaultRetentionSchedule = "0 3 * * *"

	// History defaults
	DefaultHistoryDriver = "sqlite"
	DefaultHistoryPath   = "data/daylog.db"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultPrometheusPath       = "/metrics"
	DefaultMetricsNamespace     = "daylog"
)

// DefaultOrphanDir returns the orphan directory used when none is configured.
func DefaultOrphanDir() string {
	return filepath.Join(os.TempDir(), "daylog", "orphanLog") + string(filepath.Separator)
}

// DefaultAuditPath returns the audit record location used when none is
// configured.
func DefaultAuditPath() string {
	return filepath.Join(os.TempDir(), "daylog", "LoggerLog.txt")
}

// DefaultPruneDurationBuckets returns the default prune duration histogram
// buckets in seconds.
func DefaultPruneDurationBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}
}

// NewDefault returns a Config with every default applied.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Session defaults
	if cfg.Session.DetailLevel == 0 {
		cfg.Session.DetailLevel = DefaultDetailLevel
	}
	if cfg.Session.FlushThreshold == 0 {
		cfg.Session.FlushThreshold = DefaultFlushThreshold
	}

	// Fallback defaults
	if cfg.Fallback.OrphanDir == "" {
		cfg.Fallback.OrphanDir = DefaultOrphanDir()
	}

	// Audit defaults
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath()
	}
	if cfg.Audit.MaxSizeMB == 0 {
		cfg.Audit.MaxSizeMB = DefaultAuditMaxSizeMB
	}

	// Retention defaults
	if cfg.Retention.DefaultDays == 0 {
		cfg.Retention.DefaultDays = DefaultRetentionDays
	}
	if cfg.Retention.Timezone == "" {
		cfg.Retention.Timezone = DefaultRetentionTimezone
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}

	// History defaults
	if cfg.History.Driver == "" {
		cfg.History.Driver = DefaultHistoryDriver
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.PruneDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.PruneDurationBuckets = DefaultPruneDurationBuckets()
	}
}
