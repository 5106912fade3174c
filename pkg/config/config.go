package config

// Config is the root configuration structure for daylog.
// It contains the session defaults used by the CLI, the fallback and audit
// locations, retention settings, the history ledger and telemetry.
type Config struct {
	// Session contains the defaults for a logging session: where its
	// directory is allocated and which entries are written.
	Session SessionConfig `yaml:"session"`

	// Fallback contains the orphan directory used when a session's base
	// path is missing or cannot be created.
	Fallback FallbackConfig `yaml:"fallback"`

	// Audit contains the location and size limit of the audit record.
	Audit AuditConfig `yaml:"audit"`

	// Retention contains the age limits for dated directories, the override
	// file and the schedule used by "daylog serve".
	Retention RetentionConfig `yaml:"retention"`

	// History contains the SQLite ledger of allocations and prune runs.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SessionConfig contains the defaults for a logging session.
type SessionConfig struct {
	// BasePath is the root under which dated directories are created,
	// e.g. "/pix/anro/edi/dat_connexion/log/".
	BasePath string `yaml:"base_path"`

	// AddSequenceSubdir places each session in its own numbered directory
	// beneath the day directory.
	// Default: false
	AddSequenceSubdir bool `yaml:"add_sequence_subdir"`

	// ExclusiveSequence claims sequence directories with an exclusive mkdir
	// so concurrent processes never share one.
	// Default: false
	ExclusiveSequence bool `yaml:"exclusive_sequence"`

	// Debug writes every entry regardless of its detail level.
	// Default: false
	Debug bool `yaml:"debug"`

	// DetailLevel is the highest entry detail level that is written.
	// Default: 5
	DetailLevel int `yaml:"detail_level"`

	// NoLog suppresses all file output for the session.
	// Default: false
	NoLog bool `yaml:"no_log"`

	// Caller names the component opening the session. It appears in the
	// session's start line and in the audit record.
	Caller string `yaml:"caller"`

	// FlushThreshold is the buffer size in bytes above which entries are
	// written to disk.
	// Default: 10000
	FlushThreshold int `yaml:"flush_threshold"`
}

// FallbackConfig contains the orphan directory settings.
type FallbackConfig struct {
	// OrphanDir is the base directory used instead of a missing or
	// unusable session base path.
	// Default: <os.TempDir()>/daylog/orphanLog/
	OrphanDir string `yaml:"orphan_dir"`
}

// AuditConfig contains the audit record settings.
type AuditConfig struct {
	// Path is the audit file location.
	// Default: <os.TempDir()>/daylog/LoggerLog.txt
	Path string `yaml:"path"`

	// MaxSizeMB is the size in megabytes above which the audit record is
	// deleted and restarted.
	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb"`
}

// RetentionConfig contains the retention settings for dated directories.
type RetentionConfig struct {
	// DefaultDays is the age in days after which a day directory is deleted
	// when the override file has no entry for its base path.
	// Default: 30
	DefaultDays int `yaml:"default_days"`

	// OverridesPath is an optional JSON file mapping base paths to days.
	OverridesPath string `yaml:"overrides_path"`

	// WatchOverrides reloads the override file when it changes ("serve").
	// Default: false
	WatchOverrides bool `yaml:"watch_overrides"`

	// Timezone is the IANA location in which directory dates are derived
	// and compared, e.g. "Europe/Paris". "Local" uses the host setting.
	// Default: "Local"
	Timezone string `yaml:"timezone"`

	// Schedule is the cron expression used by "daylog serve".
	// Empty disables scheduled pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// Bases lists the base paths pruned on schedule.
	Bases []string `yaml:"bases"`

	// PruneOnOpen runs one prune after every session allocation.
	// Default: true
	PruneOnOpen *bool `yaml:"prune_on_open"`
}

// HistoryConfig contains the allocation and prune ledger settings.
type HistoryConfig struct {
	// Enabled records allocations and prune runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "data/daylog.db"
	Path string `yaml:"path"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is where "daylog serve" exposes the metrics endpoint.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "daylog"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// PruneDurationBuckets defines histogram buckets for prune duration (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	PruneDurationBuckets []float64 `yaml:"prune_duration_buckets"`
}

// PruneOnOpenEnabled reports whether sessions prune after allocation.
func (c RetentionConfig) PruneOnOpenEnabled() bool {
	return c.PruneOnOpen == nil || *c.PruneOnOpen
}
