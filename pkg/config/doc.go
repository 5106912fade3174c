// Package config provides configuration management for daylog.
//
// Configuration is read from an optional YAML file, completed with defaults,
// overridden from the environment and validated as a whole.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("daylog.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("daylog.yaml")
//
// Keys the configuration does not define are rejected, so a misspelled
// "base_pth" fails loudly instead of silently using the orphan directory.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention DAYLOG_SECTION_FIELD:
//
//   - DAYLOG_SESSION_BASE_PATH overrides session.base_path
//   - DAYLOG_RETENTION_DEFAULT_DAYS overrides retention.default_days
//   - DAYLOG_RETENTION_BASES overrides retention.bases (comma-separated)
//   - DAYLOG_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
//	if err := config.Initialize("daylog.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// # Example Configuration
//
//	session:
//	  base_path: "/pix/anro/edi/dat_connexion/log/"
//	  add_sequence_subdir: true
//	  detail_level: 5
//	  caller: "dat_connexion"
//
//	fallback:
//	  orphan_dir: "/var/tmp/daylog/orphanLog/"
//
//	audit:
//	  path: "/var/tmp/daylog/LoggerLog.txt"
//	  max_size_mb: 10
//
//	retention:
//	  default_days: 30
//	  overrides_path: "/etc/daylog/configPrune.json"
//	  timezone: "Europe/Paris"
//	  schedule: "0 3 * * *"
//	  bases:
//	    - "/pix/anro/edi/dat_connexion/log/"
//
//	history:
//	  enabled: true
//	  path: "/var/lib/daylog/history.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "text"
package config
