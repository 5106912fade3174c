// Package telemetry groups the operational observability of daylog.
//
// # Components
//
//   - logging: slog setup for operational logs (never the session files)
//   - metrics: Prometheus counters for allocations, prunes and sessions
//   - health: probe endpoints served by "daylog serve"
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	registry := prometheus.NewRegistry()
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, registry)
//	collector.RecordSessionOpen()
//
// A nil *metrics.Collector is valid and records nothing, so library
// packages accept one without checking whether metrics are enabled.
package telemetry
