// Package metrics provides Prometheus metrics for daylog.
//
// # Metrics Categories
//
//   - Allocation Metrics: allocations by outcome and sequence claims
//   - Prune Metrics: runs, expired days, deletions, failures and duration per base
//   - Session Metrics: sessions opened, entries written or filtered, bytes flushed
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	pruner := retention.NewPruner(retention.Config{Metrics: collector})
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A nil *Collector is valid and records nothing.
package metrics
