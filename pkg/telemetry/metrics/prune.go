package metrics

import (
	"time"

	"mercator-hq/daylog/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PruneMetrics tracks retention pruning.
//
// Metrics:
//   - daylog_prune_runs_total: Prune runs by base and result ("completed", "aborted")
//   - daylog_prune_expired_days_total: Day directories found past their retention age
//   - daylog_prune_deleted_total: Deleted entries by kind ("directory", "file")
//   - daylog_prune_failures_total: Entries that could not be deleted
//   - daylog_prune_duration_seconds: Prune run duration
//   - daylog_prune_last_run_timestamp_seconds: Unix time of the last prune per base
type PruneMetrics struct {
	runsTotal    *prometheus.CounterVec
	expiredTotal *prometheus.CounterVec
	deletedTotal *prometheus.CounterVec
	failureTotal *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastRun      *prometheus.GaugeVec
}

// NewPruneMetrics creates and registers prune metrics with the provided registry.
func NewPruneMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PruneMetrics {
	pm := &PruneMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prune_runs_total",
				Help:      "Total number of prune runs",
			},
			[]string{"base", "result"},
		),

		expiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prune_expired_days_total",
				Help:      "Total number of day directories found past their retention age",
			},
			[]string{"base"},
		),

		deletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prune_deleted_total",
				Help:      "Total number of files and directories deleted by pruning",
			},
			[]string{"base", "kind"},
		),

		failureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prune_failures_total",
				Help:      "Total number of files and directories pruning failed to delete",
			},
			[]string{"base"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prune_duration_seconds",
				Help:      "Duration of prune runs in seconds",
				Buckets:   cfg.PruneDurationBuckets,
			},
			[]string{"base"},
		),

		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prune_last_run_timestamp_seconds",
				Help:      "Unix timestamp of the last prune run",
			},
			[]string{"base"},
		),
	}

	registry.MustRegister(
		pm.runsTotal,
		pm.expiredTotal,
		pm.deletedTotal,
		pm.failureTotal,
		pm.duration,
		pm.lastRun,
	)

	return pm
}

// RecordRun records the result of one prune run against base.
func (pm *PruneMetrics) RecordRun(base string, expired, deletedDirs, deletedFiles, failures int, aborted bool, d time.Duration) {
	result := "completed"
	if aborted {
		result = "aborted"
	}
	pm.runsTotal.WithLabelValues(base, result).Inc()
	pm.duration.WithLabelValues(base).Observe(d.Seconds())
	pm.lastRun.WithLabelValues(base).SetToCurrentTime()

	if aborted {
		return
	}
	pm.expiredTotal.WithLabelValues(base).Add(float64(expired))
	pm.deletedTotal.WithLabelValues(base, "directory").Add(float64(deletedDirs))
	pm.deletedTotal.WithLabelValues(base, "file").Add(float64(deletedFiles))
	pm.failureTotal.WithLabelValues(base).Add(float64(failures))
}
