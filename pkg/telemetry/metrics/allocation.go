package metrics

import (
	"mercator-hq/daylog/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AllocationMetrics tracks log directory allocations.
//
// Metrics:
//   - daylog_allocations_total: Allocations by outcome ("requested", "fallback", "fatal")
//   - daylog_sequence_allocations_total: Allocations that claimed a sequence directory
type AllocationMetrics struct {
	// Allocations by outcome
	allocationsTotal *prometheus.CounterVec

	// Allocations with a sequence subdirectory
	sequenceTotal prometheus.Counter
}

// NewAllocationMetrics creates and registers allocation metrics with the provided registry.
func NewAllocationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AllocationMetrics {
	am := &AllocationMetrics{
		allocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "allocations_total",
				Help:      "Total number of log directory allocations by outcome",
			},
			[]string{"outcome"},
		),

		sequenceTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sequence_allocations_total",
				Help:      "Total number of allocations that claimed a sequence directory",
			},
		),
	}

	registry.MustRegister(
		am.allocationsTotal,
		am.sequenceTotal,
	)

	return am
}

// RecordAllocation records one allocation. A fatal allocation is counted
// only as "fatal", a fallback one only as "fallback".
func (am *AllocationMetrics) RecordAllocation(fallback, fatal, sequence bool) {
	outcome := "requested"
	switch {
	case fatal:
		outcome = "fatal"
	case fallback:
		outcome = "fallback"
	}
	am.allocationsTotal.WithLabelValues(outcome).Inc()
	if sequence {
		am.sequenceTotal.Inc()
	}
}
