package metrics

import (
	"sync"
	"time"

	"mercator-hq/daylog/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// otherBase replaces base path labels beyond the cardinality limit.
const otherBase = "other"

// Collector owns every daylog metric and the registry they are exposed
// from. All Record methods are safe on a nil Collector and do nothing when
// metrics are disabled, so components can hold an optional *Collector.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	allocationMetrics *AllocationMetrics
	pruneMetrics      *PruneMetrics
	sessionMetrics    *SessionMetrics

	// Base paths become label values; bound how many distinct ones we keep.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is used.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "daylog",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.PruneDurationBuckets) == 0 {
		cfg.PruneDurationBuckets = config.DefaultPruneDurationBuckets()
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(256),
	}

	c.allocationMetrics = NewAllocationMetrics(cfg, registry)
	c.pruneMetrics = NewPruneMetrics(cfg, registry)
	c.sessionMetrics = NewSessionMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordAllocation records the outcome of one directory allocation.
//
// Parameters:
//   - fallback: the orphan directory replaced the requested base path
//   - fatal: not even the orphan directory could be created
//   - sequence: a numbered sequence directory was requested
func (c *Collector) RecordAllocation(fallback, fatal, sequence bool) {
	if !c.enabled() {
		return
	}
	c.allocationMetrics.RecordAllocation(fallback, fatal, sequence)
}

// RecordPrune records one prune run. base is the year-parent directory that
// was walked, or empty when the run was aborted before one was found.
//
// Example:
//
//	collector.RecordPrune("/data/log", 3, 5, 12, 0, false, 40*time.Millisecond)
func (c *Collector) RecordPrune(base string, expired, deletedDirs, deletedFiles, failures int, aborted bool, d time.Duration) {
	if !c.enabled() {
		return
	}
	if base == "" {
		base = "unknown"
	}
	if !c.cardinalityLimiter.Allow(base) {
		base = otherBase
	}
	c.pruneMetrics.RecordRun(base, expired, deletedDirs, deletedFiles, failures, aborted, d)
}

// RecordSessionOpen counts a new session.
func (c *Collector) RecordSessionOpen() {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordOpen()
}

// RecordEntry counts one log entry as written or filtered.
func (c *Collector) RecordEntry(written bool) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordEntry(written)
}

// RecordFlush records a flush of n bytes, or a failed flush when err is set.
func (c *Collector) RecordFlush(n int, err error) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordFlush(n, err)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed; new ones only while the limit has not been reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
