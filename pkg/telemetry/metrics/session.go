package metrics

import (
	"mercator-hq/daylog/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks log sessions and their writes.
//
// Metrics:
//   - daylog_sessions_total: Sessions opened
//   - daylog_entries_total: Entries by disposition ("written", "filtered")
//   - daylog_flushed_bytes_total: Bytes flushed to log files
//   - daylog_flush_errors_total: Flushes that failed
type SessionMetrics struct {
	sessionsTotal prometheus.Counter
	entriesTotal  *prometheus.CounterVec
	flushedBytes  prometheus.Counter
	flushErrors   prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics with the provided registry.
func NewSessionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SessionMetrics {
	sm := &SessionMetrics{
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sessions_total",
			Help:      "Total number of log sessions opened",
		}),
		entriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "entries_total",
			Help:      "Total number of log entries by disposition",
		}, []string{"disposition"}),
		flushedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "flushed_bytes_total",
			Help:      "Total number of bytes flushed to log files",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "flush_errors_total",
			Help:      "Total number of failed flushes",
		}),
	}

	registry.MustRegister(
		sm.sessionsTotal,
		sm.entriesTotal,
		sm.flushedBytes,
		sm.flushErrors,
	)

	return sm
}

// RecordOpen counts a new session.
func (sm *SessionMetrics) RecordOpen() {
	sm.sessionsTotal.Inc()
}

// RecordEntry counts an entry as written or filtered by detail level.
func (sm *SessionMetrics) RecordEntry(written bool) {
	if written {
		sm.entriesTotal.WithLabelValues("written").Inc()
		return
	}
	sm.entriesTotal.WithLabelValues("filtered").Inc()
}

// RecordFlush records a flush of n bytes.
func (sm *SessionMetrics) RecordFlush(n int, err error) {
	if err != nil {
		sm.flushErrors.Inc()
		return
	}
	sm.flushedBytes.Add(float64(n))
}
