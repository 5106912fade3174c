package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/daylog/pkg/audit"
	"mercator-hq/daylog/pkg/clock"
	"mercator-hq/daylog/pkg/config"
	"mercator-hq/daylog/pkg/history"
	"mercator-hq/daylog/pkg/logdir"
	"mercator-hq/daylog/pkg/retention"
	"mercator-hq/daylog/pkg/session"
	"mercator-hq/daylog/pkg/telemetry/metrics"
)

// ledgerTimeout bounds one ledger write.
const ledgerTimeout = 5 * time.Second

// app holds the components built from one configuration.
type app struct {
	cfg       *config.Config
	location  *time.Location
	clock     clock.Clock
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	audit     *audit.Log
	allocator *logdir.Allocator
	policy    *retention.Policy
	pruner    *retention.Pruner

	// ledger is nil unless history is enabled.
	ledger *history.Store
}

func newApp(cfg *config.Config) (*app, error) {
	loc, err := cfg.Retention.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid retention timezone: %w", err)
	}

	a := &app{
		cfg:      cfg,
		location: loc,
		clock:    clock.System{},
		registry: prometheus.NewRegistry(),
	}
	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, a.registry)
	a.audit = audit.New(audit.Config{
		Path:         cfg.Audit.Path,
		MaxSizeBytes: int64(cfg.Audit.MaxSizeMB) * 1000 * 1000,
		Clock:        a.clock,
		Location:     loc,
	})
	a.allocator = logdir.NewAllocator(logdir.Config{
		OrphanDir:         cfg.Fallback.OrphanDir,
		ExclusiveSequence: cfg.Session.ExclusiveSequence,
		Location:          loc,
		Clock:             a.clock,
		Audit:             a.audit,
		Metrics:           a.metrics,
	})
	a.policy = retention.NewPolicy(cfg.Retention.OverridesPath, cfg.Retention.DefaultDays)
	a.pruner = retention.NewPruner(retention.Config{
		Policy:   a.policy,
		Clock:    a.clock,
		Location: loc,
		Metrics:  a.metrics,
	})

	if cfg.History.Enabled {
		a.ledger, err = history.Open(history.Config{
			Driver: cfg.History.Driver,
			Path:   cfg.History.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	return a, nil
}

// Close releases the ledger.
func (a *app) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

// sessionDeps returns the collaborators for session.Open. A nil ledger is
// passed as a nil interface so the session skips recording.
func (a *app) sessionDeps() session.Deps {
	deps := session.Deps{
		Allocator: a.allocator,
		Clock:     a.clock,
		Metrics:   a.metrics,
	}
	if a.cfg.Retention.PruneOnOpenEnabled() {
		deps.Pruner = a.pruner
	}
	if a.ledger != nil {
		deps.Ledger = a.ledger
	}
	return deps
}

// sessionConfig returns the configured session options.
func (a *app) sessionConfig() session.Config {
	s := a.cfg.Session
	return session.Config{
		BasePath:          s.BasePath,
		AddSequenceSubdir: s.AddSequenceSubdir,
		Debug:             s.Debug,
		DetailLevel:       s.DetailLevel,
		NoLog:             s.NoLog,
		Caller:            s.Caller,
		FlushThreshold:    s.FlushThreshold,
		SkipPrune:         !a.cfg.Retention.PruneOnOpenEnabled(),
	}
}

// recordPrune stores a prune outcome in the ledger, if there is one.
func (a *app) recordPrune(ctx context.Context, o *retention.Outcome) {
	if a.ledger == nil || o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := a.ledger.RecordPrune(ctx, session.PruneRun("", o)); err != nil {
		slog.Warn("failed to record prune run", "error", err)
	}
}

// recordAllocation stores an allocation in the ledger, if there is one.
func (a *app) recordAllocation(ctx context.Context, req logdir.Request, loc logdir.Location) {
	if a.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	err := a.ledger.RecordAllocation(ctx, history.Allocation{
		SessionID:    req.SessionID,
		Caller:       req.Caller,
		BasePath:     req.BasePath,
		Dir:          loc.Dir,
		FileName:     loc.FileName,
		UsedFallback: loc.UsedFallback,
		Fatal:        loc.Fatal(),
		Sequence:     req.AddSequenceSubdir,
		CreatedAt:    loc.Timestamp,
	})
	if err != nil {
		slog.Warn("failed to record allocation", "error", err)
	}
}
