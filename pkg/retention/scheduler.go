package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler prunes a fixed set of base paths on a cron schedule.
type Scheduler struct {
	pruner   *Pruner
	schedule string
	bases    []string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	// onRun has its own lock: Stop holds mu while waiting for a running job.
	cbMu  sync.Mutex
	onRun func(base string, outcome *Outcome, err error)
}

// NewScheduler creates a Scheduler that prunes bases according to schedule
// (standard five-field cron syntax).
func NewScheduler(pruner *Pruner, schedule string, bases []string) *Scheduler {
	return &Scheduler{
		pruner:   pruner,
		schedule: schedule,
		bases:    append([]string(nil), bases...),
		cron:     cron.New(),
		logger:   slog.Default().With("component", "retention.scheduler"),
	}
}

// OnRun registers a callback invoked after every base is pruned.
func (s *Scheduler) OnRun(fn func(base string, outcome *Outcome, err error)) {
	s.cbMu.Lock()
	s.onRun = fn
	s.cbMu.Unlock()
}

// Start begins scheduled pruning. An empty schedule or an empty base list
// leaves the scheduler idle and returns nil.
//
// Common expressions:
//   - "0 3 * * *"    - daily at 3 AM
//   - "0 */6 * * *"  - every 6 hours
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || len(s.bases) == 0 {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", s.schedule,
		"bases", len(s.bases),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce prunes every configured base immediately.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.cbMu.Lock()
	onRun := s.onRun
	s.cbMu.Unlock()

	for _, base := range s.bases {
		if ctx.Err() != nil {
			return
		}
		outcome, err := s.pruner.PruneBase(ctx, base)
		switch {
		case errors.Is(err, ErrYearDirNotFound):
			s.logger.Warn("scheduled prune aborted", "base", base, "reason", outcome.Aborted)
		case err != nil:
			s.logger.Error("scheduled prune failed", "base", base, "error", err)
		case outcome.Changed():
			s.logger.Info("scheduled prune completed",
				"base", base,
				"deleted_dirs", len(outcome.Deleted),
				"failures", len(outcome.Failures),
			)
		default:
			s.logger.Debug("scheduled prune completed, nothing expired", "base", base)
		}
		if onRun != nil {
			onRun(base, outcome, err)
		}
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
