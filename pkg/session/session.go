package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/daylog/pkg/clock"
	"mercator-hq/daylog/pkg/history"
	"mercator-hq/daylog/pkg/logdir"
	"mercator-hq/daylog/pkg/retention"
	"mercator-hq/daylog/pkg/telemetry/metrics"
)

// FileMode is applied to the log file after every flush.
const FileMode os.FileMode = 0o777

// Defaults applied by Open when the corresponding Config field is zero.
const (
	DefaultDetailLevel    = 5
	DefaultFlushThreshold = 10000
)

// ErrClosed is returned when writing to a closed session.
var ErrClosed = errors.New("session closed")

// Config contains the per-session options.
type Config struct {
	// BasePath is the caller's log root.
	BasePath string

	// AddSequenceSubdir places the file in a numbered directory beneath the
	// day directory.
	AddSequenceSubdir bool

	// Debug writes every entry regardless of its detail level.
	Debug bool

	// DetailLevel is the highest detail level that is written.
	// Default: 5
	DetailLevel int

	// NoLog discards every entry instead of writing it.
	NoLog bool

	// Caller identifies the component that opened the session.
	Caller string

	// User is written to the start of the log. Empty means $USER.
	User string

	// FlushThreshold is the buffer size above which Log flushes.
	// Default: 10000
	FlushThreshold int

	// SkipPrune disables the prune that runs once after allocation.
	SkipPrune bool
}

// Ledger persists allocation and prune records. *history.Store satisfies it.
type Ledger interface {
	RecordAllocation(ctx context.Context, a history.Allocation) error
	RecordPrune(ctx context.Context, r history.PruneRun) error
}

// Deps are the collaborators a session uses. A nil Allocator means one with
// the default orphan directory; a nil Pruner disables pruning.
type Deps struct {
	Allocator *logdir.Allocator
	Pruner    *retention.Pruner
	Clock     clock.Clock
	Metrics   *metrics.Collector
	Ledger    Ledger

	// LedgerTimeout bounds each ledger write.
	// Default: 5 seconds
	LedgerTimeout time.Duration
}

// Session is one buffered log file. It is safe for concurrent use.
type Session struct {
	id       string
	config   Config
	deps     Deps
	location logdir.Location
	prune    *retention.Outcome
	logger   *slog.Logger

	mu     sync.Mutex
	buf    strings.Builder
	start  time.Time
	last   time.Time
	err    error
	closed bool
}

// Open allocates the log location, writes the start lines and prunes the
// hierarchy the location belongs to. It never fails: allocation, prune and
// ledger problems are written to the session and to slog, and the first
// write failure is available from Err.
func Open(ctx context.Context, cfg Config, deps Deps) *Session {
	if cfg.DetailLevel == 0 {
		cfg.DetailLevel = DefaultDetailLevel
	}
	if cfg.FlushThreshold == 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.LedgerTimeout == 0 {
		deps.LedgerTimeout = 5 * time.Second
	}
	if deps.Allocator == nil {
		deps.Allocator = logdir.NewAllocator(logdir.Config{Clock: deps.Clock})
	}

	s := &Session{
		id:     uuid.NewString(),
		config: cfg,
		deps:   deps,
		logger: slog.Default().With("component", "session"),
	}
	s.location = deps.Allocator.Allocate(logdir.Request{
		BasePath:          cfg.BasePath,
		AddSequenceSubdir: cfg.AddSequenceSubdir,
		Timestamp:         deps.Clock.Now(),
		Caller:            cfg.Caller,
		SessionID:         s.id,
	})
	// The header stamp matches the file name.
	s.start = s.location.Timestamp
	s.last = s.start
	s.buf.WriteString(clock.Stamp(s.start))
	s.logger = s.logger.With("session_id", s.id, "file", s.location.Path())
	deps.Metrics.RecordSessionOpen()
	s.recordAllocation(ctx)

	s.mu.Lock()
	for _, note := range s.location.Notes {
		s.appendLocked(note)
	}
	s.appendLocked("Starting log entry called by " + cfg.Caller)
	s.appendLocked("User: " + cfg.User)
	s.mu.Unlock()

	if !cfg.SkipPrune && deps.Pruner != nil {
		s.runPrune(ctx)
	}

	return s
}

// ID returns the session identifier stamped into audit and ledger records.
func (s *Session) ID() string {
	return s.id
}

// Location returns the allocation result.
func (s *Session) Location() logdir.Location {
	return s.location
}

// Path returns the log file path.
func (s *Session) Path() string {
	return s.location.Path()
}

// PruneOutcome returns the result of the prune run by Open, or nil if none
// ran.
func (s *Session) PruneOutcome() *retention.Outcome {
	return s.prune
}

// Err returns the first flush failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Log buffers msg if debug is set or detail does not exceed the configured
// detail level, and flushes once the buffer passes the flush threshold.
func (s *Session) Log(detail int, msg string) {
	if !s.wants(detail) {
		s.deps.Metrics.RecordEntry(false)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.appendLocked(msg)
	if s.buf.Len() > s.config.FlushThreshold {
		s.flushLocked()
	}
}

// Logf is Log with fmt.Sprintf formatting.
func (s *Session) Logf(detail int, format string, args ...any) {
	if !s.wants(detail) {
		s.deps.Metrics.RecordEntry(false)
		return
	}
	s.Log(detail, fmt.Sprintf(format, args...))
}

// LogNow buffers msg and flushes immediately, regardless of detail level.
func (s *Session) LogNow(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.appendLocked(msg)
	s.flushLocked()
}

// LogOverwrite replaces everything still buffered with msg. Entries that
// were already flushed are kept.
func (s *Session) LogOverwrite(detail int, msg string) {
	if !s.wants(detail) {
		s.deps.Metrics.RecordEntry(false)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf.Reset()
	s.appendLocked(msg)
	if s.buf.Len() > s.config.FlushThreshold {
		s.flushLocked()
	}
}

// Write implements io.Writer. Each call is one entry at detail level 1
// with trailing newlines removed.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	s.Log(1, strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}

// Close writes the closing lines and flushes the buffer. Calling Close more
// than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.err
	}

	s.appendLocked("Closing log entry to " + s.location.Path())
	end := s.deps.Clock.Now().In(s.start.Location())
	total := end.Sub(s.start)
	fmt.Fprintf(&s.buf, "\n%d\t\tTotal elapsed time", total.Microseconds())
	fmt.Fprintf(&s.buf, "\n%s\t\tTotal elapsed time", clock.Human(total))
	s.buf.WriteString("\n" + clock.Stamp(end))
	s.flushLocked()
	s.closed = true

	s.logger.Debug("session closed", "elapsed", total)
	return s.err
}

func (s *Session) wants(detail int) bool {
	return s.config.Debug || detail <= s.config.DetailLevel
}

// appendLocked adds one entry prefixed with the microseconds elapsed since
// the previous entry.
func (s *Session) appendLocked(msg string) {
	now := s.deps.Clock.Now()
	fmt.Fprintf(&s.buf, "\n%d\t\t%s", now.Sub(s.last).Microseconds(), msg)
	s.last = now
	s.deps.Metrics.RecordEntry(true)
}

// flushLocked appends the buffer to the log file. The buffer is kept when
// the write fails so a later flush can retry it.
func (s *Session) flushLocked() {
	if s.config.NoLog {
		s.buf.Reset()
		return
	}
	if s.buf.Len() == 0 {
		return
	}

	data := s.buf.String()
	err := appendFile(s.location.Path(), data)
	s.deps.Metrics.RecordFlush(len(data), err)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		s.logger.Warn("failed to flush session log", "error", err)
		return
	}
	s.buf.Reset()
}

func appendFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return fmt.Errorf("write log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if err := os.Chmod(path, FileMode); err != nil {
		return fmt.Errorf("chmod log file: %w", err)
	}
	return nil
}

func (s *Session) runPrune(ctx context.Context) {
	policy := s.deps.Pruner.Policy()

	outcome, err := s.deps.Pruner.Prune(ctx, s.location.Dir)
	s.prune = outcome

	s.mu.Lock()
	switch {
	case outcome.Aborted != "":
		s.appendLocked(outcome.Aborted)
	default:
		source := "default"
		if policy != nil && policy.Path() != "" {
			source = policy.Path()
		}
		s.appendLocked(fmt.Sprintf("Prune files after %d days for logs written to %s per %s", outcome.MaxAgeDays, s.config.BasePath, source))
		s.appendLocked("Pruning files in " + outcome.ScannedBase)
		for _, line := range outcome.Events {
			s.appendLocked(line)
		}
		if err != nil {
			s.appendLocked("Prune interrupted: " + err.Error())
		}
	}
	s.mu.Unlock()

	s.recordPrune(ctx, outcome)
}

func (s *Session) recordAllocation(ctx context.Context) {
	if s.deps.Ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.LedgerTimeout)
	defer cancel()

	err := s.deps.Ledger.RecordAllocation(ctx, history.Allocation{
		SessionID:    s.id,
		Caller:       s.config.Caller,
		BasePath:     s.config.BasePath,
		Dir:          s.location.Dir,
		FileName:     s.location.FileName,
		UsedFallback: s.location.UsedFallback,
		Fatal:        s.location.Fatal(),
		Sequence:     s.config.AddSequenceSubdir,
		CreatedAt:    s.start,
	})
	if err != nil {
		s.logger.Warn("failed to record allocation", "error", err)
	}
}

func (s *Session) recordPrune(ctx context.Context, o *retention.Outcome) {
	if s.deps.Ledger == nil || o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.LedgerTimeout)
	defer cancel()

	if err := s.deps.Ledger.RecordPrune(ctx, PruneRun(s.id, o)); err != nil {
		s.logger.Warn("failed to record prune run", "error", err)
	}
}

// PruneRun converts a prune outcome into a ledger row. sessionID is empty
// for prunes run outside a session.
func PruneRun(sessionID string, o *retention.Outcome) history.PruneRun {
	return history.PruneRun{
		SessionID:    sessionID,
		Dir:          o.Dir,
		ScannedBase:  o.ScannedBase,
		MaxAgeDays:   o.MaxAgeDays,
		Expired:      len(o.Expired),
		DeletedDirs:  len(o.Deleted),
		DeletedFiles: len(o.DeletedFiles),
		Failures:     len(o.Failures),
		Aborted:      o.Aborted,
		StartedAt:    o.Started,
		Duration:     o.Duration,
	}
}
