// Package audit maintains the append-only audit record that receives one
// entry per logging session: who asked for a log directory, which parameters
// were missing, and whether a fallback location had to be used.
//
// The record is bounded by size. When it grows past MaxSizeBytes it is
// deleted and restarted with a single notice line; it is never trimmed.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mercator-hq/daylog/pkg/clock"
)

// DefaultMaxSizeBytes is the size at which the record is restarted (10 MB).
const DefaultMaxSizeBytes int64 = 10 * 1000 * 1000

// Config contains configuration for the audit record.
type Config struct {
	// Path is the audit file location.
	Path string

	// MaxSizeBytes is the size above which the file is deleted and restarted.
	// Zero means DefaultMaxSizeBytes.
	MaxSizeBytes int64

	// Clock stamps each entry. Nil means clock.System.
	Clock clock.Clock

	// Location is the time zone of the entry stamps. Nil means time.Local.
	Location *time.Location
}

// Log appends entries to the audit record.
type Log struct {
	path    string
	maxSize int64
	clock   clock.Clock
	loc     *time.Location
	logger  *slog.Logger
	mu      sync.Mutex
}

// New creates an audit Log. It does not touch the filesystem.
func New(cfg Config) *Log {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Log{
		path:    cfg.Path,
		maxSize: cfg.MaxSizeBytes,
		clock:   cfg.Clock,
		loc:     cfg.Location,
		logger:  slog.Default().With("component", "audit"),
	}
}

// Path returns the audit file location.
func (l *Log) Path() string {
	return l.path
}

// Record appends msg to the audit file, prefixed with a timestamp and the
// session ID when one is given. Failures are logged and returned but callers
// are expected to carry on.
func (l *Log) Record(sessionID, msg string) error {
	if l == nil || l.path == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rotateIfNeeded()

	stamp := clock.Stamp(l.clock.Now().In(l.loc))
	var line string
	if sessionID != "" {
		line = fmt.Sprintf("\n%s [%s] %s\n", stamp, sessionID, msg)
	} else {
		line = fmt.Sprintf("\n%s %s\n", stamp, msg)
	}

	if err := appendFile(l.path, line); err != nil {
		l.logger.Warn("failed to write audit record", "path", l.path, "error", err)
		return fmt.Errorf("write audit record %q: %w", l.path, err)
	}
	return nil
}

// rotateIfNeeded deletes the file once it exceeds the size limit and starts
// a new one with a notice line.
func (l *Log) rotateIfNeeded() {
	info, err := os.Stat(l.path)
	if err != nil || info.Size() <= l.maxSize {
		return
	}

	if err := os.Remove(l.path); err != nil {
		l.logger.Warn("failed to prune audit record", "path", l.path, "error", err)
		return
	}

	notice := fmt.Sprintf("\n%s Deleted log file because its size, %.2fMb, exceeded the limit, %.2fMb\n",
		clock.Stamp(l.clock.Now().In(l.loc)),
		float64(info.Size())/1e6,
		float64(l.maxSize)/1e6,
	)
	if err := os.WriteFile(l.path, []byte(notice), 0o666); err != nil {
		l.logger.Warn("failed to restart audit record", "path", l.path, "error", err)
		return
	}

	l.logger.Info("audit record restarted", "path", l.path, "previous_size", info.Size())
}

func appendFile(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
