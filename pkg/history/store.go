package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// Config contains configuration for the ledger.
type Config struct {
	// Driver is DriverModernc or DriverCgo. Empty means DriverModernc.
	Driver string

	// Path is the database file. Its directory is created if missing.
	Path string

	// BusyTimeout is how long to wait for a lock held by another process.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Allocation is one ledger row per allocated log directory.
type Allocation struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	Caller       string    `json:"caller"`
	BasePath     string    `json:"base_path"`
	Dir          string    `json:"dir"`
	FileName     string    `json:"file_name"`
	UsedFallback bool      `json:"used_fallback"`
	Fatal        bool      `json:"fatal"`
	Sequence     bool      `json:"sequence"`
	CreatedAt    time.Time `json:"created_at"`
}

// PruneRun is one ledger row per prune.
type PruneRun struct {
	ID           int64         `json:"id"`
	SessionID    string        `json:"session_id,omitempty"`
	Dir          string        `json:"dir"`
	ScannedBase  string        `json:"scanned_base"`
	MaxAgeDays   int           `json:"max_age_days"`
	Expired      int           `json:"expired"`
	DeletedDirs  int           `json:"deleted_dirs"`
	DeletedFiles int           `json:"deleted_files"`
	Failures     int           `json:"failures"`
	Aborted      string        `json:"aborted,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Store is the SQLite-backed ledger. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	config Config
	logger *slog.Logger

	closeOnce sync.Once
}

// Open opens (creating if needed) the ledger database and its schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCgo {
		return nil, NewStorageError(cfg.Driver, "open", fmt.Errorf("unsupported driver %q", cfg.Driver))
	}
	if cfg.Path == "" {
		return nil, NewStorageError(cfg.Driver, "open", errors.New("db path cannot be empty"))
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewStorageError(cfg.Driver, "create_dir", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, NewStorageError(cfg.Driver, "open", err)
	}

	// One connection keeps the PRAGMAs below in effect for every query.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "history"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("history ledger opened", "driver", cfg.Driver, "path", cfg.Path)
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError(s.config.Driver, "set_busy_timeout", err)
	}
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return NewStorageError(s.config.Driver, "enable_wal", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError(s.config.Driver, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, time.Now().UnixMicro()); err != nil {
		return NewStorageError(s.config.Driver, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError(s.config.Driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError(s.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// RecordAllocation appends an allocation row.
func (s *Store) RecordAllocation(ctx context.Context, a Allocation) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocations (
			session_id, caller, base_path, dir, file_name,
			used_fallback, fatal, sequence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.Caller, a.BasePath, a.Dir, a.FileName,
		boolInt(a.UsedFallback), boolInt(a.Fatal), boolInt(a.Sequence), a.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return NewStorageError(s.config.Driver, "record_allocation", err)
	}
	return nil
}

// RecordPrune appends a prune run row.
func (s *Store) RecordPrune(ctx context.Context, r PruneRun) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prune_runs (
			session_id, dir, scanned_base, max_age_days,
			expired, deleted_dirs, deleted_files, failures,
			aborted, started_at, duration_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Dir, r.ScannedBase, r.MaxAgeDays,
		r.Expired, r.DeletedDirs, r.DeletedFiles, r.Failures,
		r.Aborted, r.StartedAt.UnixMicro(), r.Duration.Microseconds(),
	)
	if err != nil {
		return NewStorageError(s.config.Driver, "record_prune", err)
	}
	return nil
}

// ListAllocations returns up to limit allocations, newest first.
// A non-positive limit means 100.
func (s *Store) ListAllocations(ctx context.Context, limit int) ([]Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, caller, base_path, dir, file_name,
		       used_fallback, fatal, sequence, created_at
		FROM allocations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, NewStorageError(s.config.Driver, "list_allocations", err)
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var (
			a                    Allocation
			caller, basePath     sql.NullString
			fallback, fatal, seq int64
			createdAt            int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &caller, &basePath, &a.Dir, &a.FileName,
			&fallback, &fatal, &seq, &createdAt); err != nil {
			return nil, NewStorageError(s.config.Driver, "scan_allocation", err)
		}
		a.Caller = caller.String
		a.BasePath = basePath.String
		a.UsedFallback = fallback != 0
		a.Fatal = fatal != 0
		a.Sequence = seq != 0
		a.CreatedAt = time.UnixMicro(createdAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.config.Driver, "list_allocations", err)
	}
	return out, nil
}

// ListPruneRuns returns up to limit prune runs, newest first.
// A non-positive limit means 100.
func (s *Store) ListPruneRuns(ctx context.Context, limit int) ([]PruneRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, dir, scanned_base, max_age_days,
		       expired, deleted_dirs, deleted_files, failures,
		       aborted, started_at, duration_us
		FROM prune_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, NewStorageError(s.config.Driver, "list_prune_runs", err)
	}
	defer rows.Close()

	var out []PruneRun
	for rows.Next() {
		var (
			r                               PruneRun
			sessionID, scannedBase, aborted sql.NullString
			startedAt, durationUS           int64
		)
		if err := rows.Scan(&r.ID, &sessionID, &r.Dir, &scannedBase, &r.MaxAgeDays,
			&r.Expired, &r.DeletedDirs, &r.DeletedFiles, &r.Failures,
			&aborted, &startedAt, &durationUS); err != nil {
			return nil, NewStorageError(s.config.Driver, "scan_prune_run", err)
		}
		r.SessionID = sessionID.String
		r.ScannedBase = scannedBase.String
		r.Aborted = aborted.String
		r.StartedAt = time.UnixMicro(startedAt)
		r.Duration = time.Duration(durationUS) * time.Microsecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.config.Driver, "list_prune_runs", err)
	}
	return out, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(s.config.Driver, "ping", err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
