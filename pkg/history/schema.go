package history

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the ledger tables. Times are stored as Unix microseconds
// so both drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS allocations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    caller TEXT,
    base_path TEXT,
    dir TEXT NOT NULL,
    file_name TEXT NOT NULL,
    used_fallback INTEGER NOT NULL,
    fatal INTEGER NOT NULL,
    sequence INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prune_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT,
    dir TEXT NOT NULL,
    scanned_base TEXT,
    max_age_days INTEGER NOT NULL,
    expired INTEGER NOT NULL,
    deleted_dirs INTEGER NOT NULL,
    deleted_files INTEGER NOT NULL,
    failures INTEGER NOT NULL,
    aborted TEXT,
    started_at INTEGER NOT NULL,
    duration_us INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_allocations_created_at ON allocations(created_at);
CREATE INDEX IF NOT EXISTS idx_allocations_session_id ON allocations(session_id);
CREATE INDEX IF NOT EXISTS idx_prune_runs_started_at ON prune_runs(started_at);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
