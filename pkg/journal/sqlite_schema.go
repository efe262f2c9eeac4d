package journal

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// Schema creates the journal tables. Timestamps and durations are stored
// as integer nanoseconds so both drivers round-trip them identically.
const Schema = `
CREATE TABLE IF NOT EXISTS resolutions (
    id TEXT PRIMARY KEY,
    recorded_at INTEGER NOT NULL,
    request_id TEXT,
    requested TEXT,
    effective TEXT NOT NULL,
    selected TEXT,
    resource TEXT,
    outcome TEXT NOT NULL,
    reason TEXT,
    conflicting TEXT,
    duration_ns INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_resolutions_recorded_at ON resolutions(recorded_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_selected ON resolutions(selected);
CREATE INDEX IF NOT EXISTS idx_resolutions_outcome ON resolutions(outcome);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the highest recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`
