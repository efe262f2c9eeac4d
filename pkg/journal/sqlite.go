package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// MemoryPath selects the in-memory store in Open.
const MemoryPath = ":memory:"

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Driver is "sqlite" (modernc.org/sqlite) or "sqlite3" (mattn/go-sqlite3).
	// Default: "sqlite"
	Driver string

	// Path is the database file path. Parent directories are created.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration for path.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Driver:       DriverModernc,
		Path:         path,
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// Open returns a store for driver and path. The path ":memory:" returns a
// MemoryStore.
func Open(driver, path string) (Store, error) {
	if path == MemoryPath {
		return NewMemoryStore(), nil
	}
	cfg := DefaultSQLiteConfig(path)
	if driver != "" {
		cfg.Driver = driver
	}
	return NewSQLiteStore(cfg)
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCGO {
		return nil, fmt.Errorf("unsupported journal driver %q (valid: %s, %s)", cfg.Driver, DriverModernc, DriverCGO)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	logger := slog.Default().With("component", "journal.sqlite")

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	s := &SQLiteStore{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("journal store opened",
		"driver", cfg.Driver,
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("journal schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}

	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	conflicting, err := json.Marshal(rec.Conflicting)
	if err != nil {
		return fmt.Errorf("failed to encode conflicting ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resolutions (
			id, recorded_at, request_id, requested, effective, selected,
			resource, outcome, reason, conflicting, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.RequestID, rec.Requested, rec.Effective, rec.Selected,
		rec.Resource, string(rec.Outcome), rec.Reason, string(conflicting), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal record %s: %w", rec.ID, err)
	}
	return nil
}

// Query implements Store.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		where = append(where, "recorded_at < ?")
		args = append(args, f.Until.UnixNano())
	}
	if f.Backend != "" {
		where = append(where, "(selected = ? OR effective = ?)")
		args = append(args, f.Backend, f.Backend)
	}
	if f.Resource != "" {
		where = append(where, "resource = ?")
		args = append(args, f.Resource)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(f.Outcome))
	}

	query := `SELECT id, recorded_at, request_id, requested, effective, selected,
		resource, outcome, reason, conflicting, duration_ns FROM resolutions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec         Record
			recordedAt  int64
			durationNs  int64
			outcome     string
			conflicting sql.NullString
			requestID   sql.NullString
			requested   sql.NullString
			selected    sql.NullString
			resource    sql.NullString
			reason      sql.NullString
		)
		if err := rows.Scan(&rec.ID, &recordedAt, &requestID, &requested, &rec.Effective, &selected,
			&resource, &outcome, &reason, &conflicting, &durationNs); err != nil {
			return nil, fmt.Errorf("failed to scan journal record: %w", err)
		}

		rec.Timestamp = time.Unix(0, recordedAt).UTC()
		rec.Duration = time.Duration(durationNs)
		rec.Outcome = Outcome(outcome)
		rec.RequestID = requestID.String
		rec.Requested = requested.String
		rec.Selected = selected.String
		rec.Resource = resource.String
		rec.Reason = reason.String
		if conflicting.Valid && conflicting.String != "" && conflicting.String != "null" {
			if err := json.Unmarshal([]byte(conflicting.String), &rec.Conflicting); err != nil {
				return nil, fmt.Errorf("failed to decode conflicting ids of %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resolutions WHERE recorded_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.logger.Debug("journal store closed", "path", s.config.Path)
	return s.db.Close()
}
