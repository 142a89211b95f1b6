// Package store provides the on-device SQLite database for Ledgerly.
//
// The database is the application's source of truth between syncs. It runs in
// WAL mode for concurrent reads, keeps soft-deleted rows as tombstones with a
// last-modified timestamp, and exposes both typed CRUD for the CLI and a
// kind-agnostic Record view for the sync engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection with Ledgerly-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in WAL mode. If it doesn't exist it is created;
// call InitSchema before first use. The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		tags TEXT,  -- JSON array

		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS budgets (
		category TEXT NOT NULL,
		period TEXT NOT NULL,
		amount TEXT NOT NULL,

		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL,
		PRIMARY KEY (category, period)
	);

	CREATE TABLE IF NOT EXISTS recurring_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		next_due TEXT NOT NULL,

		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL
	);

	-- Single row, fixed id
	CREATE TABLE IF NOT EXISTS preferences (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		currency TEXT NOT NULL,
		date_format TEXT NOT NULL,
		theme TEXT NOT NULL,
		default_account TEXT NOT NULL DEFAULT '',
		first_day_of_month INTEGER NOT NULL DEFAULT 1,

		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL
	);

	-- Installation-scoped key/value state (device id, sync flags)
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category);
	CREATE INDEX IF NOT EXISTS idx_transactions_deleted ON transactions(is_deleted);
	CREATE INDEX IF NOT EXISTS idx_transactions_modified ON transactions(last_modified);
	CREATE INDEX IF NOT EXISTS idx_budgets_deleted ON budgets(is_deleted);
	CREATE INDEX IF NOT EXISTS idx_recurring_deleted ON recurring_transactions(is_deleted);
	CREATE INDEX IF NOT EXISTS idx_recurring_next_due ON recurring_transactions(next_due);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeToNullString converts an optional time to a nullable RFC3339 string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// parseNullTime converts a nullable RFC3339 string back to an optional time.
func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
