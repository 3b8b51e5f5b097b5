// Package storage persists SDK state in SQLite: the pending analytics queue,
// the install identifier, and small key/value records such as UTM attribution.
//
// It uses modernc.org/sqlite (pure Go, no CGO) so the package cross-compiles
// with gomobile. File-backed databases run in WAL mode; migrations run on open.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. Used when the host does not
// provide a data directory; nothing survives a process restart.
const MemoryPath = ":memory:"

// ErrEmptyPath is returned by NewDB when no path is given.
var ErrEmptyPath = errors.New("storage: database path must not be empty")

// DB wraps a *sql.DB connection to the SDK database.
type DB struct {
	inner *sql.DB
	path  string
}

// NewDB opens (or creates) the database at dbPath and applies migrations.
func NewDB(dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, ErrEmptyPath
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == MemoryPath {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each pooled connection to :memory: would see its own empty database.
	if dbPath == MemoryPath {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{inner: sqlDB, path: dbPath}, nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Exec executes a query without returning rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.inner.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.inner.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.inner.QueryRow(query, args...)
}
