// Package db provides the SQLite connection and the key-value table the
// document is stored in.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "stash.db"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY CHECK(length(key) > 0),
	value BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// DB wraps the sql.DB with Stash-specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database in dataDir, creating the directory and the
// kv table when needed. The database is opened with:
// - WAL mode for concurrent reads/writes
// - a single connection, SQLite has one writer
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenFile(filepath.Join(dataDir, FileName))
}

// OpenFile opens the SQLite database at path.
func OpenFile(path string) (*DB, error) {
	// modernc.org/sqlite is pure Go, no CGO
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
