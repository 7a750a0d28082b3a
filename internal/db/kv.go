package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoRow is returned by Get when the key is absent.
var ErrNoRow = errors.New("db: key not found")

// Get returns the value stored under key.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRow
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// UpdatedAt returns when key was last written.
func (db *DB) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var ms int64
	err := db.QueryRowContext(ctx, "SELECT updated_at FROM kv WHERE key = ?", key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNoRow
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return time.UnixMilli(ms), nil
}
