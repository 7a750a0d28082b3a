// Package persist stores the application document under one fixed key of a
// local key-value backend.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kimhsiao/stash/internal/db"
)

// ErrNotFound is returned by KV.Get when nothing is stored under the key.
var ErrNotFound = errors.New("persist: key not found")

// KV is a minimal key-value backend.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// =====================================================
// File backend
// =====================================================

var safeKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileKV keeps one file per key inside a directory.
type FileKV struct {
	dir string
}

// NewFileKV creates the directory if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) (string, error) {
	if !safeKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

// Get reads the file for key.
func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set writes the file for key atomically: a temp file in the same directory
// is synced and renamed over the target.
func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("failed to replace %s: %w", p, err)
	}
	return nil
}

// Close is a no-op.
func (f *FileKV) Close() error { return nil }

// =====================================================
// SQLite backend
// =====================================================

// SQLiteKV stores keys in the kv table of the SQLite database.
type SQLiteKV struct {
	db *db.DB
}

// NewSQLiteKV opens the database inside dataDir.
func NewSQLiteKV(dataDir string) (*SQLiteKV, error) {
	d, err := db.Open(dataDir)
	if err != nil {
		return nil, err
	}
	return &SQLiteKV{db: d}, nil
}

// Get reads key from the kv table.
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.db.Get(ctx, key)
	if errors.Is(err, db.ErrNoRow) {
		return nil, ErrNotFound
	}
	return v, err
}

// Set upserts key into the kv table.
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Put(ctx, key, value)
}

// Close closes the database.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

// =====================================================
// Redis backend
// =====================================================

// RedisKV stores keys in Redis under a prefix.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to the Redis instance at redisURL.
func NewRedisKV(redisURL string) (*RedisKV, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisKVWithClient(client), nil
}

// NewRedisKVWithClient wraps an existing client.
func NewRedisKVWithClient(client *redis.Client) *RedisKV {
	return &RedisKV{client: client, prefix: "stash:"}
}

// Get reads key.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Set writes key without expiry.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// Open returns the backend named by kind: "file" (default), "sqlite" or
// "redis".
func Open(kind, dataDir, redisURL string) (KV, error) {
	switch kind {
	case "", "file":
		return NewFileKV(dataDir)
	case "sqlite":
		return NewSQLiteKV(dataDir)
	case "redis":
		return NewRedisKV(redisURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
