package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)

	var walMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&walMode))
	assert.Equal(t, "wal", walMode)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, "k", []byte("v1")))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestKV_GetPut(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoRow)

	require.NoError(t, db.Put(ctx, "doc", []byte(`{"a":1}`)))
	require.NoError(t, db.Put(ctx, "doc", []byte(`{"a":2}`)))

	got, err := db.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	at, err := db.UpdatedAt(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	_, err = db.UpdatedAt(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoRow)
}

func TestKV_EmptyKeyRejected(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, db.Put(context.Background(), "", []byte("x")))
}
