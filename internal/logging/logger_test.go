// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line: %s", line)
		out = append(out, m)
	}
	return out
}

// =====================================================
// Logger Creation and Initialization Tests
// =====================================================

func TestInit_idempotent(t *testing.T) {
	global = nil
	once = sync.Once{}

	var buf1, buf2 bytes.Buffer
	Init(&buf1, LevelInfo)
	first := Get()

	Init(&buf2, LevelDebug)

	assert.Same(t, first, Get())
	assert.Equal(t, &buf1, Get().out)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

// =====================================================
// Output Tests
// =====================================================

func TestLogger_WritesJSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)

	l.Info("block added", map[string]interface{}{"block_id": "b_1"}, map[string]interface{}{"channel_id": "c_inbox"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "block added", lines[0]["message"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "b_1", lines[0]["block_id"])
	assert.Equal(t, "c_inbox", lines[0]["channel_id"])
	assert.Contains(t, lines[0], "timestamp")
}

func TestLogger_ErrorIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.Error("save failed", errors.New("disk full"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "disk full", lines[0]["error"])
	assert.Equal(t, "error", lines[0]["level"])
}

func TestLogger_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}
