// Package uuid provides unit tests for id generation.
package uuid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var v4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestNew(t *testing.T) {
	assert.Regexp(t, v4, New())
}

func TestNewPrefixed(t *testing.T) {
	id := NewBlockID()
	require.True(t, HasPrefix(id, BlockPrefix), id)
	assert.Regexp(t, v4, id[2:])

	assert.True(t, HasPrefix(NewChannelID(), ChannelPrefix))
	assert.Regexp(t, v4, NewPrefixed(""))
}

func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewBlockID()
		require.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("c_inbox", "c"))
	assert.False(t, HasPrefix("c_", "c"))
	assert.False(t, HasPrefix("b_123", "c"))
	assert.False(t, HasPrefix("cinbox", "c"))
}

func TestParsePrefixed(t *testing.T) {
	id := NewChannelID()
	prefix, u, err := ParsePrefixed(id)
	require.NoError(t, err)
	assert.Equal(t, "c", prefix)
	assert.Equal(t, id[2:], u.String())

	_, _, err = ParsePrefixed("c_inbox")
	assert.Error(t, err)

	_, _, err = ParsePrefixed("noprefix")
	assert.Error(t, err)
}
