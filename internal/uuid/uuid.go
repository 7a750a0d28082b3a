// Package uuid provides identifier generation for blocks and channels.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// BlockPrefix prefixes every generated block id.
	BlockPrefix = "b"
	// ChannelPrefix prefixes every generated channel id.
	ChannelPrefix = "c"
)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewPrefixed generates an id of the form "<prefix>_<uuid v4>".
func NewPrefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "_" + New()
}

// NewBlockID generates a fresh block id.
func NewBlockID() string {
	return NewPrefixed(BlockPrefix)
}

// NewChannelID generates a fresh channel id.
func NewChannelID() string {
	return NewPrefixed(ChannelPrefix)
}

// HasPrefix reports whether id was generated with the given prefix.
// Seeded ids such as "c_inbox" also match.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_") && len(id) > len(prefix)+1
}

// ParsePrefixed splits a prefixed id and validates the UUID part.
func ParsePrefixed(id string) (prefix string, u uuid.UUID, err error) {
	i := strings.IndexByte(id, '_')
	if i <= 0 {
		return "", uuid.Nil, fmt.Errorf("invalid prefixed id: %q", id)
	}
	u, err = uuid.Parse(id[i+1:])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	if u.Version() != 4 {
		return "", uuid.Nil, fmt.Errorf("expected UUID v4, got v%d", u.Version())
	}
	return id[:i], u, nil
}
