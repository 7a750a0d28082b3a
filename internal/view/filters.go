// Package view derives what the UI shows from a document: the visible
// blocks of the current selection and the channel list grouped by vertical.
package view

import (
	"strings"

	"github.com/kimhsiao/stash/internal/models"
)

// Filter is a single block predicate.
type Filter interface {
	// Valid reports whether the filter restricts anything.
	Valid() bool

	// Match reports whether the block passes the filter.
	Match(b *models.Block) bool
}

// ChannelFilter keeps blocks of one channel.
type ChannelFilter struct {
	ChannelID string
}

// Valid checks if a channel id is set.
func (f *ChannelFilter) Valid() bool {
	return f.ChannelID != ""
}

// Match reports whether the block lives in the channel.
func (f *ChannelFilter) Match(b *models.Block) bool {
	return b.ChannelID == f.ChannelID
}

// QueryFilter keeps blocks whose content, title or any tag contains the
// query, ignoring case.
type QueryFilter struct {
	Query string
}

// Valid checks if the query is non-blank.
func (f *QueryFilter) Valid() bool {
	return strings.TrimSpace(f.Query) != ""
}

// Match performs the case-insensitive substring search. Surrounding
// spaces are part of the query.
func (f *QueryFilter) Match(b *models.Block) bool {
	q := strings.ToLower(f.Query)
	if strings.Contains(strings.ToLower(b.Content), q) {
		return true
	}
	if b.Title != nil && strings.Contains(strings.ToLower(*b.Title), q) {
		return true
	}
	for _, tag := range b.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// TypeFilter keeps blocks of one type.
type TypeFilter struct {
	Type models.BlockType
}

// Valid checks if the type is known.
func (f *TypeFilter) Valid() bool {
	return f.Type.Valid()
}

// Match compares the block type.
func (f *TypeFilter) Match(b *models.Block) bool {
	return b.Type == f.Type
}

// TagFilter keeps blocks carrying any of the tags. Comparison ignores case.
type TagFilter struct {
	Tags []string
}

// Valid checks that at least one non-blank tag is given.
func (f *TagFilter) Valid() bool {
	if len(f.Tags) == 0 {
		return false
	}
	for _, tag := range f.Tags {
		if strings.TrimSpace(tag) == "" {
			return false
		}
	}
	return true
}

// Match uses OR logic across the tags.
func (f *TagFilter) Match(b *models.Block) bool {
	for _, want := range f.Tags {
		for _, have := range b.Tags {
			if strings.EqualFold(strings.TrimSpace(want), have) {
				return true
			}
		}
	}
	return false
}

// FilterSet combines filters with AND logic. Invalid filters are skipped.
type FilterSet struct {
	filters []Filter
}

// NewFilterSet creates a FilterSet from filters.
func NewFilterSet(filters ...Filter) *FilterSet {
	fs := &FilterSet{filters: make([]Filter, 0, len(filters))}
	for _, f := range filters {
		fs.Add(f)
	}
	return fs
}

// Add appends a filter when it is valid.
func (fs *FilterSet) Add(f Filter) *FilterSet {
	if f != nil && f.Valid() {
		fs.filters = append(fs.filters, f)
	}
	return fs
}

// Len returns the number of active filters.
func (fs *FilterSet) Len() int {
	return len(fs.filters)
}

// Match reports whether the block passes every filter.
func (fs *FilterSet) Match(b *models.Block) bool {
	for _, f := range fs.filters {
		if !f.Match(b) {
			return false
		}
	}
	return true
}

// Apply returns the blocks that pass, preserving order.
func (fs *FilterSet) Apply(blocks []models.Block) []models.Block {
	out := make([]models.Block, 0, len(blocks))
	for i := range blocks {
		if fs.Match(&blocks[i]) {
			out = append(out, blocks[i])
		}
	}
	return out
}
