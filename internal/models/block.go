// Package models provides data model definitions for Stash.
package models

import (
	"strings"
	"time"
)

// BlockType classifies the payload of a Block.
type BlockType string

const (
	BlockTypeText  BlockType = "text"
	BlockTypeLink  BlockType = "link"
	BlockTypeImage BlockType = "image"
)

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	switch t {
	case BlockTypeText, BlockTypeLink, BlockTypeImage:
		return true
	default:
		return false
	}
}

// ParseBlockType converts user input into a BlockType.
func ParseBlockType(s string) (BlockType, bool) {
	t := BlockType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// BlockMetadata holds presentation hints gathered around a block.
type BlockMetadata struct {
	ImageURL  string `json:"imageUrl,omitempty"`
	Favicon   string `json:"favicon,omitempty"`
	AISummary string `json:"aiSummary,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m *BlockMetadata) IsZero() bool {
	return m == nil || (m.ImageURL == "" && m.Favicon == "" && m.AISummary == "")
}

// Block represents a single captured item.
type Block struct {
	ID          string         `json:"id"`
	Type        BlockType      `json:"type"`
	Content     string         `json:"content"`
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Tags        []string       `json:"tags"`
	CreatedAt   int64          `json:"createdAt"` // Unix milliseconds
	ChannelID   string         `json:"channelId"`
	Metadata    *BlockMetadata `json:"metadata,omitempty"`
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (b *Block) CreatedAtTime() time.Time {
	return time.UnixMilli(b.CreatedAt)
}

// TitleOr returns the title, or fallback when the block has none.
func (b *Block) TitleOr(fallback string) string {
	if b.Title == nil || *b.Title == "" {
		return fallback
	}
	return *b.Title
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	out := b
	out.Title = cloneString(b.Title)
	out.Description = cloneString(b.Description)
	if b.Tags != nil {
		out.Tags = append(make([]string, 0, len(b.Tags)), b.Tags...)
	}
	if b.Metadata != nil {
		m := *b.Metadata
		out.Metadata = &m
	}
	return out
}

// String returns a pointer to s, for optional fields.
func String(s string) *string {
	return &s
}

// Deref returns the value behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
