// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================================================
// Block Tests
// =====================================================

func TestBlockType_Valid(t *testing.T) {
	assert.True(t, BlockTypeText.Valid())
	assert.True(t, BlockTypeLink.Valid())
	assert.True(t, BlockTypeImage.Valid())
	assert.False(t, BlockType("video").Valid())

	bt, ok := ParseBlockType(" LINK ")
	assert.True(t, ok)
	assert.Equal(t, BlockTypeLink, bt)
}

func TestBlock_CreatedAtTime(t *testing.T) {
	b := Block{CreatedAt: 1609459200000}
	assert.True(t, b.CreatedAtTime().Equal(time.Unix(1609459200, 0)))
}

func TestBlock_TitleOr(t *testing.T) {
	b := Block{}
	assert.Equal(t, "Untitled", b.TitleOr("Untitled"))
	b.Title = String("")
	assert.Equal(t, "Untitled", b.TitleOr("Untitled"))
	b.Title = String("Grid systems")
	assert.Equal(t, "Grid systems", b.TitleOr("Untitled"))
}

func TestBlock_CloneIsDeep(t *testing.T) {
	b := Block{
		ID:       "b_1",
		Title:    String("a"),
		Tags:     []string{"x"},
		Metadata: &BlockMetadata{Favicon: "f"},
	}
	c := b.Clone()
	*c.Title = "changed"
	c.Tags[0] = "y"
	c.Metadata.Favicon = "g"

	assert.Equal(t, "a", *b.Title)
	assert.Equal(t, "x", b.Tags[0])
	assert.Equal(t, "f", b.Metadata.Favicon)
}

func TestBlock_JSONShape(t *testing.T) {
	b := Block{ID: "b_1", Type: BlockTypeText, Content: "hi", Tags: []string{}, CreatedAt: 5, ChannelID: "c_inbox"}
	data, err := json.Marshal(b)
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"b_1","type":"text","content":"hi","tags":[],"createdAt":5,"channelId":"c_inbox"}`, string(data))
}

// =====================================================
// Channel Tests
// =====================================================

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Inbox", "inbox"},
		{"Reading List", "reading-list"},
		{"Deep   Work\tNotes", "deep-work-notes"},
		{"already-slug", "already-slug"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestChannel_SetTitleRecomputesSlug(t *testing.T) {
	c := Channel{Title: "Old", Slug: "old"}
	c.SetTitle("Brand New")
	assert.Equal(t, "Brand New", c.Title)
	assert.Equal(t, "brand-new", c.Slug)
}

func TestNormalizeVertical(t *testing.T) {
	assert.Nil(t, NormalizeVertical(nil))
	assert.Nil(t, NormalizeVertical(String("")))
	assert.Nil(t, NormalizeVertical(String("  ")))
	assert.Nil(t, NormalizeVertical(String(GeneralVertical)))
	assert.Equal(t, "Design", *NormalizeVertical(String(" Design ")))
}

func TestChannel_HasVertical(t *testing.T) {
	c := Channel{Vertical: String("Design")}
	assert.True(t, c.HasVertical("Design"))
	assert.False(t, c.HasVertical("Reading"))
	assert.False(t, (&Channel{}).HasVertical(""))
}

// =====================================================
// Document Tests
// =====================================================

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument(42)

	require.Len(t, doc.Channels, 4)
	assert.Empty(t, doc.Blocks)
	assert.NotNil(t, doc.Blocks)
	require.NotNil(t, doc.ActiveChannelID)
	assert.Equal(t, InboxChannelID, *doc.ActiveChannelID)
	assert.Nil(t, doc.Channels[0].Vertical)
	assert.Equal(t, "Design", *doc.Channels[1].Vertical)
	for _, c := range doc.Channels {
		assert.Equal(t, Slugify(c.Title), c.Slug)
		assert.Equal(t, int64(42), c.CreatedAt)
	}
}

func TestDocument_ActiveChannelIDNullJSON(t *testing.T) {
	doc := Document{Blocks: []Block{}, Channels: []Channel{}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[],"channels":[],"activeChannelId":null}`, string(data))
	assert.True(t, doc.IsAllSelected())
}

func TestDocument_Lookups(t *testing.T) {
	doc := DefaultDocument(1)
	doc.Blocks = []Block{{ID: "b_1", ChannelID: InboxChannelID}}

	assert.Equal(t, 0, doc.BlockIndex("b_1"))
	assert.Equal(t, -1, doc.BlockIndex("missing"))
	assert.True(t, doc.HasChannel(ArticlesChannelID))
	assert.False(t, doc.HasChannel("c_missing"))

	_, ok := doc.FindBlock("b_1")
	assert.True(t, ok)
	ch, ok := doc.FindChannel(PatternsChannelID)
	assert.True(t, ok)
	assert.Equal(t, "Patterns", ch.Title)
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc := DefaultDocument(1)
	doc.Blocks = []Block{{ID: "b_1", Tags: []string{"a"}}}

	c := doc.Clone()
	c.Blocks[0].Tags[0] = "z"
	*c.Channels[1].Vertical = "Visual"
	*c.ActiveChannelID = "c_other"

	assert.Equal(t, "a", doc.Blocks[0].Tags[0])
	assert.Equal(t, "Design", *doc.Channels[1].Vertical)
	assert.Equal(t, InboxChannelID, *doc.ActiveChannelID)
}

func TestDocument_NormalizeAndOrphans(t *testing.T) {
	doc := Document{
		Blocks:   []Block{{ID: "b_1", ChannelID: "c_a"}, {ID: "b_2", ChannelID: "c_gone"}},
		Channels: []Channel{{ID: "c_a"}},
	}
	doc.Normalize()

	assert.NotNil(t, doc.Blocks[0].Tags)
	assert.Equal(t, []string{"b_2"}, doc.OrphanedBlocks())

	var empty Document
	empty.Normalize()
	assert.NotNil(t, empty.Blocks)
	assert.NotNil(t, empty.Channels)
}
