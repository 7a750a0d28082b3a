// Package store holds the application document and the mutations applied to it.
//
// Every mutation in this file is a pure function: it receives the current
// document and returns a new one, never writing through the input. Blocks and
// channels that a mutation does not touch are shared between the old and new
// document, so callers must treat documents as read-only values.
package store

import (
	"fmt"
	"strings"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/models"
)

// AIData is the title/summary/tags triple produced by the AI gateway.
type AIData struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// NewBlock describes a block to be added. ID and CreatedAt are supplied by the
// caller so the mutation stays deterministic.
type NewBlock struct {
	ID        string
	CreatedAt int64
	Content   string
	Type      models.BlockType
	AI        *AIData
	Metadata  *models.BlockMetadata
}

// BlockPatch lists the block fields to replace. Nil fields are left alone; a
// non-nil empty Title or Description clears the field; a non-nil empty Tags
// slice clears the tags.
type BlockPatch struct {
	Content     *string               `json:"content,omitempty"`
	Type        *models.BlockType     `json:"type,omitempty"`
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	ChannelID   *string               `json:"channelId,omitempty"`
	Metadata    *models.BlockMetadata `json:"metadata,omitempty"`
}

// ChannelPatch lists the channel fields to replace. A Vertical of "" or
// "General" moves the channel out of its vertical.
type ChannelPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Vertical    *string `json:"vertical,omitempty"`
}

// =====================================================
// Block mutations
// =====================================================

// AddBlock prepends a new block to the document. The block lands in the
// selected channel, or in the first channel when "all" is selected.
func AddBlock(doc models.Document, nb NewBlock) (models.Document, models.Block, error) {
	if len(doc.Channels) == 0 {
		return doc, models.Block{}, apperrors.New(apperrors.ErrNoChannels, "no channel to add the block to")
	}
	if strings.TrimSpace(nb.Content) == "" {
		return doc, models.Block{}, apperrors.New(apperrors.ErrValidation, "block content is empty")
	}
	if !nb.Type.Valid() {
		return doc, models.Block{}, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown block type %q", nb.Type))
	}

	channelID := doc.Channels[0].ID
	if doc.ActiveChannelID != nil && doc.HasChannel(*doc.ActiveChannelID) {
		channelID = *doc.ActiveChannelID
	}

	block := models.Block{
		ID:        nb.ID,
		Type:      nb.Type,
		Content:   nb.Content,
		Tags:      []string{},
		CreatedAt: nb.CreatedAt,
		ChannelID: channelID,
	}
	if nb.AI != nil {
		block.Title = optional(nb.AI.Title)
		block.Description = optional(nb.AI.Summary)
		block.Tags = append(block.Tags, nb.AI.Tags...)
	}
	if !nb.Metadata.IsZero() {
		m := *nb.Metadata
		block.Metadata = &m
	}

	out := doc
	out.Blocks = make([]models.Block, 0, len(doc.Blocks)+1)
	out.Blocks = append(out.Blocks, block)
	out.Blocks = append(out.Blocks, doc.Blocks...)
	return out, block, nil
}

// UpdateBlock replaces the patched fields of one block.
func UpdateBlock(doc models.Document, id string, patch BlockPatch) (models.Document, models.Block, error) {
	i := doc.BlockIndex(id)
	if i < 0 {
		return doc, models.Block{}, apperrors.New(apperrors.ErrBlockNotFound, fmt.Sprintf("block %s not found", id))
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return doc, models.Block{}, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown block type %q", *patch.Type))
	}
	if patch.ChannelID != nil && !doc.HasChannel(*patch.ChannelID) {
		return doc, models.Block{}, apperrors.New(apperrors.ErrChannelNotFound, fmt.Sprintf("channel %s not found", *patch.ChannelID))
	}

	b := doc.Blocks[i].Clone()
	if patch.Content != nil && strings.TrimSpace(*patch.Content) != "" {
		b.Content = *patch.Content
	}
	if patch.Type != nil {
		b.Type = *patch.Type
	}
	if patch.Title != nil {
		b.Title = optional(*patch.Title)
	}
	if patch.Description != nil {
		b.Description = optional(*patch.Description)
	}
	if patch.Tags != nil {
		b.Tags = append([]string{}, patch.Tags...)
	}
	if patch.ChannelID != nil {
		b.ChannelID = *patch.ChannelID
	}
	if patch.Metadata != nil {
		if patch.Metadata.IsZero() {
			b.Metadata = nil
		} else {
			m := *patch.Metadata
			b.Metadata = &m
		}
	}

	out := doc
	out.Blocks = append([]models.Block(nil), doc.Blocks...)
	out.Blocks[i] = b
	return out, b, nil
}

// DeleteBlock removes one block.
func DeleteBlock(doc models.Document, id string) (models.Document, error) {
	i := doc.BlockIndex(id)
	if i < 0 {
		return doc, apperrors.New(apperrors.ErrBlockNotFound, fmt.Sprintf("block %s not found", id))
	}

	out := doc
	out.Blocks = make([]models.Block, 0, len(doc.Blocks)-1)
	out.Blocks = append(out.Blocks, doc.Blocks[:i]...)
	out.Blocks = append(out.Blocks, doc.Blocks[i+1:]...)
	return out, nil
}

// =====================================================
// Channel mutations
// =====================================================

// CreateChannel appends a channel and selects it.
func CreateChannel(doc models.Document, id string, createdAt int64, title string, vertical *string) (models.Document, models.Channel, error) {
	if strings.TrimSpace(title) == "" {
		return doc, models.Channel{}, apperrors.New(apperrors.ErrValidation, "channel title is empty")
	}

	ch := models.Channel{
		ID:        id,
		Vertical:  models.NormalizeVertical(vertical),
		CreatedAt: createdAt,
	}
	ch.SetTitle(title)

	out := doc
	out.Channels = make([]models.Channel, 0, len(doc.Channels)+1)
	out.Channels = append(out.Channels, doc.Channels...)
	out.Channels = append(out.Channels, ch)
	out.ActiveChannelID = models.String(ch.ID)
	return out, ch, nil
}

// UpdateChannel replaces the patched fields of one channel. A title change
// recomputes the slug; a blank title is ignored.
func UpdateChannel(doc models.Document, id string, patch ChannelPatch) (models.Document, models.Channel, error) {
	i := doc.ChannelIndex(id)
	if i < 0 {
		return doc, models.Channel{}, apperrors.New(apperrors.ErrChannelNotFound, fmt.Sprintf("channel %s not found", id))
	}

	ch := doc.Channels[i].Clone()
	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		ch.SetTitle(*patch.Title)
	}
	if patch.Description != nil {
		ch.Description = optional(*patch.Description)
	}
	if patch.Vertical != nil {
		ch.Vertical = models.NormalizeVertical(patch.Vertical)
	}

	out := doc
	out.Channels = append([]models.Channel(nil), doc.Channels...)
	out.Channels[i] = ch
	return out, ch, nil
}

// DeleteChannel removes a channel together with every block it holds. When
// the channel was selected the selection falls back to "all".
func DeleteChannel(doc models.Document, id string) (models.Document, int, error) {
	i := doc.ChannelIndex(id)
	if i < 0 {
		return doc, 0, apperrors.New(apperrors.ErrChannelNotFound, fmt.Sprintf("channel %s not found", id))
	}

	out := doc
	out.Channels = make([]models.Channel, 0, len(doc.Channels)-1)
	out.Channels = append(out.Channels, doc.Channels[:i]...)
	out.Channels = append(out.Channels, doc.Channels[i+1:]...)

	out.Blocks = make([]models.Block, 0, len(doc.Blocks))
	removed := 0
	for _, b := range doc.Blocks {
		if b.ChannelID == id {
			removed++
			continue
		}
		out.Blocks = append(out.Blocks, b)
	}

	if doc.ActiveChannelID != nil && *doc.ActiveChannelID == id {
		out.ActiveChannelID = nil
	}
	return out, removed, nil
}

// SelectChannel changes the selection. A nil id selects "all".
func SelectChannel(doc models.Document, id *string) (models.Document, error) {
	out := doc
	if id == nil {
		out.ActiveChannelID = nil
		return out, nil
	}
	if !doc.HasChannel(*id) {
		return doc, apperrors.New(apperrors.ErrChannelNotFound, fmt.Sprintf("channel %s not found", *id))
	}
	out.ActiveChannelID = models.String(*id)
	return out, nil
}

// =====================================================
// Vertical mutations
// =====================================================

// RenameVertical moves every channel of oldName into newName. Renaming to
// "General" dissolves the vertical.
func RenameVertical(doc models.Document, oldName, newName string) (models.Document, int, error) {
	target := models.NormalizeVertical(&newName)
	if strings.TrimSpace(newName) == "" {
		return doc, 0, apperrors.New(apperrors.ErrValidation, "vertical name is empty")
	}
	if target != nil && *target == oldName {
		return doc, 0, nil
	}
	out, n := reassignVertical(doc, oldName, target)
	return out, n, nil
}

// DeleteVertical clears the vertical on every channel that carries it.
// Channels and blocks are never removed.
func DeleteVertical(doc models.Document, name string) (models.Document, int) {
	return reassignVertical(doc, name, nil)
}

func reassignVertical(doc models.Document, from string, to *string) (models.Document, int) {
	var channels []models.Channel
	n := 0
	for i := range doc.Channels {
		if !doc.Channels[i].HasVertical(from) {
			continue
		}
		if channels == nil {
			channels = append([]models.Channel(nil), doc.Channels...)
		}
		ch := channels[i].Clone()
		if to == nil {
			ch.Vertical = nil
		} else {
			ch.Vertical = models.String(*to)
		}
		channels[i] = ch
		n++
	}
	if n == 0 {
		return doc, 0
	}
	out := doc
	out.Channels = channels
	return out, n
}

// =====================================================
// Whole-document replacement
// =====================================================

// RepairReport describes what Repair had to change.
type RepairReport struct {
	DroppedBlocks       []string `json:"droppedBlocks,omitempty"`
	SelectionReset      bool     `json:"selectionReset"`
	NormalizedVerticals int      `json:"normalizedVerticals"`
}

// Repair returns a copy of doc that satisfies the document invariants: blocks
// pointing at missing channels are dropped, a dangling selection becomes
// "all", and "General"/blank verticals are cleared. A document without
// channels cannot be repaired.
func Repair(doc models.Document) (models.Document, RepairReport, error) {
	var report RepairReport
	if len(doc.Channels) == 0 {
		return doc, report, apperrors.New(apperrors.ErrNoChannels, "document has no channels")
	}

	out := doc.Clone()
	out.Normalize()

	orphans := make(map[string]struct{})
	for _, id := range out.OrphanedBlocks() {
		orphans[id] = struct{}{}
	}
	if len(orphans) > 0 {
		kept := make([]models.Block, 0, len(out.Blocks)-len(orphans))
		for _, b := range out.Blocks {
			if _, bad := orphans[b.ID]; bad {
				report.DroppedBlocks = append(report.DroppedBlocks, b.ID)
				continue
			}
			kept = append(kept, b)
		}
		out.Blocks = kept
	}

	for i := range out.Channels {
		if out.Channels[i].Vertical == nil {
			continue
		}
		if v := models.NormalizeVertical(out.Channels[i].Vertical); v == nil || *v != *out.Channels[i].Vertical {
			out.Channels[i].Vertical = v
			report.NormalizedVerticals++
		}
	}

	if out.ActiveChannelID != nil && !out.HasChannel(*out.ActiveChannelID) {
		out.ActiveChannelID = nil
		report.SelectionReset = true
	}
	return out, report, nil
}

// optional maps "" to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return models.String(s)
}
