package view

import (
	"fmt"
	"sort"

	"github.com/kimhsiao/stash/internal/models"
)

const (
	// MaxExcerpts bounds how many blocks are sent for connection finding.
	MaxExcerpts = 15

	// ExcerptContentLimit bounds the content of each excerpt, in characters.
	ExcerptContentLimit = 200
)

// VisibleBlocks returns the blocks of the selected channel (all blocks when
// "all" is selected) that match query, newest first. The input is not
// modified.
func VisibleBlocks(doc models.Document, query string, extra ...Filter) []models.Block {
	fs := NewFilterSet(&QueryFilter{Query: query})
	if doc.ActiveChannelID != nil {
		fs.Add(&ChannelFilter{ChannelID: *doc.ActiveChannelID})
	}
	for _, f := range extra {
		fs.Add(f)
	}

	out := fs.Apply(doc.Blocks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// ChannelGroups is the sidebar view of the channel list.
type ChannelGroups struct {
	Ungrouped  []models.Channel            `json:"ungrouped"`
	ByVertical map[string][]models.Channel `json:"byVertical"`
	Verticals  []string                    `json:"verticals"`
}

// GroupChannels splits channels by vertical. Channel order inside a group
// follows the input order; vertical names are sorted ascending.
func GroupChannels(channels []models.Channel) ChannelGroups {
	g := ChannelGroups{
		Ungrouped:  []models.Channel{},
		ByVertical: make(map[string][]models.Channel),
	}
	for _, ch := range channels {
		if ch.Vertical == nil {
			g.Ungrouped = append(g.Ungrouped, ch)
			continue
		}
		g.ByVertical[*ch.Vertical] = append(g.ByVertical[*ch.Vertical], ch)
	}
	g.Verticals = make([]string, 0, len(g.ByVertical))
	for name := range g.ByVertical {
		g.Verticals = append(g.Verticals, name)
	}
	sort.Strings(g.Verticals)
	return g
}

// Verticals returns the distinct vertical names, sorted.
func Verticals(channels []models.Channel) []string {
	return GroupChannels(channels).Verticals
}

// ActiveChannel returns the selected channel. It reports false when "all"
// is selected or the selection is dangling.
func ActiveChannel(doc models.Document) (models.Channel, bool) {
	if doc.ActiveChannelID == nil {
		return models.Channel{}, false
	}
	return doc.FindChannel(*doc.ActiveChannelID)
}

// ConnectionExcerpts renders the first MaxExcerpts blocks as one-line
// excerpts for the connection finder.
func ConnectionExcerpts(blocks []models.Block) []string {
	n := len(blocks)
	if n > MaxExcerpts {
		n = MaxExcerpts
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		b := &blocks[i]
		out = append(out, fmt.Sprintf("[%s] %s: %s", b.Type, b.TitleOr("Untitled"), Truncate(b.Content, ExcerptContentLimit)))
	}
	return out
}

// Truncate cuts s to at most limit characters.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
