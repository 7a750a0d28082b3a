// Package models provides data model definitions for Stash.
package models

// Seeded channel ids.
const (
	InboxChannelID      = "c_inbox"
	PatternsChannelID   = "c_design"
	TypographyChannelID = "c_typography"
	ArticlesChannelID   = "c_reading"
)

// Document is the persisted root aggregate: every block, every channel and the
// current selection. A nil ActiveChannelID means "all channels".
type Document struct {
	Blocks          []Block   `json:"blocks"`
	Channels        []Channel `json:"channels"`
	ActiveChannelID *string   `json:"activeChannelId"`
}

// DefaultDocument returns the seeded starter document.
func DefaultDocument(nowMillis int64) Document {
	return Document{
		Blocks: []Block{},
		Channels: []Channel{
			{ID: InboxChannelID, Title: "Inbox", Slug: "inbox", CreatedAt: nowMillis},
			{ID: PatternsChannelID, Title: "Patterns", Slug: "patterns", Vertical: String("Design"), CreatedAt: nowMillis},
			{ID: TypographyChannelID, Title: "Typography", Slug: "typography", Vertical: String("Design"), CreatedAt: nowMillis},
			{ID: ArticlesChannelID, Title: "Articles", Slug: "articles", Vertical: String("Reading"), CreatedAt: nowMillis},
		},
		ActiveChannelID: String(InboxChannelID),
	}
}

// IsAllSelected reports whether no specific channel is selected.
func (d *Document) IsAllSelected() bool {
	return d.ActiveChannelID == nil
}

// BlockIndex returns the index of the block with id, or -1.
func (d *Document) BlockIndex(id string) int {
	for i := range d.Blocks {
		if d.Blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// ChannelIndex returns the index of the channel with id, or -1.
func (d *Document) ChannelIndex(id string) int {
	for i := range d.Channels {
		if d.Channels[i].ID == id {
			return i
		}
	}
	return -1
}

// FindBlock returns the block with id.
func (d *Document) FindBlock(id string) (Block, bool) {
	if i := d.BlockIndex(id); i >= 0 {
		return d.Blocks[i], true
	}
	return Block{}, false
}

// FindChannel returns the channel with id.
func (d *Document) FindChannel(id string) (Channel, bool) {
	if i := d.ChannelIndex(id); i >= 0 {
		return d.Channels[i], true
	}
	return Channel{}, false
}

// HasChannel reports whether a channel with id exists.
func (d *Document) HasChannel(id string) bool {
	return d.ChannelIndex(id) >= 0
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{
		Blocks:          make([]Block, len(d.Blocks)),
		Channels:        make([]Channel, len(d.Channels)),
		ActiveChannelID: cloneString(d.ActiveChannelID),
	}
	for i := range d.Blocks {
		out.Blocks[i] = d.Blocks[i].Clone()
	}
	for i := range d.Channels {
		out.Channels[i] = d.Channels[i].Clone()
	}
	return out
}

// Normalize replaces nil lists with empty ones so that a document survives
// a JSON round trip unchanged.
func (d *Document) Normalize() {
	if d.Blocks == nil {
		d.Blocks = []Block{}
	}
	if d.Channels == nil {
		d.Channels = []Channel{}
	}
	for i := range d.Blocks {
		if d.Blocks[i].Tags == nil {
			d.Blocks[i].Tags = []string{}
		}
	}
}

// OrphanedBlocks returns the ids of blocks whose channel does not exist.
func (d *Document) OrphanedBlocks() []string {
	known := make(map[string]struct{}, len(d.Channels))
	for _, c := range d.Channels {
		known[c.ID] = struct{}{}
	}
	var orphans []string
	for _, b := range d.Blocks {
		if _, ok := known[b.ChannelID]; !ok {
			orphans = append(orphans, b.ID)
		}
	}
	return orphans
}
