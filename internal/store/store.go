package store

import (
	"sync"
	"time"

	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/uuid"
)

// Change operations reported to subscribers.
const (
	OpBlockAdded       = "block.added"
	OpBlockUpdated     = "block.updated"
	OpBlockDeleted     = "block.deleted"
	OpChannelCreated   = "channel.created"
	OpChannelUpdated   = "channel.updated"
	OpChannelDeleted   = "channel.deleted"
	OpChannelSelected  = "channel.selected"
	OpVerticalRenamed  = "vertical.renamed"
	OpVerticalDeleted  = "vertical.deleted"
	OpDocumentReplaced = "document.replaced"
	OpAnalysisApplied  = "analysis.applied"
)

// Change describes one committed mutation.
type Change struct {
	Op       string `json:"op"`
	TargetID string `json:"targetId,omitempty"`
}

// Sink receives every committed document, in commit order.
// persist.Writer is the production implementation.
type Sink interface {
	Enqueue(doc models.Document)
}

// Option configures a Store.
type Option func(*Store)

// WithSink sets the destination for committed documents.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the block and channel id generators.
func WithIDs(blockID, channelID func() string) Option {
	return func(s *Store) {
		s.newBlockID = blockID
		s.newChannelID = channelID
	}
}

// Store owns the live document. Mutations are serialized; readers get
// independent snapshots.
type Store struct {
	mu  sync.RWMutex
	doc models.Document

	sink         Sink
	now          func() time.Time
	newBlockID   func() string
	newChannelID func() string

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int

	tickets *ticketBook
}

// New creates a Store around an initial document. The document is repaired
// first; a document without channels is replaced by the seeded default.
func New(initial models.Document, opts ...Option) *Store {
	s := &Store{
		now:          time.Now,
		newBlockID:   uuid.NewBlockID,
		newChannelID: uuid.NewChannelID,
		subs:         make(map[int]func(Change)),
		tickets:      newTicketBook(),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, report, err := Repair(initial)
	if err != nil {
		logging.Warn("Initial document has no channels, using defaults", map[string]interface{}{
			"blocks": len(initial.Blocks),
		})
		doc = models.DefaultDocument(s.now().UnixMilli())
	} else if len(report.DroppedBlocks) > 0 || report.SelectionReset {
		logging.Warn("Repaired initial document", map[string]interface{}{
			"dropped_blocks":  len(report.DroppedBlocks),
			"selection_reset": report.SelectionReset,
		})
	}
	s.doc = doc
	return s
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Subscribe registers fn to be called after every committed mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// commit installs doc as the current document and hands it to the sink.
// Callers hold s.mu.
func (s *Store) commit(doc models.Document) {
	s.doc = doc
	if s.sink != nil {
		s.sink.Enqueue(doc.Clone())
	}
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// =====================================================
// Blocks
// =====================================================

// AddBlock creates a block in the selected channel.
func (s *Store) AddBlock(content string, t models.BlockType, ai *AIData, meta *models.BlockMetadata) (models.Block, error) {
	s.mu.Lock()
	doc, b, err := AddBlock(s.doc, NewBlock{
		ID:        s.newBlockID(),
		CreatedAt: s.now().UnixMilli(),
		Content:   content,
		Type:      t,
		AI:        ai,
		Metadata:  meta,
	})
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return models.Block{}, err
	}
	s.notify(Change{Op: OpBlockAdded, TargetID: b.ID})
	return b.Clone(), nil
}

// UpdateBlock applies a patch to a block.
func (s *Store) UpdateBlock(id string, patch BlockPatch) (models.Block, error) {
	s.mu.Lock()
	doc, b, err := UpdateBlock(s.doc, id, patch)
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return models.Block{}, err
	}
	s.notify(Change{Op: OpBlockUpdated, TargetID: id})
	return b.Clone(), nil
}

// DeleteBlock removes a block.
func (s *Store) DeleteBlock(id string) error {
	s.mu.Lock()
	doc, err := DeleteBlock(s.doc, id)
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(Change{Op: OpBlockDeleted, TargetID: id})
	return nil
}

// =====================================================
// Channels and verticals
// =====================================================

// CreateChannel adds a channel and selects it.
func (s *Store) CreateChannel(title string, vertical *string) (models.Channel, error) {
	s.mu.Lock()
	doc, ch, err := CreateChannel(s.doc, s.newChannelID(), s.now().UnixMilli(), title, vertical)
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return models.Channel{}, err
	}
	s.notify(Change{Op: OpChannelCreated, TargetID: ch.ID})
	return ch.Clone(), nil
}

// UpdateChannel applies a patch to a channel.
func (s *Store) UpdateChannel(id string, patch ChannelPatch) (models.Channel, error) {
	s.mu.Lock()
	doc, ch, err := UpdateChannel(s.doc, id, patch)
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return models.Channel{}, err
	}
	s.notify(Change{Op: OpChannelUpdated, TargetID: id})
	return ch.Clone(), nil
}

// DeleteChannel removes a channel and its blocks. It returns the number of
// blocks removed.
func (s *Store) DeleteChannel(id string) (int, error) {
	s.mu.Lock()
	doc, n, err := DeleteChannel(s.doc, id)
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	s.notify(Change{Op: OpChannelDeleted, TargetID: id})
	return n, nil
}

// SelectChannel sets the selection. A nil id selects all channels.
func (s *Store) SelectChannel(id *string) error {
	s.mu.Lock()
	doc, err := SelectChannel(s.doc, id)
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(Change{Op: OpChannelSelected, TargetID: models.Deref(id)})
	return nil
}

// RenameVertical moves every channel of oldName into newName and returns how
// many channels moved.
func (s *Store) RenameVertical(oldName, newName string) (int, error) {
	s.mu.Lock()
	doc, n, err := RenameVertical(s.doc, oldName, newName)
	if err == nil && n > 0 {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notify(Change{Op: OpVerticalRenamed, TargetID: oldName})
	}
	return n, nil
}

// DeleteVertical ungroups every channel of name and returns how many
// channels changed.
func (s *Store) DeleteVertical(name string) int {
	s.mu.Lock()
	doc, n := DeleteVertical(s.doc, name)
	if n > 0 {
		s.commit(doc)
	}
	s.mu.Unlock()

	if n > 0 {
		s.notify(Change{Op: OpVerticalDeleted, TargetID: name})
	}
	return n
}

// ReplaceDocument swaps in a whole document, typically an import. Pending
// analyses are abandoned.
func (s *Store) ReplaceDocument(doc models.Document) (RepairReport, error) {
	repaired, report, err := Repair(doc)
	if err != nil {
		return report, err
	}

	s.mu.Lock()
	s.commit(repaired)
	s.tickets.reset()
	s.mu.Unlock()

	s.notify(Change{Op: OpDocumentReplaced})
	return report, nil
}
