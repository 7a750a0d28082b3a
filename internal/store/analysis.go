package store

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/uuid"
)

// AnalysisTicket records what a block looked like when its analysis began.
// A result may only be applied while the ticket is current and the block
// still has the same content and type.
type AnalysisTicket struct {
	ID       string           `json:"id"`
	BlockID  string           `json:"blockId"`
	Content  string           `json:"-"`
	Type     models.BlockType `json:"type"`
	IssuedAt time.Time        `json:"issuedAt"`
}

type ticketBook struct {
	mu      sync.Mutex
	pending map[string]string // block id -> ticket id
}

func newTicketBook() *ticketBook {
	return &ticketBook{pending: make(map[string]string)}
}

func (tb *ticketBook) issue(blockID string) (string, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if _, busy := tb.pending[blockID]; busy {
		return "", false
	}
	id := uuid.New()
	tb.pending[blockID] = id
	return id, true
}

// redeem removes the ticket and reports whether it was current.
func (tb *ticketBook) redeem(t AnalysisTicket) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.pending[t.BlockID] != t.ID {
		return false
	}
	delete(tb.pending, t.BlockID)
	return true
}

func (tb *ticketBook) busy(blockID string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	_, ok := tb.pending[blockID]
	return ok
}

func (tb *ticketBook) reset() {
	tb.mu.Lock()
	tb.pending = make(map[string]string)
	tb.mu.Unlock()
}

// BeginAnalysis reserves a block for re-analysis. Only one analysis per
// block may be in flight. Image blocks are never sent for analysis.
func (s *Store) BeginAnalysis(blockID string) (AnalysisTicket, error) {
	s.mu.RLock()
	b, ok := s.doc.FindBlock(blockID)
	s.mu.RUnlock()

	if !ok {
		return AnalysisTicket{}, apperrors.New(apperrors.ErrBlockNotFound, fmt.Sprintf("block %s not found", blockID))
	}
	if b.Type == models.BlockTypeImage {
		return AnalysisTicket{}, apperrors.New(apperrors.ErrValidation, "image blocks cannot be analyzed")
	}

	id, ok := s.tickets.issue(blockID)
	if !ok {
		return AnalysisTicket{}, apperrors.New(apperrors.ErrAIInProgress, fmt.Sprintf("analysis already running for block %s", blockID))
	}
	return AnalysisTicket{
		ID:       id,
		BlockID:  blockID,
		Content:  b.Content,
		Type:     b.Type,
		IssuedAt: s.now(),
	}, nil
}

// ApplyAnalysis writes an analysis result onto the ticket's block. The result
// is discarded with ErrAIStale when the ticket was superseded or the block
// was deleted or edited in the meantime.
func (s *Store) ApplyAnalysis(t AnalysisTicket, ai AIData) (models.Block, error) {
	if !s.tickets.redeem(t) {
		return models.Block{}, apperrors.New(apperrors.ErrAIStale, "analysis ticket is no longer current")
	}

	s.mu.Lock()
	cur, ok := s.doc.FindBlock(t.BlockID)
	if !ok || cur.Content != t.Content || cur.Type != t.Type {
		s.mu.Unlock()
		return models.Block{}, apperrors.New(apperrors.ErrAIStale, fmt.Sprintf("block %s changed during analysis", t.BlockID))
	}

	tags := append([]string{}, ai.Tags...)
	doc, b, err := UpdateBlock(s.doc, t.BlockID, BlockPatch{
		Title:       &ai.Title,
		Description: &ai.Summary,
		Tags:        tags,
	})
	if err == nil {
		s.commit(doc)
	}
	s.mu.Unlock()

	if err != nil {
		return models.Block{}, err
	}
	s.notify(Change{Op: OpAnalysisApplied, TargetID: t.BlockID})
	return b.Clone(), nil
}

// CancelAnalysis releases a ticket without applying anything.
func (s *Store) CancelAnalysis(t AnalysisTicket) {
	s.tickets.redeem(t)
}

// AnalysisPending reports whether an analysis is in flight for the block.
func (s *Store) AnalysisPending(blockID string) bool {
	return s.tickets.busy(blockID)
}
