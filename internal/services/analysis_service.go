// Package services provides analysis orchestration between the store and the
// AI gateway.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/stash/internal/analysis"
	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/store"
	"github.com/kimhsiao/stash/internal/view"
)

// DefaultConnectionQuestion is asked when the caller supplies none.
const DefaultConnectionQuestion = "Find a hidden theme or interesting connection between these items."

// Analyzer is the subset of the AI gateway the service needs.
type Analyzer interface {
	Analyze(ctx context.Context, content string, t models.BlockType) analysis.Result
	FindConnections(ctx context.Context, question string, excerpts []string) string
}

// AnalysisConfig holds configuration for the analysis service.
type AnalysisConfig struct {
	// Timeout bounds one background analysis.
	Timeout time.Duration
}

// DefaultAnalysisConfig returns sensible defaults.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{Timeout: 90 * time.Second}
}

// AnalysisService coordinates AI calls with store mutations. Calls to the
// analyzer run without holding the store lock; results are merged through
// analysis tickets so that late replies never overwrite newer edits.
type AnalysisService struct {
	store    *store.Store
	analyzer Analyzer
	config   *AnalysisConfig

	// Event callbacks for WebSocket notifications
	onAnalysisStarted   func(blockID string)
	onAnalysisCompleted func(blockID string, block models.Block)
	onAnalysisFailed    func(blockID string, err error)

	wg sync.WaitGroup
	mu sync.RWMutex
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(st *store.Store, analyzer Analyzer, config *AnalysisConfig) *AnalysisService {
	if config == nil {
		config = DefaultAnalysisConfig()
	}
	return &AnalysisService{
		store:    st,
		analyzer: analyzer,
		config:   config,
	}
}

// SetEventCallbacks sets callbacks for analysis events.
func (s *AnalysisService) SetEventCallbacks(
	started func(blockID string),
	completed func(blockID string, block models.Block),
	failed func(blockID string, err error),
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onAnalysisStarted = started
	s.onAnalysisCompleted = completed
	s.onAnalysisFailed = failed
}

// Preview analyzes content without touching the document.
func (s *AnalysisService) Preview(ctx context.Context, content string, t models.BlockType) (analysis.Result, error) {
	if strings.TrimSpace(content) == "" {
		return analysis.Result{}, apperrors.New(apperrors.ErrValidation, "content is empty")
	}
	if t == models.BlockTypeImage {
		return analysis.Result{}, apperrors.New(apperrors.ErrValidation, "image blocks cannot be analyzed")
	}
	return s.analyzer.Analyze(ctx, content, t), nil
}

// CreateBlock adds a block, optionally analyzing it first. Image blocks are
// stored without analysis.
func (s *AnalysisService) CreateBlock(ctx context.Context, content string, t models.BlockType, analyze bool, ai *store.AIData, meta *models.BlockMetadata) (models.Block, error) {
	if analyze && ai == nil && t != models.BlockTypeImage && strings.TrimSpace(content) != "" {
		res := s.analyzer.Analyze(ctx, content, t)
		ai = ToAIData(res)
	}
	return s.store.AddBlock(content, t, ai, meta)
}

// AnalyzeBlock re-analyzes an existing block and merges the result.
func (s *AnalysisService) AnalyzeBlock(ctx context.Context, blockID string) (models.Block, error) {
	ticket, err := s.store.BeginAnalysis(blockID)
	if err != nil {
		return models.Block{}, err
	}
	return s.run(ctx, ticket)
}

// AnalyzeBlockAsync reserves the block and analyzes it in the background.
// The reservation errors (unknown block, image, already running) are
// returned synchronously; the outcome is reported through the callbacks.
func (s *AnalysisService) AnalyzeBlockAsync(blockID string) (store.AnalysisTicket, error) {
	ticket, err := s.store.BeginAnalysis(blockID)
	if err != nil {
		return store.AnalysisTicket{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()
		_, _ = s.run(ctx, ticket)
	}()
	return ticket, nil
}

// Wait blocks until every background analysis has finished.
func (s *AnalysisService) Wait() {
	s.wg.Wait()
}

func (s *AnalysisService) run(ctx context.Context, ticket store.AnalysisTicket) (models.Block, error) {
	s.mu.RLock()
	started, completed, failed := s.onAnalysisStarted, s.onAnalysisCompleted, s.onAnalysisFailed
	s.mu.RUnlock()

	if started != nil {
		started(ticket.BlockID)
	}

	res := s.analyzer.Analyze(ctx, ticket.Content, ticket.Type)
	if err := ctx.Err(); err != nil {
		s.store.CancelAnalysis(ticket)
		err = apperrors.Wrap(apperrors.ErrAIFailed, "analysis cancelled", err)
		if failed != nil {
			failed(ticket.BlockID, err)
		}
		return models.Block{}, err
	}

	block, err := s.store.ApplyAnalysis(ticket, *ToAIData(res))
	if err != nil {
		logging.Warn("Discarding analysis result", map[string]interface{}{
			"block_id": ticket.BlockID,
			"reason":   err.Error(),
		})
		if failed != nil {
			failed(ticket.BlockID, err)
		}
		return models.Block{}, err
	}

	if completed != nil {
		completed(ticket.BlockID, block)
	}
	return block, nil
}

// FindConnections asks for a theme across the currently visible blocks.
// At least two blocks must be visible.
func (s *AnalysisService) FindConnections(ctx context.Context, question, query string) (string, error) {
	visible := view.VisibleBlocks(s.store.Snapshot(), query)
	if len(visible) < 2 {
		return "", apperrors.New(apperrors.ErrValidation, "at least two blocks are needed to find connections")
	}
	if strings.TrimSpace(question) == "" {
		question = DefaultConnectionQuestion
	}
	return s.analyzer.FindConnections(ctx, question, view.ConnectionExcerpts(visible)), nil
}

// ToAIData converts a gateway result into store input.
func ToAIData(r analysis.Result) *store.AIData {
	return &store.AIData{
		Title:   r.Title,
		Summary: r.Summary,
		Tags:    append([]string{}, r.Tags...),
	}
}
