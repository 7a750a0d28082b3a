package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/stash/internal/capture"
	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/parser"
	"github.com/kimhsiao/stash/internal/services"
	"github.com/kimhsiao/stash/internal/store"
	"github.com/kimhsiao/stash/internal/view"
)

// previewTimeout bounds the link preview fetch done while creating a block.
const previewTimeout = 5 * time.Second

// LinkPreviewer fetches link metadata. *parser.LinkPreviewer satisfies it.
type LinkPreviewer interface {
	Preview(ctx context.Context, url string) (*parser.Preview, error)
}

// BlockHandler handles block operations.
type BlockHandler struct {
	store     *store.Store
	analysis  *services.AnalysisService
	previewer LinkPreviewer
}

// NewBlockHandler creates a new BlockHandler. previewer may be nil.
func NewBlockHandler(st *store.Store, analysis *services.AnalysisService, previewer LinkPreviewer) *BlockHandler {
	return &BlockHandler{store: st, analysis: analysis, previewer: previewer}
}

// CreateBlockRequest is the body of POST /api/blocks.
type CreateBlockRequest struct {
	Content  string                `json:"content"`
	Type     string                `json:"type"`
	Analyze  bool                  `json:"analyze"`
	AI       *store.AIData         `json:"ai,omitempty"`
	Metadata *models.BlockMetadata `json:"metadata,omitempty"`
}

// ListBlocks handles GET /api/blocks?q=&type=&tag=
// Returns the visible blocks of the selected channel, newest first.
func (h *BlockHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var extra []view.Filter
	if raw := q.Get("type"); raw != "" {
		t, ok := models.ParseBlockType(raw)
		if !ok {
			writeError(w, apperrors.New(apperrors.ErrValidation, "type must be text, link or image"))
			return
		}
		extra = append(extra, &view.TypeFilter{Type: t})
	}
	if tags := q["tag"]; len(tags) > 0 {
		extra = append(extra, &view.TagFilter{Tags: tags})
	}

	blocks := view.VisibleBlocks(h.store.Snapshot(), q.Get("q"), extra...)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": blocks,
		"total":  len(blocks),
	})
}

// CreateBlock handles POST /api/blocks
// A missing type is detected from the content. Links get a favicon and
// preview image when link previews are enabled.
func (h *BlockHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	t := models.BlockTypeText
	if req.Type != "" {
		parsed, ok := models.ParseBlockType(req.Type)
		if !ok {
			writeError(w, apperrors.New(apperrors.ErrValidation, "type must be text, link or image"))
			return
		}
		t = parsed
	}
	t = capture.DetectType(strings.TrimSpace(req.Content), t)

	meta := req.Metadata
	if t == models.BlockTypeLink && h.previewer != nil {
		meta = h.enrichLink(r.Context(), strings.TrimSpace(req.Content), meta)
	}

	block, err := h.analysis.CreateBlock(r.Context(), req.Content, t, req.Analyze, req.AI, meta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// enrichLink fills missing favicon and image metadata. Preview failures are
// logged and ignored.
func (h *BlockHandler) enrichLink(ctx context.Context, url string, meta *models.BlockMetadata) *models.BlockMetadata {
	ctx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	preview, err := h.previewer.Preview(ctx, url)
	if err != nil {
		logging.Debug("Link preview failed", map[string]interface{}{"url": url, "error": err.Error()})
		return meta
	}

	out := &models.BlockMetadata{}
	if meta != nil {
		*out = *meta
	}
	if out.Favicon == "" {
		out.Favicon = preview.Favicon
	}
	if out.ImageURL == "" {
		out.ImageURL = preview.Image
	}
	return out
}

// UpdateBlock handles PATCH /api/blocks/{id}
func (h *BlockHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	var patch store.BlockPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}

	block, err := h.store.UpdateBlock(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// DeleteBlock handles DELETE /api/blocks/{id}
func (h *BlockHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBlock(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeBlock handles POST /api/blocks/{id}/analyze
// With ?async=true the analysis runs in the background and the ticket is
// returned with 202; the outcome arrives over the WebSocket.
func (h *BlockHandler) AnalyzeBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("async") == "true" {
		ticket, err := h.analysis.AnalyzeBlockAsync(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ticket)
		return
	}

	block, err := h.analysis.AnalyzeBlock(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}
