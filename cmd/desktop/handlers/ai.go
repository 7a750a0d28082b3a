package handlers

import (
	"net/http"

	"github.com/kimhsiao/stash/internal/analysis"
	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/services"
)

// AIInfo describes the configured gateway. *analysis.Gateway satisfies it.
type AIInfo interface {
	Provider() analysis.AIProvider
	Model() string
	Configured() bool
}

// AIHandler handles AI configuration and analysis operations.
type AIHandler struct {
	analysisSvc *services.AnalysisService
	info        AIInfo
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(analysisSvc *services.AnalysisService, info AIInfo) *AIHandler {
	return &AIHandler{analysisSvc: analysisSvc, info: info}
}

// GetAIConfig handles GET /api/ai/config
// The API key is never returned.
func (h *AIHandler) GetAIConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":    h.info.Configured(),
		"provider":   h.info.Provider(),
		"model_name": h.info.Model(),
	})
}

// Analyze handles POST /api/analyze
// Runs an analysis for draft content without touching the document.
func (h *AIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
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

	res, err := h.analysisSvc.Preview(r.Context(), req.Content, t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title":   res.Title,
		"summary": res.Summary,
		"tags":    res.Tags,
		"failed":  res.IsFailed(),
	})
}

// FindConnections handles POST /api/connections
// Works on the visible view: the selected channel filtered by q.
func (h *AIHandler) FindConnections(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Query    string `json:"q"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	answer, err := h.analysisSvc.FindConnections(r.Context(), req.Question, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"insight": answer})
}
