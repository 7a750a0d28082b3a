package handlers

import (
	"net/http"

	"github.com/kimhsiao/stash/internal/capture"
	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/services"
)

// CaptureHandler turns pasted input into blocks.
type CaptureHandler struct {
	analysisSvc *services.AnalysisService
}

// NewCaptureHandler creates a new CaptureHandler.
func NewCaptureHandler(analysisSvc *services.AnalysisService) *CaptureHandler {
	return &CaptureHandler{analysisSvc: analysisSvc}
}

// CaptureImage handles POST /api/capture/image
// Expects a multipart form with an "image" file. The image becomes a new
// block in the selected channel; its thumbnail goes into metadata.
func (h *CaptureHandler) CaptureImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, capture.MaxImageBytes+1<<20)
	if err := r.ParseMultipartForm(capture.MaxImageBytes); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid multipart form", err))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrValidation, "image file is required", err))
		return
	}
	defer file.Close()

	img, err := capture.ImageDataURI(file)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrValidation, "unsupported image", err))
		return
	}

	block, err := h.analysisSvc.CreateBlock(r.Context(), img.Content, models.BlockTypeImage, false, nil,
		&models.BlockMetadata{ImageURL: img.Thumbnail})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// DetectType handles POST /api/capture/detect
// Returns the block type the content would be stored as.
func (h *CaptureHandler) DetectType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
		Tags    string `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	current, ok := models.ParseBlockType(req.Type)
	if !ok {
		current = models.BlockTypeText
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type": capture.DetectType(req.Content, current),
		"tags": capture.ParseTags(req.Tags),
	})
}
