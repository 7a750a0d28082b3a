package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/store"
	"github.com/kimhsiao/stash/internal/view"
)

// ChannelHandler handles channel, selection and vertical operations.
type ChannelHandler struct {
	store *store.Store
}

// NewChannelHandler creates a new ChannelHandler.
func NewChannelHandler(st *store.Store) *ChannelHandler {
	return &ChannelHandler{store: st}
}

// ListChannels handles GET /api/channels
// Returns the sidebar grouping plus the current selection.
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	doc := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels":        doc.Channels,
		"groups":          view.GroupChannels(doc.Channels),
		"activeChannelId": doc.ActiveChannelID,
	})
}

// CreateChannel handles POST /api/channels
// The new channel becomes the selection.
func (h *ChannelHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string  `json:"title"`
		Vertical *string `json:"vertical"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ch, err := h.store.CreateChannel(req.Title, req.Vertical)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// UpdateChannel handles PATCH /api/channels/{id}
func (h *ChannelHandler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	var patch store.ChannelPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}

	ch, err := h.store.UpdateChannel(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// DeleteChannel handles DELETE /api/channels/{id}
// The channel's blocks are deleted with it.
func (h *ChannelHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.DeleteChannel(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removedBlocks": removed})
}

// Select handles PUT /api/selection
// A null or missing channelId selects all channels.
func (h *ChannelHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID *string `json:"channelId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.SelectChannel(req.ChannelID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activeChannelId": req.ChannelID})
}

// =====================================================
// Verticals
// =====================================================

// RenameVertical handles PATCH /api/verticals/{name}
func (h *ChannelHandler) RenameVertical(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	name, err := verticalParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.store.RenameVertical(name, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"channels": n})
}

// DeleteVertical handles DELETE /api/verticals/{name}
// Channels are ungrouped, never deleted.
func (h *ChannelHandler) DeleteVertical(w http.ResponseWriter, r *http.Request) {
	name, err := verticalParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"channels": h.store.DeleteVertical(name)})
}

// verticalParam returns the unescaped {name} path parameter. chi routes on
// RawPath when the request has one, so "UI%2FUX" then arrives still
// encoded; otherwise the parameter is already decoded.
func verticalParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrInvalid, "invalid vertical name", err)
		}
		name = unescaped
	}
	if strings.TrimSpace(name) == "" {
		return "", apperrors.New(apperrors.ErrValidation, "vertical name is empty")
	}
	return name, nil
}
