package handlers

import "net/http"

// HealthHandler reports liveness and the active backends.
type HealthHandler struct {
	storeKind  string
	aiProvider string
	aiReady    func() bool
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(storeKind, aiProvider string, aiReady func() bool) *HealthHandler {
	return &HealthHandler{storeKind: storeKind, aiProvider: aiProvider, aiReady: aiReady}
}

// Health handles GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ready := false
	if h.aiReady != nil {
		ready = h.aiReady()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"service":       "stash-desktop",
		"store":         h.storeKind,
		"ai_provider":   h.aiProvider,
		"ai_configured": ready,
	})
}
