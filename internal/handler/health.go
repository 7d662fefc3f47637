package handler

import (
	"net/http"

	"github.com/parlor-chat/parlor/internal/store"
)

type storeHealth interface {
	Health() store.Health
}

// Health handles GET /health, reporting the data layer's mode so
// operators can see when the server is running on the fallback store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s, ok := h.store.(storeHealth); ok {
		resp["store"] = s.Health()
	}
	h.JSON(w, http.StatusOK, resp)
}
