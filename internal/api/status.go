package api

import (
	"net/http"
	"time"

	"github.com/BenjaminPelletier/dss/internal/httpserver"
)

// StatusHandlers serves the unauthenticated liveness endpoint.
type StatusHandlers struct {
	startedAt time.Time
}

// NewStatusHandlers returns a StatusHandlers whose uptime is measured from now.
func NewStatusHandlers() *StatusHandlers {
	return &StatusHandlers{startedAt: time.Now()}
}

// Get handles GET /dss/v1/status.
func (h *StatusHandlers) Get(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
