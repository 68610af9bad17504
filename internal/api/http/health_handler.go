package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthHandler answers GET /api/health.
type HealthHandler struct {
	environment string
	startedAt   time.Time
	now         func() time.Time
}

// NewHealthHandler creates a handler reporting uptime since now.
func NewHealthHandler(environment string) *HealthHandler {
	now := time.Now
	return &HealthHandler{
		environment: environment,
		startedAt:   now(),
		now:         now,
	}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.handleHealth)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, HealthResponse{
		Success: true,
		Data: HealthData{
			Status:      "ok",
			Timestamp:   now.UTC().Format("2006-01-02T15:04:05.000Z"),
			Uptime:      now.Sub(h.startedAt).Seconds(),
			Environment: h.environment,
		},
	})
}
