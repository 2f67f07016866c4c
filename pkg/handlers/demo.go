package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// DemoHandler handles demo dataset provisioning HTTP requests.
type DemoHandler struct {
	seedService services.SeedService
	logger      *zap.Logger
}

// NewDemoHandler creates a new demo handler.
func NewDemoHandler(seedService services.SeedService, logger *zap.Logger) *DemoHandler {
	return &DemoHandler{
		seedService: seedService,
		logger:      logger,
	}
}

// RegisterRoutes registers the demo handler's routes on the given mux.
func (h *DemoHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/demo/seed",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Seed))
}

// Seed handles POST /api/demo/seed. The body is optional; omitted fields
// fall back to the configured generator defaults.
func (h *DemoHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var req services.SeedRequest
	if r.Body != nil {
		// Body is optional for seed
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	summary, err := h.seedService.Seed(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to seed demo dataset", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "seed_failed", "Failed to seed demo dataset"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: summary}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
