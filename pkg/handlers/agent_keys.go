package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// CreateAgentKeyRequest for POST bodies.
type CreateAgentKeyRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreateAgentKeyResponse carries the plaintext key exactly once, at
// creation time. Listings only ever show the prefix.
type CreateAgentKeyResponse struct {
	Key       *models.AgentAPIKey `json:"key"`
	Plaintext string              `json:"plaintext"`
}

// SetAgentKeyEnabledRequest for PUT enabled bodies.
type SetAgentKeyEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// AgentKeyHandler handles agent API key HTTP requests.
type AgentKeyHandler struct {
	agentKeyService services.AgentKeyService
	logger          *zap.Logger
}

// NewAgentKeyHandler creates a new agent key handler.
func NewAgentKeyHandler(agentKeyService services.AgentKeyService, logger *zap.Logger) *AgentKeyHandler {
	return &AgentKeyHandler{
		agentKeyService: agentKeyService,
		logger:          logger,
	}
}

// RegisterRoutes registers the agent key handler's routes on the given mux.
// Key management is admin only.
func (h *AgentKeyHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/agent-keys",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.List))
	mux.HandleFunc("POST /api/agent-keys",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Create))
	mux.HandleFunc("PUT /api/agent-keys/{kid}/enabled",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.SetEnabled))
	mux.HandleFunc("DELETE /api/agent-keys/{kid}",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Delete))
}

// List handles GET /api/agent-keys.
// Returns key metadata without key material.
func (h *AgentKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.agentKeyService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list agent keys", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list agent keys"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: keys}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/agent-keys.
// The plaintext key appears in this response and nowhere else.
func (h *AgentKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_name", "Key name is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	key, plaintext, err := h.agentKeyService.Create(r.Context(), req.Name, req.Role)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidRole) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_role", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to create agent key",
			zap.String("name", req.Name),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "create_failed", "Failed to create agent key"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{
		Success: true,
		Data: CreateAgentKeyResponse{
			Key:       key,
			Plaintext: plaintext,
		},
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetEnabled handles PUT /api/agent-keys/{kid}/enabled.
func (h *AgentKeyHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	keyID, ok := ParseKeyID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetAgentKeyEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.agentKeyService.SetEnabled(r.Context(), keyID, req.Enabled); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Agent key not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to toggle agent key",
			zap.String("key_id", keyID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "toggle_failed", "Failed to toggle agent key"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: SetAgentKeyEnabledRequest{Enabled: req.Enabled}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/agent-keys/{kid}.
func (h *AgentKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	keyID, ok := ParseKeyID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.agentKeyService.Delete(r.Context(), keyID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Agent key not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to delete agent key",
			zap.String("key_id", keyID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "delete_failed", "Failed to delete agent key"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Message: "Agent key deleted"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
