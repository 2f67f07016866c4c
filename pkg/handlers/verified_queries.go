package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// RunVerifiedQueryRequest for POST run bodies. Both fields are optional;
// a query without required parameters runs with an empty map.
type RunVerifiedQueryRequest struct {
	Parameters map[string]any `json:"parameters,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

// SetQueryEnabledRequest for PUT enabled bodies.
type SetQueryEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// VerifiedQueryHandler handles verified query HTTP requests.
type VerifiedQueryHandler struct {
	queryService services.VerifiedQueryService
	logger       *zap.Logger
}

// NewVerifiedQueryHandler creates a new verified query handler.
func NewVerifiedQueryHandler(queryService services.VerifiedQueryService, logger *zap.Logger) *VerifiedQueryHandler {
	return &VerifiedQueryHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// RegisterRoutes registers the verified query handler's routes on the given mux.
func (h *VerifiedQueryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/verified-queries",
		authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/verified-queries",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Create))
	mux.HandleFunc("GET /api/verified-queries/{qid}",
		authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST /api/verified-queries/{qid}/run",
		authMiddleware.RequireAuth(h.Run))
	mux.HandleFunc("PUT /api/verified-queries/{qid}/enabled",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.SetEnabled))
}

// List handles GET /api/verified-queries.
func (h *VerifiedQueryHandler) List(w http.ResponseWriter, r *http.Request) {
	queries, err := h.queryService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list verified queries", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list verified queries"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: queries}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/verified-queries/{qid}.
func (h *VerifiedQueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	queryID, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}

	query, err := h.queryService.Get(r.Context(), queryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Verified query not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get verified query",
			zap.String("query_id", queryID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get verified query"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: query}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/verified-queries.
// Registers a curated query against the active semantic model.
func (h *VerifiedQueryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateVerifiedQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	query, err := h.queryService.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrModelNotActive) {
			if err := ErrorResponse(w, http.StatusConflict, "model_not_active", "Activate a semantic model before registering verified queries"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		// Everything else the service rejects is a bad query definition.
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: query}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Run handles POST /api/verified-queries/{qid}/run.
// Body is optional for queries without required parameters.
func (h *VerifiedQueryHandler) Run(w http.ResponseWriter, r *http.Request) {
	queryID, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}

	var req RunVerifiedQueryRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.queryService.Run(r.Context(), queryID, req.Parameters, req.Limit)
	if err != nil {
		h.writeRunError(w, queryID.String(), err)
		return
	}

	response := ApiResponse{Success: true, Data: result}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetEnabled handles PUT /api/verified-queries/{qid}/enabled.
func (h *VerifiedQueryHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	queryID, ok := ParseQueryID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetQueryEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.queryService.SetEnabled(r.Context(), queryID, req.Enabled); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Verified query not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to toggle verified query",
			zap.String("query_id", queryID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "toggle_failed", "Failed to toggle verified query"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: SetQueryEnabledRequest{Enabled: req.Enabled}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeRunError maps run failures onto HTTP statuses.
func (h *VerifiedQueryHandler) writeRunError(w http.ResponseWriter, queryID string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Verified query not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrMissingParameter):
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_parameter", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrQueryNotPermitted):
		if err := ErrorResponse(w, http.StatusForbidden, "query_not_permitted", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	default:
		h.logger.Error("Failed to run verified query",
			zap.String("query_id", queryID),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "run_failed", "Failed to run verified query"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
