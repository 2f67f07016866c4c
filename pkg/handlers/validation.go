package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// defaultRunLimit caps validation run listings when the caller does not
// pass an explicit limit.
const defaultRunLimit = 20

// ValidationHandler handles data validation HTTP requests.
type ValidationHandler struct {
	validationService services.ValidationService
	logger            *zap.Logger
}

// NewValidationHandler creates a new validation handler.
func NewValidationHandler(validationService services.ValidationService, logger *zap.Logger) *ValidationHandler {
	return &ValidationHandler{
		validationService: validationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the validation handler's routes on the given mux.
func (h *ValidationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/validation/run",
		authMiddleware.RequireAuth(h.Run))
	mux.HandleFunc("GET /api/validation/runs",
		authMiddleware.RequireAuth(h.ListRuns))
	mux.HandleFunc("GET /api/validation/runs/latest",
		authMiddleware.RequireAuth(h.LatestRun))
	mux.HandleFunc("GET /api/validation/runs/{rid}",
		authMiddleware.RequireAuth(h.GetRun))
}

// Run handles POST /api/validation/run.
// Executes the full validation suite and returns the finished run.
func (h *ValidationHandler) Run(w http.ResponseWriter, r *http.Request) {
	run, err := h.validationService.Run(r.Context())
	if err != nil {
		h.logger.Error("Failed to run validation suite", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "validation_failed", "Failed to run validation suite"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: run}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListRuns handles GET /api/validation/runs.
// Returns validation runs newest first.
func (h *ValidationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	runs, err := h.validationService.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list validation runs", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list validation runs"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: runs}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// LatestRun handles GET /api/validation/runs/latest.
func (h *ValidationHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.validationService.LatestRun(r.Context())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "No validation run has completed yet"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get latest validation run", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get latest validation run"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: run}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetRun handles GET /api/validation/runs/{rid}.
func (h *ValidationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r, h.logger)
	if !ok {
		return
	}

	run, err := h.validationService.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Validation run not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get validation run",
			zap.String("run_id", runID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get validation run"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: run}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
