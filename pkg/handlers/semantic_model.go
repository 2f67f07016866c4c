package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// PutSemanticModelRequest for PUT body.
type PutSemanticModelRequest struct {
	Document string `json:"document"`
	Activate bool   `json:"activate"`
}

// ValidateSemanticModelRequest for POST validate body.
type ValidateSemanticModelRequest struct {
	Document string `json:"document"`
}

// SemanticModelResult pairs a stored version with its validation issues.
type SemanticModelResult struct {
	Version *models.SemanticModelVersion `json:"version,omitempty"`
	Issues  []semantic.Issue             `json:"issues,omitempty"`
}

// ValidateSemanticModelResponse for validation results.
type ValidateSemanticModelResponse struct {
	Valid   bool             `json:"valid"`
	Message string           `json:"message,omitempty"`
	Issues  []semantic.Issue `json:"issues,omitempty"`
}

// SemanticModelHandler handles semantic model lifecycle HTTP requests.
type SemanticModelHandler struct {
	modelService services.SemanticModelService
	logger       *zap.Logger
}

// NewSemanticModelHandler creates a new semantic model handler.
func NewSemanticModelHandler(modelService services.SemanticModelService, logger *zap.Logger) *SemanticModelHandler {
	return &SemanticModelHandler{
		modelService: modelService,
		logger:       logger,
	}
}

// RegisterRoutes registers the semantic model handler's routes on the given mux.
func (h *SemanticModelHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/semantic-model",
		authMiddleware.RequireAuth(h.GetActive))
	mux.HandleFunc("GET /api/semantic-model/versions",
		authMiddleware.RequireAuth(h.ListVersions))
	mux.HandleFunc("PUT /api/semantic-model",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Put))
	mux.HandleFunc("POST /api/semantic-model/validate",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Validate))
}

// GetActive handles GET /api/semantic-model.
func (h *SemanticModelHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	version, err := h.modelService.GetActive(r.Context())
	if err != nil {
		if errors.Is(err, apperrors.ErrModelNotActive) {
			if err := ErrorResponse(w, http.StatusNotFound, "model_not_active", "No semantic model version is active"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get active semantic model", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get active semantic model"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: version}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListVersions handles GET /api/semantic-model/versions.
func (h *SemanticModelHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.modelService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list semantic model versions", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list semantic model versions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: versions}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Put handles PUT /api/semantic-model.
// Stores the document as a new version and optionally activates it.
func (h *SemanticModelHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req PutSemanticModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Document == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_document", "Semantic model document is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	version, issues, err := h.modelService.Put(r.Context(), []byte(req.Document), req.Activate)
	if err != nil {
		if semantic.HasErrors(issues) {
			// Validation failures carry the issue list so the caller can fix
			// the document.
			response := ApiResponse{
				Success: false,
				Data:    SemanticModelResult{Issues: issues},
				Error:   "validation_failed",
				Message: err.Error(),
			}
			if err := WriteJSON(w, http.StatusUnprocessableEntity, response); err != nil {
				h.logger.Error("Failed to write response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to store semantic model", zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadRequest, "put_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: SemanticModelResult{Version: version, Issues: issues}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Validate handles POST /api/semantic-model/validate.
// Runs structural plus live-schema validation without storing anything.
func (h *SemanticModelHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateSemanticModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Document == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_document", "Semantic model document is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	issues, err := h.modelService.Validate(r.Context(), []byte(req.Document))
	if err != nil {
		// A document that does not parse is a validation result, not a
		// server failure.
		data := ValidateSemanticModelResponse{
			Valid:   false,
			Message: err.Error(),
			Issues:  issues,
		}
		response := ApiResponse{Success: true, Data: data}
		if err := WriteJSON(w, http.StatusOK, response); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	data := ValidateSemanticModelResponse{
		Valid:  !semantic.HasErrors(issues),
		Issues: issues,
	}
	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
