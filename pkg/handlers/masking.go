package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// MaskingPolicyRequest for POST/PUT bodies.
type MaskingPolicyRequest struct {
	SchemaName  string   `json:"schema_name"`
	TableName   string   `json:"table_name"`
	ColumnName  string   `json:"column_name"`
	MaskingType string   `json:"masking_type"`
	KeepSuffix  int      `json:"keep_suffix,omitempty"`
	ExemptRoles []string `json:"exempt_roles,omitempty"`
	Description string   `json:"description,omitempty"`
}

// MaskingHandler handles masking policy HTTP requests.
type MaskingHandler struct {
	maskingService services.MaskingService
	logger         *zap.Logger
}

// NewMaskingHandler creates a new masking handler.
func NewMaskingHandler(maskingService services.MaskingService, logger *zap.Logger) *MaskingHandler {
	return &MaskingHandler{
		maskingService: maskingService,
		logger:         logger,
	}
}

// RegisterRoutes registers the masking handler's routes on the given mux.
func (h *MaskingHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/masking/policies",
		authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/masking/policies",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Create))
	mux.HandleFunc("PUT /api/masking/policies/{pid}",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Update))
	mux.HandleFunc("DELETE /api/masking/policies/{pid}",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Delete))
	mux.HandleFunc("POST /api/masking/scan",
		authMiddleware.RequireRole(auth.RoleAdmin)(h.Scan))
}

// List handles GET /api/masking/policies.
func (h *MaskingHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.maskingService.ListPolicies(r.Context())
	if err != nil {
		h.logger.Error("Failed to list masking policies", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list masking policies"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: policies}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/masking/policies.
func (h *MaskingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req MaskingPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	policy, err := h.maskingService.CreatePolicy(r.Context(), req.toPolicy())
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			if err := ErrorResponse(w, http.StatusConflict, "policy_exists", "A masking policy for this column already exists"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		// Everything else the service rejects is a bad policy definition.
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_policy", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: policy}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/masking/policies/{pid}.
func (h *MaskingHandler) Update(w http.ResponseWriter, r *http.Request) {
	policyID, ok := ParsePolicyID(w, r, h.logger)
	if !ok {
		return
	}

	var req MaskingPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	policy := req.toPolicy()
	policy.ID = policyID

	updated, err := h.maskingService.UpdatePolicy(r.Context(), policy)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Masking policy not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_policy", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: updated}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/masking/policies/{pid}.
func (h *MaskingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	policyID, ok := ParsePolicyID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.maskingService.DeletePolicy(r.Context(), policyID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Masking policy not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to delete masking policy",
			zap.String("policy_id", policyID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "delete_failed", "Failed to delete masking policy"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Message: "Masking policy deleted"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Scan handles POST /api/masking/scan.
// Scans the warehouse schema for likely sensitive columns without a policy.
func (h *MaskingHandler) Scan(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.maskingService.Scan(r.Context())
	if err != nil {
		h.logger.Error("Failed to scan for sensitive columns", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "scan_failed", "Failed to scan for sensitive columns"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: suggestions}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (req MaskingPolicyRequest) toPolicy() *models.MaskingPolicy {
	return &models.MaskingPolicy{
		SchemaName:  req.SchemaName,
		TableName:   req.TableName,
		ColumnName:  req.ColumnName,
		MaskingType: req.MaskingType,
		KeepSuffix:  req.KeepSuffix,
		ExemptRoles: req.ExemptRoles,
		Description: req.Description,
	}
}
