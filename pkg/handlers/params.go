package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseNetworkID extracts and validates the network ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: nid
func ParseNetworkID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "nid", "invalid_network_id", "Invalid network ID format", logger)
}

// ParsePolicyID extracts and validates the masking policy ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: pid
func ParsePolicyID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_policy_id", "Invalid policy ID format", logger)
}

// ParseQueryID extracts and validates the verified query ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: qid
func ParseQueryID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "qid", "invalid_query_id", "Invalid query ID format", logger)
}

// ParseConversationID extracts and validates the conversation ID from the
// request path. Returns the parsed UUID and true on success, or uuid.Nil and
// false on error (after writing an error response).
// Expects path parameter: cid
func ParseConversationID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cid", "invalid_conversation_id", "Invalid conversation ID format", logger)
}

// ParseRunID extracts and validates the validation run ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: rid
func ParseRunID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_run_id", "Invalid run ID format", logger)
}

// ParseKeyID extracts and validates the agent key ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: kid
func ParseKeyID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "kid", "invalid_key_id", "Invalid key ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
