package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// defaultConversationLimit caps conversation listings when the caller does
// not pass an explicit limit.
const defaultConversationLimit = 50

// AskQuestionRequest for POST ask/message bodies.
type AskQuestionRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit,omitempty"`
	// NewConversation forces a fresh conversation even when the console
	// session already has an active one.
	NewConversation bool `json:"new_conversation,omitempty"`
}

// ConversationResponse pairs a conversation with its message history.
type ConversationResponse struct {
	Conversation *models.AnalystConversation `json:"conversation"`
	Messages     []*models.AnalystMessage    `json:"messages"`
}

// AnalystHandler handles natural-language analyst HTTP requests.
type AnalystHandler struct {
	analystService services.AnalystService
	logger         *zap.Logger
}

// NewAnalystHandler creates a new analyst handler.
func NewAnalystHandler(analystService services.AnalystService, logger *zap.Logger) *AnalystHandler {
	return &AnalystHandler{
		analystService: analystService,
		logger:         logger,
	}
}

// RegisterRoutes registers the analyst handler's routes on the given mux.
func (h *AnalystHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/analyst/ask",
		authMiddleware.RequireAuth(h.Ask))
	mux.HandleFunc("GET /api/analyst/conversations",
		authMiddleware.RequireAuth(h.ListConversations))
	mux.HandleFunc("GET /api/analyst/conversations/{cid}",
		authMiddleware.RequireAuth(h.GetConversation))
	mux.HandleFunc("POST /api/analyst/conversations/{cid}/messages",
		authMiddleware.RequireAuth(h.PostMessage))
}

// Ask handles POST /api/analyst/ask.
// Starts a new conversation with the question.
func (h *AnalystHandler) Ask(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, nil)
}

// PostMessage handles POST /api/analyst/conversations/{cid}/messages.
// Continues an existing conversation.
func (h *AnalystHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}
	h.ask(w, r, &conversationID)
}

// GetConversation handles GET /api/analyst/conversations/{cid}.
func (h *AnalystHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := ParseConversationID(w, r, h.logger)
	if !ok {
		return
	}

	conversation, messages, err := h.analystService.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Conversation not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get conversation",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get conversation"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := ConversationResponse{
		Conversation: conversation,
		Messages:     messages,
	}
	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListConversations handles GET /api/analyst/conversations.
// Returns the caller's conversations, newest first.
func (h *AnalystHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultConversationLimit
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

	conversations, err := h.analystService.ListConversations(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list conversations", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list conversations"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: conversations}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ask runs the question pipeline for both the one-shot and the
// conversation-scoped endpoints.
func (h *AnalystHandler) ask(w http.ResponseWriter, r *http.Request, conversationID *uuid.UUID) {
	var req AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_question", "Question is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// Browser console clients get conversation continuity from their
	// session cookie; API clients address conversations explicitly.
	if conversationID == nil && !req.NewConversation {
		conversationID = h.sessionConversation(r)
	}

	resp, err := h.analystService.Ask(r.Context(), services.AskRequest{
		Question:       req.Question,
		ConversationID: conversationID,
		Limit:          req.Limit,
	})
	if err != nil {
		h.writeAskError(w, conversationID, err)
		return
	}

	h.rememberConversation(w, r, resp.ConversationID)

	response := ApiResponse{Success: true, Data: resp}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// sessionConversation returns the active conversation from the console
// session, or nil when there is no session store or no active conversation.
func (h *AnalystHandler) sessionConversation(r *http.Request) *uuid.UUID {
	if auth.Store == nil {
		return nil
	}
	session, err := auth.GetSession(r)
	if err != nil {
		return nil
	}
	id, err := uuid.Parse(auth.ConversationIDFromSession(session))
	if err != nil {
		return nil
	}
	return &id
}

// rememberConversation stores the conversation ID in the console session.
// Must run before the response body is written, since it sets a cookie.
func (h *AnalystHandler) rememberConversation(w http.ResponseWriter, r *http.Request, conversationID uuid.UUID) {
	if auth.Store == nil {
		return
	}
	session, err := auth.GetSession(r)
	if err != nil {
		return
	}
	session.Values[auth.SessionKeyConversationID] = conversationID.String()
	if err := auth.SaveSession(r, w, session); err != nil {
		h.logger.Debug("Failed to save console session", zap.Error(err))
	}
}

// writeAskError maps pipeline failures onto HTTP statuses.
func (h *AnalystHandler) writeAskError(w http.ResponseWriter, conversationID *uuid.UUID, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Conversation not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrQueryNotPermitted):
		if err := ErrorResponse(w, http.StatusForbidden, "query_not_permitted", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrLLMNotConfigured):
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "llm_not_configured", "No LLM provider is configured and no verified query matches this question"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrModelNotActive):
		if err := ErrorResponse(w, http.StatusConflict, "model_not_active", "No semantic model version is active"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	default:
		fields := []zap.Field{zap.Error(err)}
		if conversationID != nil {
			fields = append(fields, zap.String("conversation_id", conversationID.String()))
		}
		h.logger.Error("Failed to answer analyst question", fields...)
		if err := ErrorResponse(w, http.StatusInternalServerError, "ask_failed", "Failed to answer question"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
