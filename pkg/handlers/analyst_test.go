package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// mockAnalystService records the requests it was handed.
type mockAnalystService struct {
	askReq       services.AskRequest
	askResp      *services.AskResponse
	askErr       error
	conversation *models.AnalystConversation
	messages     []*models.AnalystMessage
	list         []*models.AnalystConversation
	listLimit    int
	err          error
}

func (m *mockAnalystService) Ask(ctx context.Context, req services.AskRequest) (*services.AskResponse, error) {
	m.askReq = req
	if m.askErr != nil {
		return nil, m.askErr
	}
	if m.askResp != nil {
		return m.askResp, nil
	}
	return &services.AskResponse{
		ConversationID: uuid.New(),
		Answer:         "The fleet averaged 84.2.",
		SQL:            "SELECT AVG(quality_score) FROM wifi.qos_facts",
		Source:         "generated",
	}, nil
}

func (m *mockAnalystService) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, []*models.AnalystMessage, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	if m.conversation == nil {
		return nil, nil, apperrors.ErrNotFound
	}
	return m.conversation, m.messages, nil
}

func (m *mockAnalystService) ListConversations(ctx context.Context, limit int) ([]*models.AnalystConversation, error) {
	m.listLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

func TestAnalystHandler_Ask(t *testing.T) {
	svc := &mockAnalystService{}
	handler := NewAnalystHandler(svc, zap.NewNop())

	body := `{"question":"What is the average quality score?","limit":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What is the average quality score?", svc.askReq.Question)
	assert.Equal(t, 100, svc.askReq.Limit)
	assert.Nil(t, svc.askReq.ConversationID, "one-shot ask starts a new conversation")

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "The fleet averaged 84.2.", data["answer"])
	assert.Equal(t, "generated", data["source"])
	assert.NotEmpty(t, data["sql"])
}

func TestAnalystHandler_Ask_MissingQuestion(t *testing.T) {
	handler := NewAnalystHandler(&mockAnalystService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(`{"question":"   "}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_question", resp.Error)
}

func TestAnalystHandler_Ask_InvalidBody(t *testing.T) {
	handler := NewAnalystHandler(&mockAnalystService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Error)
}

func TestAnalystHandler_Ask_QueryNotPermitted(t *testing.T) {
	svc := &mockAnalystService{askErr: apperrors.ErrQueryNotPermitted}
	handler := NewAnalystHandler(svc, zap.NewNop())

	body := `{"question":"Drop all tables"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "query_not_permitted", resp.Error)
}

func TestAnalystHandler_Ask_LLMNotConfigured(t *testing.T) {
	svc := &mockAnalystService{askErr: apperrors.ErrLLMNotConfigured}
	handler := NewAnalystHandler(svc, zap.NewNop())

	body := `{"question":"Which networks missed their SLA?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "llm_not_configured", resp.Error)
}

func TestAnalystHandler_Ask_ModelNotActive(t *testing.T) {
	svc := &mockAnalystService{askErr: apperrors.ErrModelNotActive}
	handler := NewAnalystHandler(svc, zap.NewNop())

	body := `{"question":"Which networks missed their SLA?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "model_not_active", resp.Error)
}

func TestAnalystHandler_PostMessage(t *testing.T) {
	svc := &mockAnalystService{}
	handler := NewAnalystHandler(svc, zap.NewNop())

	conversationID := uuid.New()
	body := `{"question":"And the worst access point?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/conversations/"+conversationID.String()+"/messages", strings.NewReader(body))
	req.SetPathValue("cid", conversationID.String())
	rec := httptest.NewRecorder()

	handler.PostMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.askReq.ConversationID)
	assert.Equal(t, conversationID, *svc.askReq.ConversationID)
}

func TestAnalystHandler_PostMessage_UnknownConversation(t *testing.T) {
	svc := &mockAnalystService{askErr: apperrors.ErrNotFound}
	handler := NewAnalystHandler(svc, zap.NewNop())

	conversationID := uuid.New()
	body := `{"question":"And the worst access point?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/conversations/"+conversationID.String()+"/messages", strings.NewReader(body))
	req.SetPathValue("cid", conversationID.String())
	rec := httptest.NewRecorder()

	handler.PostMessage(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalystHandler_GetConversation(t *testing.T) {
	conversationID := uuid.New()
	svc := &mockAnalystService{
		conversation: &models.AnalystConversation{
			ID:      conversationID,
			Subject: "test-user",
			Title:   "What is the average quality score",
		},
		messages: []*models.AnalystMessage{
			{ConversationID: conversationID, Role: models.MessageRoleUser, Content: "What is the average quality score?"},
			{ConversationID: conversationID, Role: models.MessageRoleAssistant, Content: "The fleet averaged 84.2."},
		},
	}
	handler := NewAnalystHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/analyst/conversations/"+conversationID.String(), nil)
	req.SetPathValue("cid", conversationID.String())
	rec := httptest.NewRecorder()

	handler.GetConversation(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)

	conversation, ok := data["conversation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "What is the average quality score", conversation["title"])

	messages, ok := data["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestAnalystHandler_GetConversation_NotFound(t *testing.T) {
	handler := NewAnalystHandler(&mockAnalystService{}, zap.NewNop())

	conversationID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/analyst/conversations/"+conversationID.String(), nil)
	req.SetPathValue("cid", conversationID.String())
	rec := httptest.NewRecorder()

	handler.GetConversation(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalystHandler_ListConversations(t *testing.T) {
	svc := &mockAnalystService{
		list: []*models.AnalystConversation{
			{ID: uuid.New(), Title: "Fleet quality"},
		},
	}
	handler := NewAnalystHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/analyst/conversations", nil)
	rec := httptest.NewRecorder()

	handler.ListConversations(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultConversationLimit, svc.listLimit)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	rows, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestAnalystHandler_ListConversations_CustomLimit(t *testing.T) {
	svc := &mockAnalystService{}
	handler := NewAnalystHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/analyst/conversations?limit=5", nil)
	rec := httptest.NewRecorder()

	handler.ListConversations(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.listLimit)
}

func TestAnalystHandler_ListConversations_InvalidLimit(t *testing.T) {
	handler := NewAnalystHandler(&mockAnalystService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/analyst/conversations?limit=-3", nil)
	rec := httptest.NewRecorder()

	handler.ListConversations(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_limit", resp.Error)
}

func TestAnalystHandler_RegisterRoutes(t *testing.T) {
	handler := NewAnalystHandler(&mockAnalystService{}, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, testMiddleware(auth.RoleViewer))

	body := `{"question":"What is the average quality score?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyst/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "any authenticated role can ask")
}
