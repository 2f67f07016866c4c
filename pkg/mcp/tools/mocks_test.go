package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// fakeScopes satisfies ScopeProvider without a database. It records the
// roles scopes were opened for and counts cleanups so tests can assert the
// connection is always released.
type fakeScopes struct {
	err      error
	roles    []auth.Role
	cleanups int
}

func (f *fakeScopes) WithRoleScope(ctx context.Context, role auth.Role) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.roles = append(f.roles, role)
	return ctx, func() { f.cleanups++ }, nil
}

// mockAnalystService implements services.AnalystService for testing.
type mockAnalystService struct {
	resp    *services.AskResponse
	err     error
	lastReq services.AskRequest
}

func (m *mockAnalystService) Ask(ctx context.Context, req services.AskRequest) (*services.AskResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockAnalystService) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, []*models.AnalystMessage, error) {
	return nil, nil, nil
}

func (m *mockAnalystService) ListConversations(ctx context.Context, limit int) ([]*models.AnalystConversation, error) {
	return nil, nil
}

// mockSemanticModelService implements services.SemanticModelService for
// testing.
type mockSemanticModelService struct {
	model   *models.SemanticModel
	version int
	err     error
}

func (m *mockSemanticModelService) GetActive(ctx context.Context) (*models.SemanticModelVersion, error) {
	return nil, nil
}

func (m *mockSemanticModelService) GetActiveModel(ctx context.Context) (*models.SemanticModel, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.model, m.version, nil
}

func (m *mockSemanticModelService) List(ctx context.Context) ([]*models.SemanticModelVersion, error) {
	return nil, nil
}

func (m *mockSemanticModelService) Put(ctx context.Context, document []byte, activate bool) (*models.SemanticModelVersion, []semantic.Issue, error) {
	return nil, nil, nil
}

func (m *mockSemanticModelService) Validate(ctx context.Context, document []byte) ([]semantic.Issue, error) {
	return nil, nil
}

func (m *mockSemanticModelService) Render(ctx context.Context, tier string, tables []string) (string, error) {
	model, _, err := m.GetActiveModel(ctx)
	if err != nil {
		return "", err
	}
	return semantic.Render(model, tier, tables)
}

func (m *mockSemanticModelService) Bootstrap(ctx context.Context, path string) error {
	return nil
}

// mockVerifiedQueryService implements services.VerifiedQueryService for
// testing.
type mockVerifiedQueryService struct {
	queries    []*models.VerifiedQuery
	result     *models.QueryResult
	runErr     error
	listErr    error
	lastName   string
	lastParams map[string]any
	lastLimit  int
}

func (m *mockVerifiedQueryService) List(ctx context.Context) ([]*models.VerifiedQuery, error) {
	return m.queries, m.listErr
}

func (m *mockVerifiedQueryService) Get(ctx context.Context, queryID uuid.UUID) (*models.VerifiedQuery, error) {
	return nil, nil
}

func (m *mockVerifiedQueryService) Create(ctx context.Context, req services.CreateVerifiedQueryRequest) (*models.VerifiedQuery, error) {
	return nil, nil
}

func (m *mockVerifiedQueryService) SetEnabled(ctx context.Context, queryID uuid.UUID, enabled bool) error {
	return nil
}

func (m *mockVerifiedQueryService) Run(ctx context.Context, queryID uuid.UUID, params map[string]any, limit int) (*models.QueryResult, error) {
	return m.result, m.runErr
}

func (m *mockVerifiedQueryService) RunByName(ctx context.Context, name string, params map[string]any, limit int) (*models.QueryResult, error) {
	m.lastName = name
	m.lastParams = params
	m.lastLimit = limit
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.result, nil
}

// mockValidationService implements services.ValidationService for testing.
type mockValidationService struct {
	latest *models.ValidationRun
	full   *models.ValidationRun
	err    error
}

func (m *mockValidationService) Run(ctx context.Context) (*models.ValidationRun, error) {
	return nil, nil
}

func (m *mockValidationService) GetRun(ctx context.Context, runID uuid.UUID) (*models.ValidationRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.full != nil {
		return m.full, nil
	}
	return m.latest, nil
}

func (m *mockValidationService) ListRuns(ctx context.Context, limit int) ([]*models.ValidationRun, error) {
	return nil, nil
}

func (m *mockValidationService) LatestRun(ctx context.Context) (*models.ValidationRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return m.latest, nil
}

// mockTelemetryService implements services.TelemetryService for testing.
type mockTelemetryService struct {
	health []*models.NetworkHealth
	byID   *models.NetworkHealth
	err    error
}

func (m *mockTelemetryService) ListNetworks(ctx context.Context) ([]*models.Network, error) {
	return nil, nil
}

func (m *mockTelemetryService) GetNetwork(ctx context.Context, networkID uuid.UUID) (*models.Network, error) {
	return nil, nil
}

func (m *mockTelemetryService) ListAccessPoints(ctx context.Context, networkID uuid.UUID) ([]*models.AccessPoint, error) {
	return nil, nil
}

func (m *mockTelemetryService) FleetSummary(ctx context.Context, networkID *uuid.UUID) ([]*models.APTelemetrySummary, error) {
	return nil, nil
}

func (m *mockTelemetryService) NetworkHealth(ctx context.Context) ([]*models.NetworkHealth, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.health, nil
}

func (m *mockTelemetryService) NetworkHealthByID(ctx context.Context, networkID uuid.UUID) (*models.NetworkHealth, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.byID == nil {
		return nil, apperrors.ErrNotFound
	}
	return m.byID, nil
}

func newToolServer() *server.MCPServer {
	return server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
}

// rpcToolResponse is the wire shape of a tools/call response. Handler Go
// errors surface as the JSON-RPC Error member; error results come back as
// Result with isError set.
type rpcToolResponse struct {
	Result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// rawToolCall drives a tool through the JSON-RPC surface the way a real
// MCP client would.
func rawToolCall(t *testing.T, s *server.MCPServer, name string, args map[string]any) rpcToolResponse {
	t.Helper()

	request := map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
		"id":      1,
	}
	requestBytes, err := json.Marshal(request)
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), requestBytes)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response rpcToolResponse
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	return response
}

// callTool invokes a tool and unwraps the first text content block.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()

	response := rawToolCall(t, s, name, args)
	if response.Error != nil {
		t.Fatalf("tool call failed at the protocol level: %d %s", response.Error.Code, response.Error.Message)
	}
	require.NotEmpty(t, response.Result.Content, "expected content in tool response")

	return response.Result.Content[0].Text, response.Result.IsError
}

func decodeErrorResult(t *testing.T, text string) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	return resp
}
