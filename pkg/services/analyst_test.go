package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/llm"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

type mockConversationRepo struct {
	conversations map[uuid.UUID]*models.AnalystConversation
	messages      map[uuid.UUID][]*models.AnalystMessage
	err           error
	titles        []string
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{
		conversations: make(map[uuid.UUID]*models.AnalystConversation),
		messages:      make(map[uuid.UUID][]*models.AnalystMessage),
	}
}

func (m *mockConversationRepo) CreateConversation(ctx context.Context, conv *models.AnalystConversation) error {
	if m.err != nil {
		return m.err
	}
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	m.conversations[conv.ID] = conv
	return nil
}

func (m *mockConversationRepo) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	if conv, ok := m.conversations[conversationID]; ok {
		return conv, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockConversationRepo) ListConversations(ctx context.Context, subject string, limit int) ([]*models.AnalystConversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.AnalystConversation
	for _, conv := range m.conversations {
		if conv.Subject == subject && len(out) < limit {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *mockConversationRepo) Touch(ctx context.Context, conversationID uuid.UUID, title string) error {
	conv, ok := m.conversations[conversationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if conv.Title == "" {
		conv.Title = title
	}
	conv.UpdatedAt = time.Now()
	m.titles = append(m.titles, title)
	return nil
}

func (m *mockConversationRepo) AddMessage(ctx context.Context, msg *models.AnalystMessage) error {
	if m.err != nil {
		return m.err
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *mockConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.AnalystMessage, error) {
	return m.messages[conversationID], m.err
}

type analystFixture struct {
	svc           AnalystService
	smRepo        *mockSemanticModelRepo
	queries       *mockVerifiedQueryRepo
	conversations *mockConversationRepo
	adapter       *mockAdapter
	policies      *mockMaskingPolicyRepo
	client        *llm.MockLLMClient
	audited       *observer.ObservedLogs
}

// setupAnalystTest wires a full analyst pipeline over mocks: real verified
// query and masking services, a mock LLM, and an observed audit logger.
// client may be nil for the verified-only mode.
func setupAnalystTest(t *testing.T, client *llm.MockLLMClient) *analystFixture {
	t.Helper()

	core, recorded := observer.New(zapcore.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))

	f := &analystFixture{
		smRepo:        &mockSemanticModelRepo{},
		queries:       newMockVerifiedQueryRepo(),
		conversations: newMockConversationRepo(),
		adapter:       &mockAdapter{},
		policies:      &mockMaskingPolicyRepo{},
		client:        client,
		audited:       recorded,
	}

	maskingSvc := NewMaskingService(f.policies, f.adapter, auditor, zap.NewNop())
	verifiedSvc := NewVerifiedQueryService(f.queries, f.smRepo, f.adapter, maskingSvc, auditor, zap.NewNop())

	var llmClient llm.LLMClient
	if client != nil {
		llmClient = client
	}
	f.svc = NewAnalystService(f.smRepo, f.queries, f.conversations, verifiedSvc, maskingSvc,
		f.adapter, llmClient, nil, auditor, 500, zap.NewNop())
	return f
}

func (f *analystFixture) activateModel(t *testing.T) {
	t.Helper()
	f.smRepo.versions = []*models.SemanticModelVersion{{
		ID:       uuid.New(),
		Version:  1,
		Document: testModelDoc,
		Checksum: "c1",
		IsActive: true,
	}}
}

// curatedQuery registers an enabled parameter-free verified query.
func (f *analystFixture) curatedQuery(t *testing.T) *models.VerifiedQuery {
	t.Helper()
	query := &models.VerifiedQuery{
		ID:           uuid.New(),
		Name:         "avg_quality_by_customer",
		Question:     "What is the average quality score per customer?",
		SQL:          "SELECT n.customer, AVG(q.quality_score) AS quality FROM wifi.qos_facts q JOIN wifi.networks n ON n.id = q.network_id GROUP BY n.customer",
		ModelVersion: 1,
		IsEnabled:    true,
	}
	f.queries.byName[query.Name] = query
	return query
}

func customerResult() *models.QueryResult {
	return &models.QueryResult{
		Columns:  []models.ResultColumn{{Name: "customer", Type: "text"}, {Name: "quality", Type: "numeric"}},
		Rows:     [][]any{{"Meridian Logistics", 87.2}, {"Quartz Retail", 79.5}},
		RowCount: 2,
	}
}

func TestAnalystService_Ask_RequiresQuestion(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient())

	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question is required")
}

func TestAnalystService_Ask_VerifiedMatch(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient("Meridian Logistics leads with an average quality of 87.2."))
	stored := f.curatedQuery(t)
	f.adapter.result = customerResult()

	// Casing, spacing, and trailing punctuation differ from the stored question.
	resp, err := f.svc.Ask(context.Background(), AskRequest{
		Question: "  what is the  average quality score per customer ",
	})
	require.NoError(t, err)

	assert.Equal(t, AnswerSourceVerified, resp.Source)
	require.NotNil(t, resp.VerifiedQueryID)
	assert.Equal(t, stored.ID, *resp.VerifiedQueryID)
	assert.Equal(t, stored.SQL, resp.SQL)
	assert.Equal(t, 2, resp.Result.RowCount)
	assert.Contains(t, resp.Answer, "87.2")

	require.Len(t, f.client.Calls, 1, "only answer synthesis hits the LLM")
	assert.Equal(t, []uuid.UUID{stored.ID}, f.queries.incremented)

	msgs := f.conversations.messages[resp.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, models.MessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, stored.ID, *msgs[1].VerifiedQueryID)
}

func TestAnalystService_Ask_RequiredParamQueryDoesNotMatch(t *testing.T) {
	f := setupAnalystTest(t, nil)
	stored := f.curatedQuery(t)
	stored.SQL = "SELECT quality_score FROM wifi.qos_facts WHERE network_name = {{network}}"
	stored.Parameters = []models.QueryParameter{{Name: "network", Type: "string", Required: true}}

	// Without an LLM the only way to answer is the verified match; a query
	// demanding caller-supplied values must not be picked for a bare question.
	_, err := f.svc.Ask(context.Background(), AskRequest{Question: stored.Question})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLLMNotConfigured)
}

func TestAnalystService_Ask_GeneratedSQL(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient(
		"```sql\nSELECT n.customer, AVG(q.quality_score) FROM wifi.qos_facts q JOIN wifi.networks n ON n.id = q.network_id GROUP BY n.customer;\n```",
		"Two customers run fleets; Meridian Logistics leads at 87.2.",
	))
	f.activateModel(t)
	f.adapter.result = customerResult()

	resp, err := f.svc.Ask(context.Background(), AskRequest{Question: "Which customer has the best WiFi quality?"})
	require.NoError(t, err)

	assert.Equal(t, AnswerSourceGenerated, resp.Source)
	assert.Nil(t, resp.VerifiedQueryID)
	assert.NotContains(t, resp.SQL, ";", "normalization strips the trailing semicolon")
	assert.Equal(t, "Two customers run fleets; Meridian Logistics leads at 87.2.", resp.Answer)
	assert.Equal(t, 500, f.adapter.lastLimit, "service row limit applies when the request has none")

	require.Len(t, f.client.Calls, 2)
	genPrompt := f.client.Calls[0].Prompt
	assert.Contains(t, genPrompt, "Which customer has the best WiFi quality?")
	assert.Contains(t, genPrompt, "PostgreSQL")
	assert.Contains(t, genPrompt, "wifi.qos_facts", "semantic model columns are rendered into the prompt")
	assert.Contains(t, f.client.Calls[1].Prompt, "Meridian Logistics", "synthesis sees the result rows")

	require.Equal(t, 1, f.audited.FilterMessage("Query executed").Len())

	msgs := f.conversations.messages[resp.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, resp.SQL, msgs[1].SQL)
	require.NotNil(t, msgs[1].RowCount)
	assert.Equal(t, 2, *msgs[1].RowCount)
}

func TestAnalystService_Ask_GuardrailRejectsWrite(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient("```sql\nDELETE FROM wifi.networks\n```"))
	f.activateModel(t)

	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "Clean up the networks table"})
	require.ErrorIs(t, err, apperrors.ErrQueryNotPermitted)

	assert.Zero(t, f.adapter.queryCalls, "rejected SQL never reaches the warehouse")
	require.Equal(t, 1, f.audited.FilterMessage("Query rejected by guardrails").Len())
}

func TestAnalystService_Ask_GuardrailRejectsTableOutsideModel(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient("```sql\nSELECT mac_address FROM wifi.access_points\n```"))
	f.activateModel(t)

	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "List all MAC addresses"})
	require.ErrorIs(t, err, apperrors.ErrQueryNotPermitted)
	require.Equal(t, 1, f.audited.FilterMessage("Query rejected by guardrails").Len())
}

func TestAnalystService_Ask_RepairRoundTrip(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient(
		"```sql\nSELECT custmer FROM wifi.networks\n```",
		"```sql\nSELECT customer FROM wifi.networks\n```",
		"The fleet serves two customers.",
	))
	f.activateModel(t)
	f.adapter.queryErrOnce = errors.New(`column "custmer" does not exist`)
	f.adapter.result = customerResult()

	resp, err := f.svc.Ask(context.Background(), AskRequest{Question: "Which customers do we serve?"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT customer FROM wifi.networks", resp.SQL)
	assert.Equal(t, "The fleet serves two customers.", resp.Answer)
	assert.Equal(t, 2, f.adapter.queryCalls)

	require.Len(t, f.client.Calls, 3)
	repairPrompt := f.client.Calls[1].Prompt
	assert.Contains(t, repairPrompt, `column "custmer" does not exist`)
	assert.Contains(t, repairPrompt, "SELECT custmer FROM wifi.networks")
}

func TestAnalystService_Ask_RepairFailureSurfacesDBError(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient(
		"```sql\nSELECT custmer FROM wifi.networks\n```",
		"```sql\nSELECT custmer FROM wifi.networks\n```",
	))
	f.activateModel(t)
	f.adapter.queryErr = errors.New(`column "custmer" does not exist`)

	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "Which customers do we serve?"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after repair")
	assert.Contains(t, err.Error(), "custmer")
}

func TestAnalystService_Ask_NoLLMNoMatch(t *testing.T) {
	f := setupAnalystTest(t, nil)
	f.activateModel(t)

	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "Which sites are degraded?"})
	require.ErrorIs(t, err, apperrors.ErrLLMNotConfigured)
}

func TestAnalystService_Ask_RequiresActiveModel(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient("```sql\nSELECT 1\n```"))

	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "Which sites are degraded?"})
	require.ErrorIs(t, err, apperrors.ErrModelNotActive)
	assert.Empty(t, f.client.Calls, "no LLM call without a model to prompt from")
}

func TestAnalystService_Ask_SynthesisFailureFallsBack(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		if len(client.Calls) == 1 {
			return &llm.GenerateResponseResult{Content: "```sql\nSELECT customer FROM wifi.networks\n```"}, nil
		}
		return nil, errors.New("model overloaded")
	}
	f := setupAnalystTest(t, client)
	f.activateModel(t)
	f.adapter.result = customerResult()

	resp, err := f.svc.Ask(context.Background(), AskRequest{Question: "Which customers do we serve?"})
	require.NoError(t, err, "synthesis failure must not lose the query result")
	assert.Equal(t, "The query returned 2 rows.", resp.Answer)
	assert.Equal(t, 2, resp.Result.RowCount)
}

func TestAnalystService_Ask_MasksGeneratedResultsForViewer(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient(
		"```sql\nSELECT customer FROM wifi.networks\n```",
		"Two customers appear in the data.",
	))
	f.activateModel(t)
	f.policies.policies = []*models.MaskingPolicy{{
		ID:          uuid.New(),
		SchemaName:  "wifi",
		TableName:   "networks",
		ColumnName:  "customer",
		MaskingType: models.MaskFull,
	}}
	f.adapter.result = &models.QueryResult{
		Columns:  []models.ResultColumn{{Name: "customer", Type: "text"}},
		Rows:     [][]any{{"Meridian Logistics"}},
		RowCount: 1,
	}

	ctx := auth.ContextWithRole(context.Background(), auth.RoleViewer)
	resp, err := f.svc.Ask(ctx, AskRequest{Question: "Which customers do we serve?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"customer"}, resp.Result.MaskedCols)
	assert.Equal(t, "*****", resp.Result.Rows[0][0])
	assert.Contains(t, f.client.Calls[1].Prompt, "*****", "synthesis must see masked values only")
}

func TestAnalystService_Ask_ContinuesConversation(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient("Quality is fine."))
	f.curatedQuery(t)
	f.adapter.result = customerResult()

	first, err := f.svc.Ask(context.Background(), AskRequest{Question: "What is the average quality score per customer?"})
	require.NoError(t, err)

	second, err := f.svc.Ask(context.Background(), AskRequest{
		Question:       "What is the average quality score per customer?",
		ConversationID: &first.ConversationID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, f.conversations.conversations, 1)
	assert.Len(t, f.conversations.messages[first.ConversationID], 4)
}

func TestAnalystService_Ask_UnknownConversation(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient())
	f.curatedQuery(t)

	missing := uuid.New()
	_, err := f.svc.Ask(context.Background(), AskRequest{
		Question:       "What is the average quality score per customer?",
		ConversationID: &missing,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAnalystService_Ask_CircuitBreakerOpens(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.Err = errors.New("connection refused")
	f := setupAnalystTest(t, client)
	f.activateModel(t)

	breaker := llm.NewCircuitBreaker(llm.CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Hour})
	core, _ := observer.New(zapcore.DebugLevel)
	auditor := audit.NewSecurityAuditor(zap.New(core))
	maskingSvc := NewMaskingService(f.policies, f.adapter, auditor, zap.NewNop())
	verifiedSvc := NewVerifiedQueryService(f.queries, f.smRepo, f.adapter, maskingSvc, auditor, zap.NewNop())
	svc := NewAnalystService(f.smRepo, f.queries, f.conversations, verifiedSvc, maskingSvc,
		f.adapter, client, breaker, auditor, 500, zap.NewNop())

	_, err := svc.Ask(context.Background(), AskRequest{Question: "Which sites are degraded?"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm request failed")

	_, err = svc.Ask(context.Background(), AskRequest{Question: "Which sites are degraded?"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm unavailable")
	assert.Equal(t, llm.CircuitOpen, breaker.State())
}

func TestAnalystService_GetConversation(t *testing.T) {
	f := setupAnalystTest(t, llm.NewMockLLMClient("All good."))
	f.curatedQuery(t)
	f.adapter.result = customerResult()

	resp, err := f.svc.Ask(context.Background(), AskRequest{Question: "What is the average quality score per customer?"})
	require.NoError(t, err)

	conv, msgs, err := f.svc.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "What is the average quality score per customer?", conv.Title)
	require.Len(t, msgs, 2)
	assert.Equal(t, "All good.", msgs[1].Content)

	_, _, err = f.svc.GetConversation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
