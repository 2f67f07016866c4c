package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/llm"
	"github.com/netsight-ai/netsight-engine/pkg/logging"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/prompts"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
	enginesql "github.com/netsight-ai/netsight-engine/pkg/sql"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// Generation is pinned low so the same question keeps producing the same
// SQL; synthesis gets a little room to phrase the answer.
const (
	sqlGenTemperature    = 0.0
	synthesisTemperature = 0.3
)

// Answer sources reported in AskResponse.
const (
	AnswerSourceVerified  = "verified_query"
	AnswerSourceGenerated = "generated"
)

// AskRequest is one natural-language question. ConversationID continues an
// existing conversation; nil starts a new one.
type AskRequest struct {
	Question       string     `json:"question"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Limit          int        `json:"limit,omitempty"`
}

// AskResponse carries the synthesized answer plus the SQL and rows behind
// it, so callers can audit what the agent actually ran.
type AskResponse struct {
	ConversationID  uuid.UUID           `json:"conversation_id"`
	Answer          string              `json:"answer"`
	SQL             string              `json:"sql,omitempty"`
	Source          string              `json:"source"`
	VerifiedQueryID *uuid.UUID          `json:"verified_query_id,omitempty"`
	Result          *models.QueryResult `json:"result,omitempty"`
}

// AnalystService answers natural-language questions about the fleet. A
// question that matches an enabled verified query runs that query; anything
// else goes through LLM SQL generation behind the guardrails. Results are
// masked for the caller's role before synthesis, so the model never sees
// values the caller may not.
type AnalystService interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, []*models.AnalystMessage, error)
	ListConversations(ctx context.Context, limit int) ([]*models.AnalystConversation, error)
}

type analystService struct {
	smRepo        repositories.SemanticModelRepository
	queries       repositories.VerifiedQueryRepository
	conversations repositories.ConversationRepository
	verified      VerifiedQueryService
	masking       MaskingService
	adapter       warehouse.Adapter
	client        llm.LLMClient // nil when no provider is configured
	breaker       *llm.CircuitBreaker
	auditor       *audit.SecurityAuditor
	rowLimit      int
	logger        *zap.Logger
}

// NewAnalystService creates an analyst service. client may be nil; the
// service then answers verified-query matches only.
func NewAnalystService(
	smRepo repositories.SemanticModelRepository,
	queries repositories.VerifiedQueryRepository,
	conversations repositories.ConversationRepository,
	verified VerifiedQueryService,
	masking MaskingService,
	adapter warehouse.Adapter,
	client llm.LLMClient,
	breaker *llm.CircuitBreaker,
	auditor *audit.SecurityAuditor,
	rowLimit int,
	logger *zap.Logger,
) AnalystService {
	if breaker == nil {
		breaker = llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
	}
	return &analystService{
		smRepo:        smRepo,
		queries:       queries,
		conversations: conversations,
		verified:      verified,
		masking:       masking,
		adapter:       adapter,
		client:        client,
		breaker:       breaker,
		auditor:       auditor,
		rowLimit:      rowLimit,
		logger:        logger,
	}
}

// Ask runs the full question pipeline and persists the exchange.
func (s *analystService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.rowLimit
	}
	started := time.Now()

	conv, err := s.resolveConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	resp := &AskResponse{ConversationID: conv.ID}

	matched, err := s.matchVerifiedQuery(ctx, question)
	if err != nil {
		s.logger.Warn("Verified query matching failed; generating instead", zap.Error(err))
	}

	if matched != nil {
		result, err := s.verified.Run(ctx, matched.ID, nil, limit)
		if err != nil {
			return nil, err
		}
		resp.SQL = matched.SQL
		resp.Result = result
		resp.Source = AnswerSourceVerified
		resp.VerifiedQueryID = &matched.ID
	} else {
		sqlText, result, err := s.generateAndRun(ctx, question, limit)
		if err != nil {
			return nil, err
		}
		resp.SQL = sqlText
		resp.Result = result
		resp.Source = AnswerSourceGenerated
	}

	resp.Answer = s.synthesizeAnswer(ctx, question, resp.SQL, resp.Result)

	durationMs := time.Since(started).Milliseconds()
	answerID := s.persistExchange(ctx, conv, question, resp, durationMs)

	if resp.Source == AnswerSourceGenerated {
		// The verified path logs its own execution under the query's name.
		s.auditor.LogQueryExecution(ctx, answerID, "analyst_generated", audit.ClientIPFromContext(ctx))
	}

	rows := 0
	if resp.Result != nil {
		rows = resp.Result.RowCount
	}
	s.logger.Info("Analyst question answered",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("source", resp.Source),
		zap.Int("rows", rows),
		zap.Int64("duration_ms", durationMs))

	return resp, nil
}

// GetConversation returns a conversation with its full message history.
func (s *analystService) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, []*models.AnalystMessage, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// ListConversations returns the caller's conversations, newest first.
func (s *analystService) ListConversations(ctx context.Context, limit int) ([]*models.AnalystConversation, error) {
	return s.conversations.ListConversations(ctx, callerSubject(ctx), limit)
}

// resolveConversation loads the requested conversation or starts a new one.
// Resolution runs before any LLM call so a bad conversation ID fails cheap.
func (s *analystService) resolveConversation(ctx context.Context, id *uuid.UUID) (*models.AnalystConversation, error) {
	if id != nil {
		conv, err := s.conversations.GetConversation(ctx, *id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve conversation: %w", err)
		}
		return conv, nil
	}

	conv := &models.AnalystConversation{Subject: callerSubject(ctx)}
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// matchVerifiedQuery finds an enabled verified query whose question reads
// as the asked one. Queries needing caller-supplied parameter values are
// skipped; a bare question cannot bind them.
func (s *analystService) matchVerifiedQuery(ctx context.Context, question string) (*models.VerifiedQuery, error) {
	enabled, err := s.queries.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	want := normalizeQuestion(question)
	for _, q := range enabled {
		if q.Question == "" || normalizeQuestion(q.Question) != want {
			continue
		}
		if enginesql.CheckRequiredParameters(q.Parameters, nil) != nil {
			continue
		}
		return q, nil
	}
	return nil, nil
}

// generateAndRun produces SQL for the question, validates it, and executes
// it. A query the database rejects gets one repair round-trip with the
// error message before giving up.
func (s *analystService) generateAndRun(ctx context.Context, question string, limit int) (string, *models.QueryResult, error) {
	if s.client == nil {
		return "", nil, fmt.Errorf("%w and no verified query matches this question", apperrors.ErrLLMNotConfigured)
	}

	active, err := s.smRepo.GetActive(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve active semantic model: %w", err)
	}
	model, err := semantic.Parse([]byte(active.Document))
	if err != nil {
		return "", nil, fmt.Errorf("stored semantic model v%d does not parse: %w", active.Version, err)
	}

	sqlText, err := s.generateSQL(ctx, prompts.BuildSQLGenerationPrompt(model, question, s.adapter.Dialect()))
	if err != nil {
		return "", nil, err
	}
	normalized, err := s.applyGuardrails(ctx, question, sqlText, model)
	if err != nil {
		return "", nil, err
	}

	result, execErr := s.adapter.Query(ctx, normalized, limit)
	if execErr != nil {
		s.logger.Info("Generated SQL failed; attempting repair",
			zap.String("sql", logging.SanitizeQuery(normalized)),
			zap.String("error", logging.SanitizeError(execErr)))

		repaired, err := s.generateSQL(ctx, prompts.BuildSQLRepairPrompt(model, question, normalized, execErr.Error()))
		if err != nil {
			return "", nil, fmt.Errorf("generated query failed: %w", execErr)
		}
		normalized, err = s.applyGuardrails(ctx, question, repaired, model)
		if err != nil {
			return "", nil, err
		}
		result, err = s.adapter.Query(ctx, normalized, limit)
		if err != nil {
			return "", nil, fmt.Errorf("generated query failed after repair: %w", err)
		}
	}

	s.masking.MaskResult(ctx, result, auth.GetRoleFromContext(ctx), enginesql.ExtractTableRefs(normalized))
	return normalized, result, nil
}

// generateSQL runs one LLM round trip and extracts the SQL from it.
func (s *analystService) generateSQL(ctx context.Context, prompt string) (string, error) {
	content, err := s.complete(ctx, prompt, prompts.BuildAnalystSystemMessage(), sqlGenTemperature)
	if err != nil {
		return "", err
	}
	sqlText, err := llm.ExtractSQL(content)
	if err != nil {
		return "", fmt.Errorf("model response contained no SQL: %w", err)
	}
	return sqlText, nil
}

// complete is the circuit-breaker-guarded LLM call.
func (s *analystService) complete(ctx context.Context, prompt, system string, temperature float64) (string, error) {
	if ok, err := s.breaker.Allow(); !ok {
		return "", fmt.Errorf("llm unavailable: %w", err)
	}
	resp, err := s.client.GenerateResponse(ctx, prompt, system, temperature)
	if err != nil {
		s.breaker.RecordFailure()
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	s.breaker.RecordSuccess()
	return resp.Content, nil
}

// applyGuardrails normalizes generated SQL and rejects anything outside
// the read-only, model-scoped surface. Every rejection is audited.
func (s *analystService) applyGuardrails(ctx context.Context, question, sqlText string, model *models.SemanticModel) (string, error) {
	reject := func(reason string, cause error) error {
		s.auditor.LogGuardrailRejection(ctx, audit.GuardrailDetails{
			Reason:   reason,
			Question: question,
			SQL:      sqlText,
		}, audit.ClientIPFromContext(ctx))
		return fmt.Errorf("%w: %v", apperrors.ErrQueryNotPermitted, cause)
	}

	validation := enginesql.ValidateAndNormalize(sqlText)
	if validation.Error != nil {
		return "", reject("statement validation failed", validation.Error)
	}
	if err := enginesql.EnsureReadOnly(validation.NormalizedSQL); err != nil {
		return "", reject("not read-only", err)
	}
	if err := enginesql.ValidateTableAccess(validation.NormalizedSQL, semantic.AllowedTables(model)); err != nil {
		return "", reject("table outside semantic model", err)
	}
	return validation.NormalizedSQL, nil
}

// synthesizeAnswer turns result rows into a prose answer. Rows arrive
// already masked. Without an LLM, or when synthesis fails, a plain row
// summary stands in; the data itself already answered the question.
func (s *analystService) synthesizeAnswer(ctx context.Context, question, sqlText string, result *models.QueryResult) string {
	if s.client == nil {
		return fallbackAnswer(result)
	}

	content, err := s.complete(ctx,
		prompts.BuildAnswerSynthesisPrompt(question, sqlText, result),
		prompts.BuildSynthesisSystemMessage(), synthesisTemperature)
	if err != nil {
		s.logger.Warn("Answer synthesis failed; returning row summary", zap.Error(err))
		return fallbackAnswer(result)
	}

	answer := strings.TrimSpace(llm.StripThinking(content))
	if answer == "" {
		return fallbackAnswer(result)
	}
	return answer
}

// persistExchange stores the question/answer pair and bumps the
// conversation. The answer already exists, so persistence failures are
// logged rather than returned. Returns the assistant message ID.
func (s *analystService) persistExchange(ctx context.Context, conv *models.AnalystConversation, question string, resp *AskResponse, durationMs int64) uuid.UUID {
	userMsg := &models.AnalystMessage{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           models.MessageRoleUser,
		Content:        question,
	}
	if err := s.conversations.AddMessage(ctx, userMsg); err != nil {
		s.logger.Warn("Failed to persist user message", zap.Error(err))
	}

	rows := 0
	if resp.Result != nil {
		rows = resp.Result.RowCount
	}
	answerMsg := &models.AnalystMessage{
		ID:              uuid.New(),
		ConversationID:  conv.ID,
		Role:            models.MessageRoleAssistant,
		Content:         resp.Answer,
		SQL:             resp.SQL,
		VerifiedQueryID: resp.VerifiedQueryID,
		RowCount:        &rows,
		DurationMs:      &durationMs,
	}
	if err := s.conversations.AddMessage(ctx, answerMsg); err != nil {
		s.logger.Warn("Failed to persist assistant message", zap.Error(err))
	}

	if err := s.conversations.Touch(ctx, conv.ID, titleFromQuestion(question)); err != nil {
		s.logger.Warn("Failed to update conversation", zap.Error(err))
	}

	return answerMsg.ID
}

func fallbackAnswer(result *models.QueryResult) string {
	if result == nil || result.RowCount == 0 {
		return "The query returned no rows."
	}
	if result.RowCount == 1 {
		return "The query returned 1 row."
	}
	return fmt.Sprintf("The query returned %d rows.", result.RowCount)
}

// normalizeQuestion canonicalizes a question for matching: lowercased,
// whitespace collapsed, trailing punctuation dropped.
func normalizeQuestion(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.TrimRight(q, "?!. ")
	return strings.Join(strings.Fields(q), " ")
}

// titleFromQuestion derives a short conversation title from the first
// question asked.
func titleFromQuestion(question string) string {
	const maxTitle = 80
	runes := []rune(question)
	if len(runes) <= maxTitle {
		return question
	}
	return string(runes[:maxTitle-3]) + "..."
}

func callerSubject(ctx context.Context) string {
	if subject := auth.GetSubjectFromContext(ctx); subject != "" {
		return subject
	}
	return "anonymous"
}

var _ AnalystService = (*analystService)(nil)
