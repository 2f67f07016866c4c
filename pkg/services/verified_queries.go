package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
	enginesql "github.com/netsight-ai/netsight-engine/pkg/sql"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// CreateVerifiedQueryRequest registers a curated query outside the semantic
// model document. The query binds to the active model version and must pass
// the same guardrails as agent-generated SQL.
type CreateVerifiedQueryRequest struct {
	Name          string                  `json:"name"`
	Question      string                  `json:"question"`
	SQL           string                  `json:"sql"`
	Parameters    []models.QueryParameter `json:"parameters,omitempty"`
	OutputColumns []models.OutputColumn   `json:"output_columns,omitempty"`
}

// VerifiedQueryService manages curated queries and runs them with parameter
// screening and result masking.
type VerifiedQueryService interface {
	List(ctx context.Context) ([]*models.VerifiedQuery, error)
	Get(ctx context.Context, queryID uuid.UUID) (*models.VerifiedQuery, error)

	// Create registers a curated query against the active semantic model.
	Create(ctx context.Context, req CreateVerifiedQueryRequest) (*models.VerifiedQuery, error)

	// SetEnabled toggles whether a query may run.
	SetEnabled(ctx context.Context, queryID uuid.UUID, enabled bool) error

	// Run executes a verified query with the supplied parameter values.
	// Parameter values are screened for injection before substitution and
	// results are masked for the caller's role.
	Run(ctx context.Context, queryID uuid.UUID, params map[string]any, limit int) (*models.QueryResult, error)

	// RunByName is Run addressed by query name; the MCP tools use it.
	RunByName(ctx context.Context, name string, params map[string]any, limit int) (*models.QueryResult, error)
}

type verifiedQueryService struct {
	queries repositories.VerifiedQueryRepository
	smRepo  repositories.SemanticModelRepository
	adapter warehouse.Adapter
	masking MaskingService
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewVerifiedQueryService creates a verified query service.
func NewVerifiedQueryService(
	queries repositories.VerifiedQueryRepository,
	smRepo repositories.SemanticModelRepository,
	adapter warehouse.Adapter,
	masking MaskingService,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) VerifiedQueryService {
	return &verifiedQueryService{
		queries: queries,
		smRepo:  smRepo,
		adapter: adapter,
		masking: masking,
		auditor: auditor,
		logger:  logger,
	}
}

// List returns every verified query, enabled or not.
func (s *verifiedQueryService) List(ctx context.Context) ([]*models.VerifiedQuery, error) {
	return s.queries.List(ctx)
}

// Get returns one verified query.
func (s *verifiedQueryService) Get(ctx context.Context, queryID uuid.UUID) (*models.VerifiedQuery, error) {
	return s.queries.GetByID(ctx, queryID)
}

// Create registers a curated query against the active semantic model.
func (s *verifiedQueryService) Create(ctx context.Context, req CreateVerifiedQueryRequest) (*models.VerifiedQuery, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("query name is required")
	}
	if strings.TrimSpace(req.SQL) == "" {
		return nil, fmt.Errorf("query SQL is required")
	}

	validation := enginesql.ValidateAndNormalize(req.SQL)
	if validation.Error != nil {
		return nil, fmt.Errorf("query SQL rejected: %w", validation.Error)
	}
	if err := enginesql.EnsureReadOnly(validation.NormalizedSQL); err != nil {
		return nil, fmt.Errorf("query SQL rejected: %w", err)
	}
	if err := enginesql.ValidateParameterDefinitions(validation.NormalizedSQL, req.Parameters); err != nil {
		return nil, fmt.Errorf("parameter definitions invalid: %w", err)
	}

	active, err := s.smRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrModelNotActive) {
			return nil, fmt.Errorf("%w: verified queries bind to the active model", apperrors.ErrModelNotActive)
		}
		return nil, fmt.Errorf("failed to resolve active semantic model: %w", err)
	}
	model, err := semantic.Parse([]byte(active.Document))
	if err != nil {
		return nil, fmt.Errorf("stored semantic model v%d does not parse: %w", active.Version, err)
	}
	if err := enginesql.ValidateTableAccess(validation.NormalizedSQL, semantic.AllowedTables(model)); err != nil {
		return nil, fmt.Errorf("query SQL rejected: %w", err)
	}

	// Undeclared output columns are derived from the SELECT list so the
	// agent still sees a column contract for the query.
	outputColumns := req.OutputColumns
	if len(outputColumns) == 0 {
		if parsed, err := enginesql.ParseSelectColumns(validation.NormalizedSQL); err == nil {
			for _, col := range parsed {
				outputColumns = append(outputColumns, models.OutputColumn{Name: col.Name})
			}
		}
	}

	query := &models.VerifiedQuery{
		Name:          strings.TrimSpace(req.Name),
		Question:      strings.TrimSpace(req.Question),
		SQL:           validation.NormalizedSQL,
		Parameters:    req.Parameters,
		OutputColumns: outputColumns,
		ModelVersion:  active.Version,
		IsEnabled:     true,
	}
	if err := s.queries.Upsert(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to store verified query: %w", err)
	}

	s.logger.Info("Verified query registered",
		zap.String("name", query.Name),
		zap.Int("model_version", query.ModelVersion),
		zap.String("created_by", auth.GetSubjectFromContext(ctx)))

	return query, nil
}

// SetEnabled toggles whether a query may run.
func (s *verifiedQueryService) SetEnabled(ctx context.Context, queryID uuid.UUID, enabled bool) error {
	if err := s.queries.SetEnabled(ctx, queryID, enabled); err != nil {
		return err
	}
	s.logger.Info("Verified query toggled",
		zap.String("query_id", queryID.String()),
		zap.Bool("enabled", enabled))
	return nil
}

// Run executes a verified query by ID.
func (s *verifiedQueryService) Run(ctx context.Context, queryID uuid.UUID, params map[string]any, limit int) (*models.QueryResult, error) {
	query, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, query, params, limit)
}

// RunByName executes a verified query by name.
func (s *verifiedQueryService) RunByName(ctx context.Context, name string, params map[string]any, limit int) (*models.QueryResult, error) {
	query, err := s.queries.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, query, params, limit)
}

func (s *verifiedQueryService) run(ctx context.Context, query *models.VerifiedQuery, params map[string]any, limit int) (*models.QueryResult, error) {
	if !query.IsEnabled {
		return nil, fmt.Errorf("%w: query %q is disabled", apperrors.ErrQueryNotPermitted, query.Name)
	}

	if err := enginesql.CheckRequiredParameters(query.Parameters, params); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMissingParameter, err)
	}

	clientIP := audit.ClientIPFromContext(ctx)
	if hits := enginesql.CheckAllParameters(params); len(hits) > 0 {
		for _, hit := range hits {
			s.auditor.LogInjectionAttempt(ctx, audit.SQLInjectionDetails{
				ParamName:   hit.ParamName,
				ParamValue:  fmt.Sprintf("%v", hit.ParamValue),
				Fingerprint: hit.Fingerprint,
				QueryName:   query.Name,
			}, clientIP)
		}
		return nil, fmt.Errorf("%w: parameter values failed injection screening", apperrors.ErrQueryNotPermitted)
	}

	preparedSQL, values, err := enginesql.SubstituteParameters(query.SQL, query.Parameters, params)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query %q: %w", query.Name, err)
	}

	result, err := s.adapter.QueryWithParams(ctx, preparedSQL, values, limit)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", query.Name, err)
	}

	s.masking.MaskResult(ctx, result, auth.GetRoleFromContext(ctx), enginesql.ExtractTableRefs(query.SQL))
	s.auditor.LogQueryExecution(ctx, query.ID, query.Name, clientIP)

	// Usage tracking is best effort; a failed bump never fails the query.
	if err := s.queries.IncrementUsage(ctx, query.ID); err != nil {
		s.logger.Warn("Failed to increment query usage",
			zap.String("query_id", query.ID.String()),
			zap.Error(err))
	}

	return result, nil
}

var _ VerifiedQueryService = (*verifiedQueryService)(nil)
