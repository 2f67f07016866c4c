package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/masking"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// MaskingService manages column masking policies and applies them to
// governed query results.
type MaskingService interface {
	// CreatePolicy validates and stores a policy. The creating subject is
	// taken from the caller's claims.
	CreatePolicy(ctx context.Context, policy *models.MaskingPolicy) (*models.MaskingPolicy, error)

	// UpdatePolicy rewrites a policy's masking behavior. The column binding
	// is immutable; create a new policy to cover a different column.
	UpdatePolicy(ctx context.Context, policy *models.MaskingPolicy) (*models.MaskingPolicy, error)

	DeletePolicy(ctx context.Context, policyID uuid.UUID) error
	GetPolicy(ctx context.Context, policyID uuid.UUID) (*models.MaskingPolicy, error)
	ListPolicies(ctx context.Context) ([]*models.MaskingPolicy, error)

	// Scan introspects the warehouse and suggests policies for columns that
	// look sensitive but are not covered yet.
	Scan(ctx context.Context) ([]models.MaskingSuggestion, error)

	// MaskResult applies all policies to a query result in place for the
	// given role and returns the masked column names. Masked access is
	// recorded in the security audit log.
	MaskResult(ctx context.Context, result *models.QueryResult, role auth.Role, referencedTables []string) []string
}

type maskingService struct {
	repo     repositories.MaskingPolicyRepository
	adapter  warehouse.Adapter
	detector *masking.Detector
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewMaskingService creates a masking service.
func NewMaskingService(
	repo repositories.MaskingPolicyRepository,
	adapter warehouse.Adapter,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) MaskingService {
	return &maskingService{
		repo:     repo,
		adapter:  adapter,
		detector: masking.DefaultDetector,
		auditor:  auditor,
		logger:   logger,
	}
}

// CreatePolicy validates and stores a policy.
func (s *maskingService) CreatePolicy(ctx context.Context, policy *models.MaskingPolicy) (*models.MaskingPolicy, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}
	if policy.CreatedBy == "" {
		policy.CreatedBy = auth.GetSubjectFromContext(ctx)
	}

	if err := s.repo.Create(ctx, policy); err != nil {
		return nil, err
	}

	s.logger.Info("Created masking policy",
		zap.String("policy_id", policy.ID.String()),
		zap.String("column", policy.SchemaName+"."+policy.TableName+"."+policy.ColumnName),
		zap.String("masking_type", policy.MaskingType),
	)

	return policy, nil
}

// UpdatePolicy rewrites a policy's masking behavior.
func (s *maskingService) UpdatePolicy(ctx context.Context, policy *models.MaskingPolicy) (*models.MaskingPolicy, error) {
	existing, err := s.repo.GetByID(ctx, policy.ID)
	if err != nil {
		return nil, err
	}

	// Column binding never changes on update.
	policy.SchemaName = existing.SchemaName
	policy.TableName = existing.TableName
	policy.ColumnName = existing.ColumnName
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, policy); err != nil {
		return nil, err
	}

	s.logger.Info("Updated masking policy",
		zap.String("policy_id", policy.ID.String()),
		zap.String("masking_type", policy.MaskingType),
	)

	return policy, nil
}

// DeletePolicy removes a policy.
func (s *maskingService) DeletePolicy(ctx context.Context, policyID uuid.UUID) error {
	if err := s.repo.Delete(ctx, policyID); err != nil {
		return err
	}
	s.logger.Info("Deleted masking policy", zap.String("policy_id", policyID.String()))
	return nil
}

// GetPolicy retrieves one policy.
func (s *maskingService) GetPolicy(ctx context.Context, policyID uuid.UUID) (*models.MaskingPolicy, error) {
	return s.repo.GetByID(ctx, policyID)
}

// ListPolicies returns all policies.
func (s *maskingService) ListPolicies(ctx context.Context) ([]*models.MaskingPolicy, error) {
	return s.repo.List(ctx)
}

// Scan introspects the warehouse and suggests policies for uncovered
// sensitive-looking columns.
func (s *maskingService) Scan(ctx context.Context) ([]models.MaskingSuggestion, error) {
	columns, err := s.adapter.DescribeColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect warehouse columns: %w", err)
	}

	existing, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing policies: %w", err)
	}

	suggestions := s.detector.Scan(columns, existing)

	s.logger.Info("Masking scan complete",
		zap.Int("columns_scanned", len(columns)),
		zap.Int("suggestions", len(suggestions)),
	)

	return suggestions, nil
}

// MaskResult applies all policies to a result for the given role.
// Policy lookup failures fail closed: the result keeps only its column
// headers so unmasked values can never leak past a broken policy store.
func (s *maskingService) MaskResult(ctx context.Context, result *models.QueryResult, role auth.Role, referencedTables []string) []string {
	if result == nil || len(result.Rows) == 0 {
		return nil
	}

	policies, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to load masking policies; dropping result rows",
			zap.Error(err),
		)
		result.Rows = nil
		result.RowCount = 0
		return nil
	}

	maskedCols := masking.Apply(result, policies, role, referencedTables)
	if len(maskedCols) > 0 {
		result.MaskedCols = maskedCols
		s.auditor.LogMaskedAccess(ctx, audit.MaskedAccessDetails{
			Columns: maskedCols,
			Rows:    len(result.Rows),
		}, audit.ClientIPFromContext(ctx))
	}
	return maskedCols
}

// validatePolicy checks a policy's shape before it reaches the store.
func validatePolicy(policy *models.MaskingPolicy) error {
	if strings.TrimSpace(policy.SchemaName) == "" ||
		strings.TrimSpace(policy.TableName) == "" ||
		strings.TrimSpace(policy.ColumnName) == "" {
		return fmt.Errorf("schema, table, and column are required")
	}
	if !models.ValidMaskingType(policy.MaskingType) {
		return fmt.Errorf("unknown masking type %q", policy.MaskingType)
	}
	if policy.MaskingType == models.MaskPartial && policy.KeepSuffix <= 0 {
		return fmt.Errorf("partial masking requires keep_suffix > 0")
	}
	for _, r := range policy.ExemptRoles {
		if !auth.Role(r).Valid() {
			return fmt.Errorf("%w: exempt role %q", apperrors.ErrInvalidRole, r)
		}
	}
	return nil
}

// Ensure maskingService implements MaskingService at compile time.
var _ MaskingService = (*maskingService)(nil)
