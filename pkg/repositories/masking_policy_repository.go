package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// MaskingPolicyRepository provides data access for column masking policies.
type MaskingPolicyRepository interface {
	Create(ctx context.Context, policy *models.MaskingPolicy) error
	Update(ctx context.Context, policy *models.MaskingPolicy) error
	Delete(ctx context.Context, policyID uuid.UUID) error
	GetByID(ctx context.Context, policyID uuid.UUID) (*models.MaskingPolicy, error)
	List(ctx context.Context) ([]*models.MaskingPolicy, error)
}

type maskingPolicyRepository struct{}

// NewMaskingPolicyRepository creates a new MaskingPolicyRepository.
func NewMaskingPolicyRepository() MaskingPolicyRepository {
	return &maskingPolicyRepository{}
}

var _ MaskingPolicyRepository = (*maskingPolicyRepository)(nil)

const maskingPolicyColumns = `id, schema_name, table_name, column_name, masking_type,
	       keep_suffix, exempt_roles, description, created_by, created_at, updated_at`

// Create inserts a policy. A second policy on the same column returns
// apperrors.ErrConflict (unique constraint on schema/table/column).
func (r *maskingPolicyRepository) Create(ctx context.Context, policy *models.MaskingPolicy) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	now := time.Now()
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	policy.CreatedAt = now
	policy.UpdatedAt = now

	query := `
		INSERT INTO engine_masking_policies (
			id, schema_name, table_name, column_name, masking_type,
			keep_suffix, exempt_roles, description, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Conn.Exec(ctx, query,
		policy.ID, policy.SchemaName, policy.TableName, policy.ColumnName, policy.MaskingType,
		policy.KeepSuffix, policy.ExemptRoles, policy.Description, policy.CreatedBy, policy.CreatedAt, policy.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create masking policy: %w", err)
	}

	return nil
}

func (r *maskingPolicyRepository) Update(ctx context.Context, policy *models.MaskingPolicy) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	policy.UpdatedAt = time.Now()

	query := `
		UPDATE engine_masking_policies
		SET masking_type = $2,
		    keep_suffix = $3,
		    exempt_roles = $4,
		    description = $5,
		    updated_at = $6
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query,
		policy.ID, policy.MaskingType, policy.KeepSuffix, policy.ExemptRoles, policy.Description, policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update masking policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *maskingPolicyRepository) Delete(ctx context.Context, policyID uuid.UUID) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM engine_masking_policies WHERE id = $1`, policyID)
	if err != nil {
		return fmt.Errorf("failed to delete masking policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *maskingPolicyRepository) GetByID(ctx context.Context, policyID uuid.UUID) (*models.MaskingPolicy, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + maskingPolicyColumns + `
		FROM engine_masking_policies
		WHERE id = $1`

	p, err := scanMaskingPolicy(scope.Conn.QueryRow(ctx, query, policyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get masking policy: %w", err)
	}

	return p, nil
}

func (r *maskingPolicyRepository) List(ctx context.Context) ([]*models.MaskingPolicy, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + maskingPolicyColumns + `
		FROM engine_masking_policies
		ORDER BY schema_name, table_name, column_name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list masking policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.MaskingPolicy
	for rows.Next() {
		p, err := scanMaskingPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan masking policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating masking policies: %w", err)
	}

	return policies, nil
}

func scanMaskingPolicy(row pgx.Row) (*models.MaskingPolicy, error) {
	var p models.MaskingPolicy
	err := row.Scan(
		&p.ID, &p.SchemaName, &p.TableName, &p.ColumnName, &p.MaskingType,
		&p.KeepSuffix, &p.ExemptRoles, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
