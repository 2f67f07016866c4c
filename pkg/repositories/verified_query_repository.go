package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// VerifiedQueryRepository provides data access for the curated query store.
// Queries are declared in the semantic model document; activating a model
// version upserts them here by name.
type VerifiedQueryRepository interface {
	Upsert(ctx context.Context, query *models.VerifiedQuery) error
	GetByID(ctx context.Context, queryID uuid.UUID) (*models.VerifiedQuery, error)
	GetByName(ctx context.Context, name string) (*models.VerifiedQuery, error)
	List(ctx context.Context) ([]*models.VerifiedQuery, error)
	ListEnabled(ctx context.Context) ([]*models.VerifiedQuery, error)
	SetEnabled(ctx context.Context, queryID uuid.UUID, isEnabled bool) error
	// DisableOtherVersions disables enabled queries not declared by the
	// given model version. Returns the number of queries disabled.
	DisableOtherVersions(ctx context.Context, modelVersion int) (int64, error)
	IncrementUsage(ctx context.Context, queryID uuid.UUID) error
}

type verifiedQueryRepository struct{}

// NewVerifiedQueryRepository creates a new VerifiedQueryRepository.
func NewVerifiedQueryRepository() VerifiedQueryRepository {
	return &verifiedQueryRepository{}
}

var _ VerifiedQueryRepository = (*verifiedQueryRepository)(nil)

const verifiedQueryColumns = `id, name, question, sql_query, parameters, output_columns,
	       model_version, is_enabled, usage_count, last_used_at, created_at, updated_at`

// Upsert inserts or refreshes a query by its unique name. Usage statistics
// survive re-activation; the definition fields follow the model document.
func (r *verifiedQueryRepository) Upsert(ctx context.Context, query *models.VerifiedQuery) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	now := time.Now()
	if query.ID == uuid.Nil {
		query.ID = uuid.New()
	}
	query.CreatedAt = now
	query.UpdatedAt = now

	parametersJSON, err := json.Marshal(query.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	outputColumnsJSON, err := json.Marshal(query.OutputColumns)
	if err != nil {
		return fmt.Errorf("failed to marshal output_columns: %w", err)
	}

	sql := `
		INSERT INTO engine_verified_queries (
			id, name, question, sql_query, parameters, output_columns,
			model_version, is_enabled, usage_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
		ON CONFLICT (name) DO UPDATE SET
			question = EXCLUDED.question,
			sql_query = EXCLUDED.sql_query,
			parameters = EXCLUDED.parameters,
			output_columns = EXCLUDED.output_columns,
			model_version = EXCLUDED.model_version,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, usage_count, created_at`

	err = scope.Conn.QueryRow(ctx, sql,
		query.ID, query.Name, query.Question, query.SQL, parametersJSON, outputColumnsJSON,
		query.ModelVersion, query.IsEnabled, query.CreatedAt, query.UpdatedAt,
	).Scan(&query.ID, &query.UsageCount, &query.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert verified query: %w", err)
	}

	return nil
}

func (r *verifiedQueryRepository) GetByID(ctx context.Context, queryID uuid.UUID) (*models.VerifiedQuery, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	sql := `
		SELECT ` + verifiedQueryColumns + `
		FROM engine_verified_queries
		WHERE id = $1`

	q, err := scanVerifiedQuery(scope.Conn.QueryRow(ctx, sql, queryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verified query: %w", err)
	}

	return q, nil
}

func (r *verifiedQueryRepository) GetByName(ctx context.Context, name string) (*models.VerifiedQuery, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	sql := `
		SELECT ` + verifiedQueryColumns + `
		FROM engine_verified_queries
		WHERE name = $1`

	q, err := scanVerifiedQuery(scope.Conn.QueryRow(ctx, sql, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verified query by name: %w", err)
	}

	return q, nil
}

func (r *verifiedQueryRepository) List(ctx context.Context) ([]*models.VerifiedQuery, error) {
	return r.list(ctx, `
		SELECT `+verifiedQueryColumns+`
		FROM engine_verified_queries
		ORDER BY name`)
}

func (r *verifiedQueryRepository) ListEnabled(ctx context.Context) ([]*models.VerifiedQuery, error) {
	return r.list(ctx, `
		SELECT `+verifiedQueryColumns+`
		FROM engine_verified_queries
		WHERE is_enabled = true
		ORDER BY name`)
}

func (r *verifiedQueryRepository) list(ctx context.Context, sql string) ([]*models.VerifiedQuery, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	rows, err := scope.Conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified queries: %w", err)
	}
	defer rows.Close()

	var queries []*models.VerifiedQuery
	for rows.Next() {
		q, err := scanVerifiedQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verified query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verified queries: %w", err)
	}

	return queries, nil
}

func (r *verifiedQueryRepository) SetEnabled(ctx context.Context, queryID uuid.UUID, isEnabled bool) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	sql := `
		UPDATE engine_verified_queries
		SET is_enabled = $2, updated_at = $3
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, sql, queryID, isEnabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update verified query status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *verifiedQueryRepository) DisableOtherVersions(ctx context.Context, modelVersion int) (int64, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no role scope in context")
	}

	sql := `
		UPDATE engine_verified_queries
		SET is_enabled = false, updated_at = $2
		WHERE is_enabled = true AND model_version <> $1`

	tag, err := scope.Conn.Exec(ctx, sql, modelVersion, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to disable stale verified queries: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *verifiedQueryRepository) IncrementUsage(ctx context.Context, queryID uuid.UUID) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	sql := `
		UPDATE engine_verified_queries
		SET usage_count = usage_count + 1, last_used_at = $2
		WHERE id = $1`

	_, err := scope.Conn.Exec(ctx, sql, queryID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment usage count: %w", err)
	}

	return nil
}

func scanVerifiedQuery(row pgx.Row) (*models.VerifiedQuery, error) {
	var q models.VerifiedQuery
	var parametersJSON, outputColumnsJSON []byte

	err := row.Scan(
		&q.ID, &q.Name, &q.Question, &q.SQL, &parametersJSON, &outputColumnsJSON,
		&q.ModelVersion, &q.IsEnabled, &q.UsageCount, &q.LastUsedAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(parametersJSON) > 0 {
		if err := json.Unmarshal(parametersJSON, &q.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	if len(outputColumnsJSON) > 0 {
		if err := json.Unmarshal(outputColumnsJSON, &q.OutputColumns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output_columns: %w", err)
		}
	}

	return &q, nil
}
