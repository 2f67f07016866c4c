package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// SemanticModelRepository provides data access for stored semantic model
// versions. Versions are immutable once created; activation flips which one
// the analyst agent reads.
type SemanticModelRepository interface {
	// Create stores a new version with the next version number and returns it.
	Create(ctx context.Context, document, checksum, createdBy string) (*models.SemanticModelVersion, error)
	GetActive(ctx context.Context) (*models.SemanticModelVersion, error)
	GetByVersion(ctx context.Context, version int) (*models.SemanticModelVersion, error)
	List(ctx context.Context) ([]*models.SemanticModelVersion, error)
	// GetByChecksum finds a stored version with the given document checksum.
	GetByChecksum(ctx context.Context, checksum string) (*models.SemanticModelVersion, error)
	// Activate makes one version active and deactivates the rest, atomically.
	Activate(ctx context.Context, version int) (*models.SemanticModelVersion, error)
}

type semanticModelRepository struct{}

// NewSemanticModelRepository creates a new SemanticModelRepository.
func NewSemanticModelRepository() SemanticModelRepository {
	return &semanticModelRepository{}
}

var _ SemanticModelRepository = (*semanticModelRepository)(nil)

const semanticModelColumns = `id, version, document, checksum, is_active, activated_at, created_by, created_at`

func (r *semanticModelRepository) Create(ctx context.Context, document, checksum, createdBy string) (*models.SemanticModelVersion, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	v := &models.SemanticModelVersion{
		ID:        uuid.New(),
		Document:  document,
		Checksum:  checksum,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	// Version numbers are assigned inside the insert so concurrent creates
	// cannot race to the same number.
	query := `
		INSERT INTO engine_semantic_models (id, version, document, checksum, is_active, created_by, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, false, $4, $5
		FROM engine_semantic_models
		RETURNING version`

	err := scope.Conn.QueryRow(ctx, query, v.ID, v.Document, v.Checksum, v.CreatedBy, v.CreatedAt).Scan(&v.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create semantic model version: %w", err)
	}

	return v, nil
}

func (r *semanticModelRepository) GetActive(ctx context.Context) (*models.SemanticModelVersion, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + semanticModelColumns + `
		FROM engine_semantic_models
		WHERE is_active = true`

	v, err := scanSemanticModelVersion(scope.Conn.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrModelNotActive
		}
		return nil, fmt.Errorf("failed to get active semantic model: %w", err)
	}

	return v, nil
}

func (r *semanticModelRepository) GetByVersion(ctx context.Context, version int) (*models.SemanticModelVersion, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + semanticModelColumns + `
		FROM engine_semantic_models
		WHERE version = $1`

	v, err := scanSemanticModelVersion(scope.Conn.QueryRow(ctx, query, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get semantic model version: %w", err)
	}

	return v, nil
}

func (r *semanticModelRepository) GetByChecksum(ctx context.Context, checksum string) (*models.SemanticModelVersion, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + semanticModelColumns + `
		FROM engine_semantic_models
		WHERE checksum = $1
		ORDER BY version DESC
		LIMIT 1`

	v, err := scanSemanticModelVersion(scope.Conn.QueryRow(ctx, query, checksum))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get semantic model by checksum: %w", err)
	}

	return v, nil
}

func (r *semanticModelRepository) List(ctx context.Context) ([]*models.SemanticModelVersion, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + semanticModelColumns + `
		FROM engine_semantic_models
		ORDER BY version DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list semantic model versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.SemanticModelVersion
	for rows.Next() {
		v, err := scanSemanticModelVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan semantic model version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating semantic model versions: %w", err)
	}

	return versions, nil
}

func (r *semanticModelRepository) Activate(ctx context.Context, version int) (*models.SemanticModelVersion, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin activation: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if _, err := tx.Exec(ctx, `UPDATE engine_semantic_models SET is_active = false WHERE is_active = true`); err != nil {
		return nil, fmt.Errorf("failed to deactivate semantic models: %w", err)
	}

	query := `
		UPDATE engine_semantic_models
		SET is_active = true, activated_at = $2
		WHERE version = $1
		RETURNING ` + semanticModelColumns

	v, err := scanSemanticModelVersion(tx.QueryRow(ctx, query, version, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to activate semantic model version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return v, nil
}

func scanSemanticModelVersion(row pgx.Row) (*models.SemanticModelVersion, error) {
	var v models.SemanticModelVersion
	err := row.Scan(
		&v.ID, &v.Version, &v.Document, &v.Checksum, &v.IsActive, &v.ActivatedAt, &v.CreatedBy, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
