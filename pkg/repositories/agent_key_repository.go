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

// AgentKeyRepository provides data access for agent API keys used by MCP
// clients. Key material is stored encrypted; lookups go through the display
// prefix and the service layer does the actual comparison.
type AgentKeyRepository interface {
	Create(ctx context.Context, key *models.AgentAPIKey) error
	List(ctx context.Context) ([]*models.AgentAPIKey, error)
	// GetByPrefix returns all keys sharing a display prefix. Prefixes are
	// not unique by construction, so callers check each candidate.
	GetByPrefix(ctx context.Context, prefix string) ([]*models.AgentAPIKey, error)
	SetEnabled(ctx context.Context, keyID uuid.UUID, isEnabled bool) error
	Delete(ctx context.Context, keyID uuid.UUID) error
	TouchLastUsed(ctx context.Context, keyID uuid.UUID) error
}

type agentKeyRepository struct{}

// NewAgentKeyRepository creates a new AgentKeyRepository.
func NewAgentKeyRepository() AgentKeyRepository {
	return &agentKeyRepository{}
}

var _ AgentKeyRepository = (*agentKeyRepository)(nil)

const agentKeyColumns = `id, name, key_prefix, key_encrypted, role, is_enabled, last_used_at, created_at`

func (r *agentKeyRepository) Create(ctx context.Context, key *models.AgentAPIKey) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.CreatedAt = time.Now()

	query := `
		INSERT INTO engine_agent_keys (id, name, key_prefix, key_encrypted, role, is_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := scope.Conn.Exec(ctx, query,
		key.ID, key.Name, key.KeyPrefix, key.KeyEncrypted, key.Role, key.IsEnabled, key.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create agent key: %w", err)
	}

	return nil
}

func (r *agentKeyRepository) List(ctx context.Context) ([]*models.AgentAPIKey, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + agentKeyColumns + `
		FROM engine_agent_keys
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent keys: %w", err)
	}
	defer rows.Close()

	return scanAgentKeyRows(rows)
}

func (r *agentKeyRepository) GetByPrefix(ctx context.Context, prefix string) ([]*models.AgentAPIKey, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + agentKeyColumns + `
		FROM engine_agent_keys
		WHERE key_prefix = $1 AND is_enabled = true`

	rows, err := scope.Conn.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent keys by prefix: %w", err)
	}
	defer rows.Close()

	return scanAgentKeyRows(rows)
}

func (r *agentKeyRepository) SetEnabled(ctx context.Context, keyID uuid.UUID, isEnabled bool) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE engine_agent_keys SET is_enabled = $2 WHERE id = $1`, keyID, isEnabled)
	if err != nil {
		return fmt.Errorf("failed to update agent key status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *agentKeyRepository) Delete(ctx context.Context, keyID uuid.UUID) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM engine_agent_keys WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete agent key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *agentKeyRepository) TouchLastUsed(ctx context.Context, keyID uuid.UUID) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	_, err := scope.Conn.Exec(ctx,
		`UPDATE engine_agent_keys SET last_used_at = $2 WHERE id = $1`, keyID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch agent key: %w", err)
	}

	return nil
}

func scanAgentKeyRows(rows pgx.Rows) ([]*models.AgentAPIKey, error) {
	var keys []*models.AgentAPIKey
	for rows.Next() {
		var k models.AgentAPIKey
		if err := rows.Scan(
			&k.ID, &k.Name, &k.KeyPrefix, &k.KeyEncrypted, &k.Role, &k.IsEnabled, &k.LastUsedAt, &k.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent key: %w", err)
		}
		keys = append(keys, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent keys: %w", err)
	}
	return keys, nil
}
