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

// NetworkRepository provides data access for network dimension rows.
// Networks are written once by the seed pipeline and read-only afterwards.
type NetworkRepository interface {
	CreateBatch(ctx context.Context, networks []*models.Network) error
	GetByID(ctx context.Context, networkID uuid.UUID) (*models.Network, error)
	List(ctx context.Context) ([]*models.Network, error)
	Count(ctx context.Context) (int64, error)
}

type networkRepository struct{}

// NewNetworkRepository creates a new NetworkRepository.
func NewNetworkRepository() NetworkRepository {
	return &networkRepository{}
}

var _ NetworkRepository = (*networkRepository)(nil)

// CreateBatch bulk-loads network rows via the COPY protocol.
func (r *networkRepository) CreateBatch(ctx context.Context, networks []*models.Network) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	now := time.Now()
	rows := make([][]any, len(networks))
	for i, n := range networks {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		rows[i] = []any{n.ID, n.Name, n.Customer, n.Industry, n.City, n.Country, n.SLATarget, n.CreatedAt}
	}

	_, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"wifi", "networks"},
		[]string{"id", "name", "customer", "industry", "city", "country", "sla_target", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy networks: %w", err)
	}

	return nil
}

func (r *networkRepository) GetByID(ctx context.Context, networkID uuid.UUID) (*models.Network, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, name, customer, industry, city, country, sla_target, created_at
		FROM wifi.networks
		WHERE id = $1`

	var n models.Network
	err := scope.Conn.QueryRow(ctx, query, networkID).Scan(
		&n.ID, &n.Name, &n.Customer, &n.Industry, &n.City, &n.Country, &n.SLATarget, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get network: %w", err)
	}

	return &n, nil
}

func (r *networkRepository) List(ctx context.Context) ([]*models.Network, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, name, customer, industry, city, country, sla_target, created_at
		FROM wifi.networks
		ORDER BY name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	defer rows.Close()

	var networks []*models.Network
	for rows.Next() {
		var n models.Network
		if err := rows.Scan(&n.ID, &n.Name, &n.Customer, &n.Industry, &n.City, &n.Country, &n.SLATarget, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan network: %w", err)
		}
		networks = append(networks, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating networks: %w", err)
	}

	return networks, nil
}

func (r *networkRepository) Count(ctx context.Context) (int64, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no role scope in context")
	}

	var count int64
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM wifi.networks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count networks: %w", err)
	}

	return count, nil
}
