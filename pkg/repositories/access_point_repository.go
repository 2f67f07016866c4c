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

// AccessPointRepository provides data access for access point dimension rows.
type AccessPointRepository interface {
	CreateBatch(ctx context.Context, aps []*models.AccessPoint) error
	GetByID(ctx context.Context, apID uuid.UUID) (*models.AccessPoint, error)
	// GetByMAC resolves an access point by its normalized MAC address.
	// The ingest path uses it to attribute raw telemetry envelopes.
	GetByMAC(ctx context.Context, mac string) (*models.AccessPoint, error)
	ListByNetwork(ctx context.Context, networkID uuid.UUID) ([]*models.AccessPoint, error)
	List(ctx context.Context) ([]*models.AccessPoint, error)
	Count(ctx context.Context) (int64, error)
}

type accessPointRepository struct{}

// NewAccessPointRepository creates a new AccessPointRepository.
func NewAccessPointRepository() AccessPointRepository {
	return &accessPointRepository{}
}

var _ AccessPointRepository = (*accessPointRepository)(nil)

const accessPointColumns = `id, network_id, name, mac_address, model, manufacturer,
	       wifi_standard, max_clients, firmware, site, building, floor, zone, created_at`

// CreateBatch bulk-loads access point rows via the COPY protocol.
func (r *accessPointRepository) CreateBatch(ctx context.Context, aps []*models.AccessPoint) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	now := time.Now()
	rows := make([][]any, len(aps))
	for i, ap := range aps {
		if ap.CreatedAt.IsZero() {
			ap.CreatedAt = now
		}
		rows[i] = []any{
			ap.ID, ap.NetworkID, ap.Name, ap.MACAddress, ap.Model, ap.Manufacturer,
			ap.WiFiStandard, ap.MaxClients, ap.Firmware, ap.Site, ap.Building, ap.Floor, ap.Zone, ap.CreatedAt,
		}
	}

	_, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"wifi", "access_points"},
		[]string{"id", "network_id", "name", "mac_address", "model", "manufacturer",
			"wifi_standard", "max_clients", "firmware", "site", "building", "floor", "zone", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy access points: %w", err)
	}

	return nil
}

func (r *accessPointRepository) GetByID(ctx context.Context, apID uuid.UUID) (*models.AccessPoint, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + accessPointColumns + `
		FROM wifi.access_points
		WHERE id = $1`

	ap, err := scanAccessPoint(scope.Conn.QueryRow(ctx, query, apID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access point: %w", err)
	}

	return ap, nil
}

func (r *accessPointRepository) GetByMAC(ctx context.Context, mac string) (*models.AccessPoint, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + accessPointColumns + `
		FROM wifi.access_points
		WHERE LOWER(mac_address) = LOWER($1)`

	ap, err := scanAccessPoint(scope.Conn.QueryRow(ctx, query, mac))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access point by mac: %w", err)
	}

	return ap, nil
}

func (r *accessPointRepository) ListByNetwork(ctx context.Context, networkID uuid.UUID) ([]*models.AccessPoint, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + accessPointColumns + `
		FROM wifi.access_points
		WHERE network_id = $1
		ORDER BY name`

	rows, err := scope.Conn.Query(ctx, query, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access points: %w", err)
	}
	defer rows.Close()

	return scanAccessPointRows(rows)
}

func (r *accessPointRepository) List(ctx context.Context) ([]*models.AccessPoint, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + accessPointColumns + `
		FROM wifi.access_points
		ORDER BY network_id, name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list access points: %w", err)
	}
	defer rows.Close()

	return scanAccessPointRows(rows)
}

func (r *accessPointRepository) Count(ctx context.Context) (int64, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no role scope in context")
	}

	var count int64
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM wifi.access_points`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count access points: %w", err)
	}

	return count, nil
}

func scanAccessPointRows(rows pgx.Rows) ([]*models.AccessPoint, error) {
	var aps []*models.AccessPoint
	for rows.Next() {
		ap, err := scanAccessPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access point: %w", err)
		}
		aps = append(aps, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access points: %w", err)
	}
	return aps, nil
}

func scanAccessPoint(row pgx.Row) (*models.AccessPoint, error) {
	var ap models.AccessPoint
	err := row.Scan(
		&ap.ID, &ap.NetworkID, &ap.Name, &ap.MACAddress, &ap.Model, &ap.Manufacturer,
		&ap.WiFiStandard, &ap.MaxClients, &ap.Firmware, &ap.Site, &ap.Building, &ap.Floor, &ap.Zone, &ap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ap, nil
}
