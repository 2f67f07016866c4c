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

// TelemetryRepository provides data access for the append-only fact tables.
// Facts are immutable: batch loads come from the seed pipeline via COPY,
// single inserts from the ingest path. A fact that already exists for a
// (timestamp, access point) pair is never overwritten.
type TelemetryRepository interface {
	InsertStatusBatch(ctx context.Context, snapshots []*models.StatusSnapshot) error
	InsertQoSBatch(ctx context.Context, measurements []*models.QoSMeasurement) error

	// InsertStatus appends one status fact. Returns apperrors.ErrImmutableFact
	// if a fact already exists for the same timestamp and access point.
	InsertStatus(ctx context.Context, snapshot *models.StatusSnapshot) error
	// InsertQoS appends one QoS fact, with the same conflict semantics.
	InsertQoS(ctx context.Context, measurement *models.QoSMeasurement) error

	// FleetSummary returns the latest observed state per access point,
	// optionally filtered to one network.
	FleetSummary(ctx context.Context, networkID *uuid.UUID) ([]*models.APTelemetrySummary, error)

	// NetworkHealth returns the per-network rollup over the trailing day.
	NetworkHealth(ctx context.Context) ([]*models.NetworkHealth, error)
	NetworkHealthByID(ctx context.Context, networkID uuid.UUID) (*models.NetworkHealth, error)

	// LatestQoSTimestamp returns the newest fact timestamp, or nil when the
	// fact table is empty.
	LatestQoSTimestamp(ctx context.Context) (*time.Time, error)

	CountStatus(ctx context.Context) (int64, error)
	CountQoS(ctx context.Context) (int64, error)
}

type telemetryRepository struct{}

// NewTelemetryRepository creates a new TelemetryRepository.
func NewTelemetryRepository() TelemetryRepository {
	return &telemetryRepository{}
}

var _ TelemetryRepository = (*telemetryRepository)(nil)

func (r *telemetryRepository) InsertStatusBatch(ctx context.Context, snapshots []*models.StatusSnapshot) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	rows := make([][]any, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []any{s.Timestamp, s.APID, s.NetworkID, s.Status, s.ClientCount, s.CPUPercent, s.MemPercent}
	}

	_, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"wifi", "ap_status_facts"},
		[]string{"ts", "ap_id", "network_id", "status", "client_count", "cpu_percent", "mem_percent"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy status facts: %w", err)
	}

	return nil
}

func (r *telemetryRepository) InsertQoSBatch(ctx context.Context, measurements []*models.QoSMeasurement) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	rows := make([][]any, len(measurements))
	for i, m := range measurements {
		rows[i] = []any{
			m.Timestamp, m.APID, m.NetworkID, m.RSSI, m.ThroughputMbps,
			m.LatencyMs, m.PacketLossPct, m.InterferencePct, m.QualityScore, m.SignalBand,
		}
	}

	_, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"wifi", "qos_facts"},
		[]string{"ts", "ap_id", "network_id", "rssi_dbm", "throughput_mbps",
			"latency_ms", "packet_loss_pct", "interference_pct", "quality_score", "signal_band"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy qos facts: %w", err)
	}

	return nil
}

func (r *telemetryRepository) InsertStatus(ctx context.Context, snapshot *models.StatusSnapshot) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	query := `
		INSERT INTO wifi.ap_status_facts (ts, ap_id, network_id, status, client_count, cpu_percent, mem_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ts, ap_id) DO NOTHING`

	tag, err := scope.Conn.Exec(ctx, query,
		snapshot.Timestamp, snapshot.APID, snapshot.NetworkID,
		snapshot.Status, snapshot.ClientCount, snapshot.CPUPercent, snapshot.MemPercent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status fact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrImmutableFact
	}

	return nil
}

func (r *telemetryRepository) InsertQoS(ctx context.Context, measurement *models.QoSMeasurement) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	query := `
		INSERT INTO wifi.qos_facts (ts, ap_id, network_id, rssi_dbm, throughput_mbps,
			latency_ms, packet_loss_pct, interference_pct, quality_score, signal_band)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ts, ap_id) DO NOTHING`

	tag, err := scope.Conn.Exec(ctx, query,
		measurement.Timestamp, measurement.APID, measurement.NetworkID,
		measurement.RSSI, measurement.ThroughputMbps, measurement.LatencyMs,
		measurement.PacketLossPct, measurement.InterferencePct, measurement.QualityScore, measurement.SignalBand,
	)
	if err != nil {
		return fmt.Errorf("failed to insert qos fact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrImmutableFact
	}

	return nil
}

// FleetSummary joins the newest status fact per access point with its QoS
// fact from the same instant. Offline snapshots carry no QoS row; their
// radio metrics come back zeroed with an empty band.
func (r *telemetryRepository) FleetSummary(ctx context.Context, networkID *uuid.UUID) ([]*models.APTelemetrySummary, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT s.ap_id, ap.name, ap.network_id, n.name, s.ts, s.status, s.client_count,
		       COALESCE(q.rssi_dbm, 0), COALESCE(q.throughput_mbps, 0),
		       COALESCE(q.latency_ms, 0), COALESCE(q.quality_score, 0), COALESCE(q.signal_band, '')
		FROM (
			SELECT DISTINCT ON (ap_id) ap_id, ts, status, client_count
			FROM wifi.ap_status_facts
			ORDER BY ap_id, ts DESC
		) s
		JOIN wifi.access_points ap ON ap.id = s.ap_id
		JOIN wifi.networks n ON n.id = ap.network_id
		LEFT JOIN wifi.qos_facts q ON q.ap_id = s.ap_id AND q.ts = s.ts`

	args := []any{}
	if networkID != nil {
		query += `
		WHERE ap.network_id = $1`
		args = append(args, *networkID)
	}
	query += `
		ORDER BY n.name, ap.name`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fleet summary: %w", err)
	}
	defer rows.Close()

	var summaries []*models.APTelemetrySummary
	for rows.Next() {
		var s models.APTelemetrySummary
		if err := rows.Scan(
			&s.APID, &s.APName, &s.NetworkID, &s.NetworkName, &s.LastSeen, &s.Status, &s.ClientCount,
			&s.RSSI, &s.ThroughputMbps, &s.LatencyMs, &s.QualityScore, &s.SignalBand,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fleet summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fleet summary: %w", err)
	}

	return summaries, nil
}

const networkHealthColumns = `network_id, network_name, customer, sla_target,
	       ap_count, online_aps, avg_quality_score, avg_latency_ms, avg_loss_pct, meets_sla`

func (r *telemetryRepository) NetworkHealth(ctx context.Context) ([]*models.NetworkHealth, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + networkHealthColumns + `
		FROM wifi.network_health
		ORDER BY network_name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query network health: %w", err)
	}
	defer rows.Close()

	var health []*models.NetworkHealth
	for rows.Next() {
		h, err := scanNetworkHealth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan network health: %w", err)
		}
		health = append(health, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating network health: %w", err)
	}

	return health, nil
}

func (r *telemetryRepository) NetworkHealthByID(ctx context.Context, networkID uuid.UUID) (*models.NetworkHealth, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT ` + networkHealthColumns + `
		FROM wifi.network_health
		WHERE network_id = $1`

	h, err := scanNetworkHealth(scope.Conn.QueryRow(ctx, query, networkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get network health: %w", err)
	}

	return h, nil
}

func (r *telemetryRepository) LatestQoSTimestamp(ctx context.Context) (*time.Time, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	var latest *time.Time
	if err := scope.Conn.QueryRow(ctx, `SELECT MAX(ts) FROM wifi.qos_facts`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to get latest qos timestamp: %w", err)
	}

	return latest, nil
}

func (r *telemetryRepository) CountStatus(ctx context.Context) (int64, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no role scope in context")
	}

	var count int64
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM wifi.ap_status_facts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count status facts: %w", err)
	}

	return count, nil
}

func (r *telemetryRepository) CountQoS(ctx context.Context) (int64, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no role scope in context")
	}

	var count int64
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM wifi.qos_facts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count qos facts: %w", err)
	}

	return count, nil
}

func scanNetworkHealth(row pgx.Row) (*models.NetworkHealth, error) {
	var h models.NetworkHealth
	err := row.Scan(
		&h.NetworkID, &h.NetworkName, &h.Customer, &h.SLATarget,
		&h.APCount, &h.OnlineAPs, &h.AvgQualityScore, &h.AvgLatencyMs, &h.AvgLossPct, &h.MeetsSLA,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
