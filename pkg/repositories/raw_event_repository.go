package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// RawEventRepository provides data access for the raw telemetry landing
// table. Envelopes are append-only; transformation happens in the flatten
// views, never by rewriting landed rows.
type RawEventRepository interface {
	Insert(ctx context.Context, event *models.RawAPEvent) error
	InsertBatch(ctx context.Context, events []*models.RawAPEvent) error
	ListByAP(ctx context.Context, apID uuid.UUID, limit int) ([]*models.RawAPEvent, error)
	Count(ctx context.Context) (int64, error)
}

type rawEventRepository struct{}

// NewRawEventRepository creates a new RawEventRepository.
func NewRawEventRepository() RawEventRepository {
	return &rawEventRepository{}
}

var _ RawEventRepository = (*rawEventRepository)(nil)

func (r *rawEventRepository) Insert(ctx context.Context, event *models.RawAPEvent) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO wifi.raw_ap_events (id, ap_id, event_time, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := scope.Conn.Exec(ctx, query,
		event.ID, event.APID, event.EventTime, event.Payload, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert raw event: %w", err)
	}

	return nil
}

func (r *rawEventRepository) InsertBatch(ctx context.Context, events []*models.RawAPEvent) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	now := time.Now()
	rows := make([][]any, len(events))
	for i, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.ReceivedAt.IsZero() {
			e.ReceivedAt = now
		}
		rows[i] = []any{e.ID, e.APID, e.EventTime, []byte(e.Payload), e.ReceivedAt}
	}

	_, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"wifi", "raw_ap_events"},
		[]string{"id", "ap_id", "event_time", "payload", "received_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy raw events: %w", err)
	}

	return nil
}

func (r *rawEventRepository) ListByAP(ctx context.Context, apID uuid.UUID, limit int) ([]*models.RawAPEvent, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, ap_id, event_time, payload, received_at
		FROM wifi.raw_ap_events
		WHERE ap_id = $1
		ORDER BY event_time DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, apID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw events: %w", err)
	}
	defer rows.Close()

	var events []*models.RawAPEvent
	for rows.Next() {
		var e models.RawAPEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.APID, &e.EventTime, &payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw event: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw events: %w", err)
	}

	return events, nil
}

func (r *rawEventRepository) Count(ctx context.Context) (int64, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no role scope in context")
	}

	var count int64
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM wifi.raw_ap_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count raw events: %w", err)
	}

	return count, nil
}
