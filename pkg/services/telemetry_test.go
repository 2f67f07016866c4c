package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// Mock implementations for testing

type mockNetworkRepo struct {
	networks []*models.Network
	err      error
	batches  int
}

func (m *mockNetworkRepo) CreateBatch(ctx context.Context, networks []*models.Network) error {
	if m.err != nil {
		return m.err
	}
	m.batches++
	m.networks = append(m.networks, networks...)
	return nil
}

func (m *mockNetworkRepo) GetByID(ctx context.Context, networkID uuid.UUID) (*models.Network, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, n := range m.networks {
		if n.ID == networkID {
			return n, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockNetworkRepo) List(ctx context.Context) ([]*models.Network, error) {
	return m.networks, m.err
}

func (m *mockNetworkRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.networks)), m.err
}

type mockAccessPointRepo struct {
	aps     []*models.AccessPoint
	err     error
	batches int
}

func (m *mockAccessPointRepo) CreateBatch(ctx context.Context, aps []*models.AccessPoint) error {
	if m.err != nil {
		return m.err
	}
	m.batches++
	m.aps = append(m.aps, aps...)
	return nil
}

func (m *mockAccessPointRepo) GetByID(ctx context.Context, apID uuid.UUID) (*models.AccessPoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, ap := range m.aps {
		if ap.ID == apID {
			return ap, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAccessPointRepo) GetByMAC(ctx context.Context, mac string) (*models.AccessPoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, ap := range m.aps {
		if ap.MACAddress == mac {
			return ap, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAccessPointRepo) ListByNetwork(ctx context.Context, networkID uuid.UUID) ([]*models.AccessPoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.AccessPoint
	for _, ap := range m.aps {
		if ap.NetworkID == networkID {
			out = append(out, ap)
		}
	}
	return out, nil
}

func (m *mockAccessPointRepo) List(ctx context.Context) ([]*models.AccessPoint, error) {
	return m.aps, m.err
}

func (m *mockAccessPointRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.aps)), m.err
}

// mockTelemetryRepo is safe for concurrent inserts; the seed pipeline loads
// fact batches from parallel workers.
type mockTelemetryRepo struct {
	mu           sync.Mutex
	statuses     []*models.StatusSnapshot
	measurements []*models.QoSMeasurement
	summaries    []*models.APTelemetrySummary
	health       []*models.NetworkHealth
	latestQoS    *time.Time
	err          error

	statusBatches int
	qosBatches    int
	lastFilter    *uuid.UUID
}

func (m *mockTelemetryRepo) InsertStatusBatch(ctx context.Context, snapshots []*models.StatusSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusBatches++
	m.statuses = append(m.statuses, snapshots...)
	return nil
}

func (m *mockTelemetryRepo) InsertQoSBatch(ctx context.Context, measurements []*models.QoSMeasurement) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qosBatches++
	m.measurements = append(m.measurements, measurements...)
	return nil
}

func (m *mockTelemetryRepo) InsertStatus(ctx context.Context, snapshot *models.StatusSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.statuses {
		if s.Timestamp.Equal(snapshot.Timestamp) && s.APID == snapshot.APID {
			return apperrors.ErrImmutableFact
		}
	}
	m.statuses = append(m.statuses, snapshot)
	return nil
}

func (m *mockTelemetryRepo) InsertQoS(ctx context.Context, measurement *models.QoSMeasurement) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.measurements {
		if q.Timestamp.Equal(measurement.Timestamp) && q.APID == measurement.APID {
			return apperrors.ErrImmutableFact
		}
	}
	m.measurements = append(m.measurements, measurement)
	return nil
}

func (m *mockTelemetryRepo) FleetSummary(ctx context.Context, networkID *uuid.UUID) ([]*models.APTelemetrySummary, error) {
	m.lastFilter = networkID
	return m.summaries, m.err
}

func (m *mockTelemetryRepo) NetworkHealth(ctx context.Context) ([]*models.NetworkHealth, error) {
	return m.health, m.err
}

func (m *mockTelemetryRepo) NetworkHealthByID(ctx context.Context, networkID uuid.UUID) (*models.NetworkHealth, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, h := range m.health {
		if h.NetworkID == networkID {
			return h, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockTelemetryRepo) LatestQoSTimestamp(ctx context.Context) (*time.Time, error) {
	return m.latestQoS, m.err
}

func (m *mockTelemetryRepo) CountStatus(ctx context.Context) (int64, error) {
	return int64(len(m.statuses)), m.err
}

func (m *mockTelemetryRepo) CountQoS(ctx context.Context) (int64, error) {
	return int64(len(m.measurements)), m.err
}

func setupTelemetryTest(t *testing.T) (TelemetryService, *mockNetworkRepo, *mockAccessPointRepo, *mockTelemetryRepo) {
	t.Helper()
	networks := &mockNetworkRepo{}
	aps := &mockAccessPointRepo{}
	telemetry := &mockTelemetryRepo{}
	svc := NewTelemetryService(networks, aps, telemetry, nil, zap.NewNop())
	return svc, networks, aps, telemetry
}

func TestTelemetryService_ListAccessPoints(t *testing.T) {
	svc, networks, aps, _ := setupTelemetryTest(t)

	networkID := uuid.New()
	networks.networks = []*models.Network{{ID: networkID, Name: "HQ"}}
	aps.aps = []*models.AccessPoint{
		{ID: uuid.New(), NetworkID: networkID, Name: "AP-01"},
		{ID: uuid.New(), NetworkID: uuid.New(), Name: "AP-other"},
	}

	got, err := svc.ListAccessPoints(context.Background(), networkID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AP-01", got[0].Name)
}

func TestTelemetryService_ListAccessPoints_UnknownNetwork(t *testing.T) {
	svc, _, _, _ := setupTelemetryTest(t)

	_, err := svc.ListAccessPoints(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTelemetryService_FleetSummary_ForwardsFilter(t *testing.T) {
	svc, _, _, telemetry := setupTelemetryTest(t)

	telemetry.summaries = []*models.APTelemetrySummary{{APName: "AP-01", Status: models.StatusOnline}}

	networkID := uuid.New()
	got, err := svc.FleetSummary(context.Background(), &networkID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, telemetry.lastFilter)
	assert.Equal(t, networkID, *telemetry.lastFilter)

	_, err = svc.FleetSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, telemetry.lastFilter)
}

func TestTelemetryService_NetworkHealthByID(t *testing.T) {
	svc, _, _, telemetry := setupTelemetryTest(t)

	networkID := uuid.New()
	telemetry.health = []*models.NetworkHealth{{NetworkID: networkID, MeetsSLA: true}}

	got, err := svc.NetworkHealthByID(context.Background(), networkID)
	require.NoError(t, err)
	assert.True(t, got.MeetsSLA)

	_, err = svc.NetworkHealthByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTelemetryService_SummaryCacheKeyScopedByRole(t *testing.T) {
	svc, _, _, _ := setupTelemetryTest(t)
	impl := svc.(*telemetryService)

	viewerCtx := auth.ContextWithRole(context.Background(), auth.RoleViewer)
	adminCtx := auth.ContextWithRole(context.Background(), auth.RoleAdmin)

	networkID := uuid.New()
	assert.NotEqual(t,
		impl.summaryCacheKey(viewerCtx, nil),
		impl.summaryCacheKey(adminCtx, nil),
		"cache entries must not be shared across roles")
	assert.NotEqual(t,
		impl.summaryCacheKey(viewerCtx, nil),
		impl.summaryCacheKey(viewerCtx, &networkID),
		"filtered and unfiltered summaries must cache separately")
}
