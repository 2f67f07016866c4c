package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

type mockValidationRepo struct {
	runs []*models.ValidationRun
	err  error
}

func (m *mockValidationRepo) SaveRun(ctx context.Context, run *models.ValidationRun) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockValidationRepo) GetRun(ctx context.Context, runID uuid.UUID) (*models.ValidationRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, run := range m.runs {
		if run.ID == runID {
			return run, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockValidationRepo) ListRuns(ctx context.Context, limit int) ([]*models.ValidationRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.ValidationRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *mockValidationRepo) LatestRun(ctx context.Context) (*models.ValidationRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.runs) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return m.runs[len(m.runs)-1], nil
}

type validationFixture struct {
	svc       ValidationService
	networks  *mockNetworkRepo
	aps       *mockAccessPointRepo
	telemetry *mockTelemetryRepo
	runs      *mockValidationRepo
	adapter   *mockAdapter
	clock     *clockwork.FakeClock
	audited   *observer.ObservedLogs
}

// setupValidationTest seeds a healthy-looking fleet: populated dimensions,
// fresh facts, and an adapter whose violation counts all come back zero.
func setupValidationTest(t *testing.T) *validationFixture {
	t.Helper()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-30 * time.Minute)
	apID := uuid.New()

	f := &validationFixture{
		networks: &mockNetworkRepo{networks: []*models.Network{
			{ID: uuid.New(), Name: "hq-campus"},
			{ID: uuid.New(), Name: "warehouse-east"},
		}},
		aps: &mockAccessPointRepo{aps: []*models.AccessPoint{
			{ID: apID, Name: "hq-campus-ap-01"},
		}},
		telemetry: &mockTelemetryRepo{
			statuses:     []*models.StatusSnapshot{{APID: apID, Timestamp: fresh}},
			measurements: []*models.QoSMeasurement{{APID: apID, Timestamp: fresh}},
			latestQoS:    &fresh,
		},
		runs:    &mockValidationRepo{},
		adapter: &mockAdapter{result: &models.QueryResult{Rows: [][]any{{int64(0)}}}},
		clock:   clockwork.NewFakeClockAt(now),
	}

	core, recorded := observer.New(zapcore.DebugLevel)
	f.audited = recorded
	auditor := audit.NewSecurityAuditor(zap.New(core))

	cfg := config.ValidationConfig{FreshnessToleranceMinutes: 120, MinRowsPerTable: 1}
	f.svc = NewValidationService(f.networks, f.aps, f.telemetry, f.runs, f.adapter,
		auditor, f.clock, cfg, zap.NewNop())
	return f
}

func (f *validationFixture) result(t *testing.T, run *models.ValidationRun, check string) models.ValidationResult {
	t.Helper()
	for _, res := range run.Results {
		if res.Check == check {
			return res
		}
	}
	t.Fatalf("run has no result for check %q", check)
	return models.ValidationResult{}
}

func TestValidationService_Run_HealthyDataset(t *testing.T) {
	f := setupValidationTest(t)

	run, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ValidationStatusPassed, run.Status)
	assert.Equal(t, run.TotalChecks, run.Passed)
	assert.Zero(t, run.Failed)
	assert.Len(t, run.Results, run.TotalChecks)
	assert.Equal(t, "system", run.TriggeredBy)
	assert.Equal(t, time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), run.StartedAt)

	require.Len(t, f.runs.runs, 1, "run persisted")
	assert.Zero(t, f.audited.FilterMessage("Data validation run failed").Len())

	fresh := f.result(t, run, "qos_freshness")
	assert.True(t, fresh.Passed)
	assert.Contains(t, fresh.Observed, "30m0s")
}

func TestValidationService_Run_RecordsCaller(t *testing.T) {
	f := setupValidationTest(t)

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops@netsight.ai"}}
	ctx := context.WithValue(context.Background(), auth.ClaimsKey, claims)

	run, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ops@netsight.ai", run.TriggeredBy)
}

func TestValidationService_Run_IntegrityViolationsFail(t *testing.T) {
	f := setupValidationTest(t)
	f.adapter.result = &models.QueryResult{Rows: [][]any{{int64(3)}}}

	run, err := f.svc.Run(context.Background())
	require.NoError(t, err, "a failing check is a result, not an error")

	assert.Equal(t, models.ValidationStatusFailed, run.Status)
	assert.Equal(t, 10, run.Failed, "every adapter-backed check sees the violations")
	assert.Equal(t, run.TotalChecks-10, run.Passed)

	orphans := f.result(t, run, "orphaned_qos_facts")
	assert.False(t, orphans.Passed)
	assert.Equal(t, "3", orphans.Observed)
	assert.Equal(t, "0", orphans.Expected)
	assert.Contains(t, orphans.Detail, "missing access point")

	require.Len(t, f.runs.runs, 1, "failed runs are persisted too")
	require.Equal(t, 1, f.audited.FilterMessage("Data validation run failed").Len())
}

func TestValidationService_Run_StaleFactsFail(t *testing.T) {
	f := setupValidationTest(t)
	stale := f.clock.Now().Add(-3 * time.Hour)
	f.telemetry.latestQoS = &stale

	run, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ValidationStatusFailed, run.Status)
	assert.Equal(t, 1, run.Failed)

	fresh := f.result(t, run, "qos_freshness")
	assert.False(t, fresh.Passed)
	assert.Contains(t, fresh.Observed, "3h0m0s")
	assert.Contains(t, fresh.Expected, "2h0m0s")
}

func TestValidationService_Run_EmptyFactTablesFail(t *testing.T) {
	f := setupValidationTest(t)
	f.telemetry.statuses = nil
	f.telemetry.measurements = nil
	f.telemetry.latestQoS = nil

	run, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ValidationStatusFailed, run.Status)
	assert.Equal(t, 3, run.Failed, "both fact row counts and freshness")

	assert.False(t, f.result(t, run, "status_facts_row_count").Passed)
	assert.False(t, f.result(t, run, "qos_facts_row_count").Passed)

	fresh := f.result(t, run, "qos_freshness")
	assert.False(t, fresh.Passed)
	assert.Equal(t, "no qos facts", fresh.Observed)
}

func TestValidationService_Run_CheckQueryErrorFailsCheck(t *testing.T) {
	f := setupValidationTest(t)
	f.adapter.queryErr = errors.New("relation does not exist")

	run, err := f.svc.Run(context.Background())
	require.NoError(t, err, "a broken check fails the run, not the call")

	assert.Equal(t, models.ValidationStatusFailed, run.Status)

	orphans := f.result(t, run, "orphaned_access_points")
	assert.False(t, orphans.Passed)
	assert.Equal(t, "check failed to execute", orphans.Observed)
	assert.Contains(t, orphans.Detail, "relation does not exist")
}

func TestValidationService_Run_PersistFailure(t *testing.T) {
	f := setupValidationTest(t)
	f.runs.err = errors.New("connection reset")

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist validation run")
}

func TestValidationService_LatestRun(t *testing.T) {
	f := setupValidationTest(t)

	first, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	latest, err := f.svc.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.NotEqual(t, first.ID, latest.ID)

	runs, err := f.svc.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
