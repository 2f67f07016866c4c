//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/testhelpers"
)

// telemetryTestContext holds test dependencies for telemetry repository tests.
type telemetryTestContext struct {
	t         *testing.T
	engineDB  *testhelpers.EngineDB
	repo      TelemetryRepository
	networkID uuid.UUID
	apID1     uuid.UUID
	apID2     uuid.UUID
}

// setupTelemetryTest initializes the test context with shared testcontainer.
func setupTelemetryTest(t *testing.T) *telemetryTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	tc := &telemetryTestContext{
		t:         t,
		engineDB:  engineDB,
		repo:      NewTelemetryRepository(),
		networkID: uuid.MustParse("00000000-0000-0000-0000-0000000000a1"),
		apID1:     uuid.MustParse("00000000-0000-0000-0000-0000000000b1"),
		apID2:     uuid.MustParse("00000000-0000-0000-0000-0000000000b2"),
	}
	tc.ensureTestFleet()
	return tc
}

// ensureTestFleet creates the dimension rows the fact tables reference.
func (tc *telemetryTestContext) ensureTestFleet() {
	tc.t.Helper()
	ctx := context.Background()
	scope, err := tc.engineDB.DB.WithRole(ctx, auth.RoleAdmin)
	if err != nil {
		tc.t.Fatalf("failed to create scope for fleet setup: %v", err)
	}
	defer scope.Close()

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO wifi.networks (id, name, customer, industry, city, country, sla_target, created_at)
		VALUES ($1, 'Telemetry Test HQ', 'Telemetry Test Corp', 'corporate', 'Austin', 'US', 80, NOW())
		ON CONFLICT (id) DO NOTHING
	`, tc.networkID)
	if err != nil {
		tc.t.Fatalf("failed to ensure test network: %v", err)
	}

	aps := []struct {
		id   uuid.UUID
		name string
		mac  string
	}{
		{tc.apID1, "AP-TEST-01", "02:00:5E:10:00:01"},
		{tc.apID2, "AP-TEST-02", "02:00:5E:10:00:02"},
	}
	for _, ap := range aps {
		_, err = scope.Conn.Exec(ctx, `
			INSERT INTO wifi.access_points (id, network_id, name, mac_address, model, manufacturer,
				wifi_standard, max_clients, firmware, site, building, floor, zone, created_at)
			VALUES ($1, $2, $3, $4, 'C9130AXI', 'Cisco', '802.11ax', 200, '17.9.4', 'HQ', 'Main', 2, 'East Wing', NOW())
			ON CONFLICT (id) DO NOTHING
		`, ap.id, tc.networkID, ap.name, ap.mac)
		if err != nil {
			tc.t.Fatalf("failed to ensure test access point: %v", err)
		}
	}
}

// cleanup removes fact rows belonging to the test fleet.
func (tc *telemetryTestContext) cleanup() {
	tc.t.Helper()
	ctx := context.Background()
	scope, err := tc.engineDB.DB.WithRole(ctx, auth.RoleAdmin)
	if err != nil {
		tc.t.Fatalf("failed to create scope for cleanup: %v", err)
	}
	defer scope.Close()

	_, _ = scope.Conn.Exec(ctx, "DELETE FROM wifi.qos_facts WHERE ap_id IN ($1, $2)", tc.apID1, tc.apID2)
	_, _ = scope.Conn.Exec(ctx, "DELETE FROM wifi.ap_status_facts WHERE ap_id IN ($1, $2)", tc.apID1, tc.apID2)
}

// createTestContext returns a context carrying an admin role scope.
func (tc *telemetryTestContext) createTestContext() (context.Context, func()) {
	tc.t.Helper()
	ctx := context.Background()
	scope, err := tc.engineDB.DB.WithRole(ctx, auth.RoleAdmin)
	if err != nil {
		tc.t.Fatalf("failed to create role scope: %v", err)
	}
	ctx = database.SetRoleScope(ctx, scope)
	return ctx, func() { scope.Close() }
}

func (tc *telemetryTestContext) statusAt(ts time.Time, apID uuid.UUID, status string, clients int) *models.StatusSnapshot {
	return &models.StatusSnapshot{
		Timestamp:   ts,
		APID:        apID,
		NetworkID:   tc.networkID,
		Status:      status,
		ClientCount: clients,
		CPUPercent:  35.5,
		MemPercent:  48.2,
	}
}

func (tc *telemetryTestContext) qosAt(ts time.Time, apID uuid.UUID, quality float64) *models.QoSMeasurement {
	return &models.QoSMeasurement{
		Timestamp:       ts,
		APID:            apID,
		NetworkID:       tc.networkID,
		RSSI:            -58.4,
		ThroughputMbps:  412.7,
		LatencyMs:       9.3,
		PacketLossPct:   0.4,
		InterferencePct: 12.1,
		QualityScore:    quality,
		SignalBand:      models.BandGood,
	}
}

// ============================================================================
// Insert Tests
// ============================================================================

func TestTelemetryRepository_InsertStatus_Success(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	ts := time.Now().UTC().Truncate(time.Microsecond)
	err := tc.repo.InsertStatus(ctx, tc.statusAt(ts, tc.apID1, models.StatusOnline, 42))
	if err != nil {
		t.Fatalf("InsertStatus failed: %v", err)
	}

	count, err := tc.repo.CountStatus(ctx)
	if err != nil {
		t.Fatalf("CountStatus failed: %v", err)
	}
	if count < 1 {
		t.Errorf("expected at least 1 status fact, got %d", count)
	}
}

func TestTelemetryRepository_InsertStatus_Immutable(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	ts := time.Now().UTC().Truncate(time.Microsecond)
	err := tc.repo.InsertStatus(ctx, tc.statusAt(ts, tc.apID1, models.StatusOnline, 42))
	if err != nil {
		t.Fatalf("first InsertStatus failed: %v", err)
	}

	// Same timestamp and access point must be rejected, not overwritten
	err = tc.repo.InsertStatus(ctx, tc.statusAt(ts, tc.apID1, models.StatusOffline, 0))
	if !errors.Is(err, apperrors.ErrImmutableFact) {
		t.Fatalf("expected ErrImmutableFact, got %v", err)
	}

	// Original row survives untouched
	scope, _ := database.GetRoleScope(ctx)
	var status string
	var clients int
	err = scope.Conn.QueryRow(ctx,
		"SELECT status, client_count FROM wifi.ap_status_facts WHERE ts = $1 AND ap_id = $2",
		ts, tc.apID1).Scan(&status, &clients)
	if err != nil {
		t.Fatalf("failed to read back status fact: %v", err)
	}
	if status != models.StatusOnline {
		t.Errorf("expected original status 'online', got %q", status)
	}
	if clients != 42 {
		t.Errorf("expected original client_count 42, got %d", clients)
	}
}

func TestTelemetryRepository_InsertQoS_Immutable(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	ts := time.Now().UTC().Truncate(time.Microsecond)
	err := tc.repo.InsertQoS(ctx, tc.qosAt(ts, tc.apID1, 87.5))
	if err != nil {
		t.Fatalf("first InsertQoS failed: %v", err)
	}

	err = tc.repo.InsertQoS(ctx, tc.qosAt(ts, tc.apID1, 12.0))
	if !errors.Is(err, apperrors.ErrImmutableFact) {
		t.Fatalf("expected ErrImmutableFact, got %v", err)
	}

	scope, _ := database.GetRoleScope(ctx)
	var quality float64
	err = scope.Conn.QueryRow(ctx,
		"SELECT quality_score FROM wifi.qos_facts WHERE ts = $1 AND ap_id = $2",
		ts, tc.apID1).Scan(&quality)
	if err != nil {
		t.Fatalf("failed to read back qos fact: %v", err)
	}
	if quality != 87.5 {
		t.Errorf("expected original quality_score 87.5, got %v", quality)
	}
}

func TestTelemetryRepository_InsertBatches(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)
	var statuses []*models.StatusSnapshot
	var measurements []*models.QoSMeasurement
	for i := 0; i < 12; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		statuses = append(statuses, tc.statusAt(ts, tc.apID1, models.StatusOnline, 30+i))
		measurements = append(measurements, tc.qosAt(ts, tc.apID1, 85))
	}

	if err := tc.repo.InsertStatusBatch(ctx, statuses); err != nil {
		t.Fatalf("InsertStatusBatch failed: %v", err)
	}
	if err := tc.repo.InsertQoSBatch(ctx, measurements); err != nil {
		t.Fatalf("InsertQoSBatch failed: %v", err)
	}

	scope, _ := database.GetRoleScope(ctx)
	var statusCount, qosCount int
	_ = scope.Conn.QueryRow(ctx, "SELECT COUNT(*) FROM wifi.ap_status_facts WHERE ap_id = $1", tc.apID1).Scan(&statusCount)
	_ = scope.Conn.QueryRow(ctx, "SELECT COUNT(*) FROM wifi.qos_facts WHERE ap_id = $1", tc.apID1).Scan(&qosCount)
	if statusCount != 12 {
		t.Errorf("expected 12 status facts, got %d", statusCount)
	}
	if qosCount != 12 {
		t.Errorf("expected 12 qos facts, got %d", qosCount)
	}

	latest, err := tc.repo.LatestQoSTimestamp(ctx)
	if err != nil {
		t.Fatalf("LatestQoSTimestamp failed: %v", err)
	}
	if latest == nil {
		t.Fatal("expected latest qos timestamp, got nil")
	}
	if latest.Before(base) {
		t.Errorf("expected latest timestamp at or after %v, got %v", base, latest)
	}
}

// ============================================================================
// Fleet Summary Tests
// ============================================================================

func TestTelemetryRepository_FleetSummary_LatestPerAP(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	older := time.Now().UTC().Truncate(time.Microsecond).Add(-10 * time.Minute)
	newer := older.Add(5 * time.Minute)

	// AP1: older online snapshot with QoS, newer offline snapshot without
	if err := tc.repo.InsertStatus(ctx, tc.statusAt(older, tc.apID1, models.StatusOnline, 55)); err != nil {
		t.Fatalf("InsertStatus failed: %v", err)
	}
	if err := tc.repo.InsertQoS(ctx, tc.qosAt(older, tc.apID1, 91.2)); err != nil {
		t.Fatalf("InsertQoS failed: %v", err)
	}
	if err := tc.repo.InsertStatus(ctx, tc.statusAt(newer, tc.apID1, models.StatusOffline, 0)); err != nil {
		t.Fatalf("InsertStatus failed: %v", err)
	}

	// AP2: single online snapshot with QoS
	if err := tc.repo.InsertStatus(ctx, tc.statusAt(newer, tc.apID2, models.StatusOnline, 23)); err != nil {
		t.Fatalf("InsertStatus failed: %v", err)
	}
	if err := tc.repo.InsertQoS(ctx, tc.qosAt(newer, tc.apID2, 78.9)); err != nil {
		t.Fatalf("InsertQoS failed: %v", err)
	}

	summaries, err := tc.repo.FleetSummary(ctx, &tc.networkID)
	if err != nil {
		t.Fatalf("FleetSummary failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	byAP := make(map[uuid.UUID]*models.APTelemetrySummary)
	for _, s := range summaries {
		byAP[s.APID] = s
	}

	ap1 := byAP[tc.apID1]
	if ap1 == nil {
		t.Fatal("expected summary for AP1")
	}
	if ap1.Status != models.StatusOffline {
		t.Errorf("expected AP1 latest status 'offline', got %q", ap1.Status)
	}
	if !ap1.LastSeen.Equal(newer) {
		t.Errorf("expected AP1 last_seen %v, got %v", newer, ap1.LastSeen)
	}
	// Offline snapshot has no QoS row; radio metrics come back zeroed
	if ap1.QualityScore != 0 || ap1.SignalBand != "" {
		t.Errorf("expected zeroed radio metrics for offline AP1, got quality=%v band=%q",
			ap1.QualityScore, ap1.SignalBand)
	}

	ap2 := byAP[tc.apID2]
	if ap2 == nil {
		t.Fatal("expected summary for AP2")
	}
	if ap2.Status != models.StatusOnline {
		t.Errorf("expected AP2 status 'online', got %q", ap2.Status)
	}
	if ap2.QualityScore != 78.9 {
		t.Errorf("expected AP2 quality_score 78.9, got %v", ap2.QualityScore)
	}
	if ap2.SignalBand != models.BandGood {
		t.Errorf("expected AP2 signal_band 'good', got %q", ap2.SignalBand)
	}
	if ap2.NetworkName != "Telemetry Test HQ" {
		t.Errorf("expected network name from dimension join, got %q", ap2.NetworkName)
	}
}

func TestTelemetryRepository_FleetSummary_NetworkFilter(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	ts := time.Now().UTC().Truncate(time.Microsecond)
	if err := tc.repo.InsertStatus(ctx, tc.statusAt(ts, tc.apID1, models.StatusOnline, 10)); err != nil {
		t.Fatalf("InsertStatus failed: %v", err)
	}

	other := uuid.New()
	summaries, err := tc.repo.FleetSummary(ctx, &other)
	if err != nil {
		t.Fatalf("FleetSummary failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected no summaries for unknown network, got %d", len(summaries))
	}
}

// ============================================================================
// Network Health Tests
// ============================================================================

func TestTelemetryRepository_NetworkHealthByID(t *testing.T) {
	tc := setupTelemetryTest(t)
	tc.cleanup()

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	ts := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Minute)
	for _, apID := range []uuid.UUID{tc.apID1, tc.apID2} {
		if err := tc.repo.InsertStatus(ctx, tc.statusAt(ts, apID, models.StatusOnline, 20)); err != nil {
			t.Fatalf("InsertStatus failed: %v", err)
		}
		if err := tc.repo.InsertQoS(ctx, tc.qosAt(ts, apID, 90)); err != nil {
			t.Fatalf("InsertQoS failed: %v", err)
		}
	}

	health, err := tc.repo.NetworkHealthByID(ctx, tc.networkID)
	if err != nil {
		t.Fatalf("NetworkHealthByID failed: %v", err)
	}
	if health.NetworkName != "Telemetry Test HQ" {
		t.Errorf("expected network name 'Telemetry Test HQ', got %q", health.NetworkName)
	}
	if health.APCount != 2 {
		t.Errorf("expected ap_count 2, got %d", health.APCount)
	}
	if health.OnlineAPs != 2 {
		t.Errorf("expected online_aps 2, got %d", health.OnlineAPs)
	}
	if health.AvgQualityScore < 89 || health.AvgQualityScore > 91 {
		t.Errorf("expected avg_quality_score near 90, got %v", health.AvgQualityScore)
	}
	// quality 90 against sla_target 80
	if !health.MeetsSLA {
		t.Error("expected network to meet its SLA")
	}
}

func TestTelemetryRepository_NetworkHealthByID_NotFound(t *testing.T) {
	tc := setupTelemetryTest(t)

	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	_, err := tc.repo.NetworkHealthByID(ctx, uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================================
// No Role Scope Tests
// ============================================================================

func TestTelemetryRepository_NoRoleScope(t *testing.T) {
	tc := setupTelemetryTest(t)

	ctx := context.Background() // No role scope

	ts := time.Now().UTC()
	if err := tc.repo.InsertStatus(ctx, tc.statusAt(ts, tc.apID1, models.StatusOnline, 1)); err == nil {
		t.Error("expected error for InsertStatus without role scope")
	}
	if err := tc.repo.InsertQoS(ctx, tc.qosAt(ts, tc.apID1, 50)); err == nil {
		t.Error("expected error for InsertQoS without role scope")
	}
	if _, err := tc.repo.FleetSummary(ctx, nil); err == nil {
		t.Error("expected error for FleetSummary without role scope")
	}
	if _, err := tc.repo.NetworkHealth(ctx); err == nil {
		t.Error("expected error for NetworkHealth without role scope")
	}
	if _, err := tc.repo.LatestQoSTimestamp(ctx); err == nil {
		t.Error("expected error for LatestQoSTimestamp without role scope")
	}
}
