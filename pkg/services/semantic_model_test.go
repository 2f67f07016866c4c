package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
)

// Mock implementations for testing

type mockSemanticModelRepo struct {
	versions []*models.SemanticModelVersion
	err      error
}

func (m *mockSemanticModelRepo) Create(ctx context.Context, document, checksum, createdBy string) (*models.SemanticModelVersion, error) {
	if m.err != nil {
		return nil, m.err
	}
	v := &models.SemanticModelVersion{
		ID:        uuid.New(),
		Version:   len(m.versions) + 1,
		Document:  document,
		Checksum:  checksum,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	m.versions = append(m.versions, v)
	return v, nil
}

func (m *mockSemanticModelRepo) GetActive(ctx context.Context) (*models.SemanticModelVersion, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, v := range m.versions {
		if v.IsActive {
			return v, nil
		}
	}
	return nil, apperrors.ErrModelNotActive
}

func (m *mockSemanticModelRepo) GetByVersion(ctx context.Context, version int) (*models.SemanticModelVersion, error) {
	for _, v := range m.versions {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSemanticModelRepo) List(ctx context.Context) ([]*models.SemanticModelVersion, error) {
	return m.versions, m.err
}

func (m *mockSemanticModelRepo) GetByChecksum(ctx context.Context, checksum string) (*models.SemanticModelVersion, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, v := range m.versions {
		if v.Checksum == checksum {
			return v, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSemanticModelRepo) Activate(ctx context.Context, version int) (*models.SemanticModelVersion, error) {
	var target *models.SemanticModelVersion
	for _, v := range m.versions {
		if v.Version == version {
			target = v
		}
	}
	if target == nil {
		return nil, apperrors.ErrNotFound
	}
	now := time.Now()
	for _, v := range m.versions {
		v.IsActive = v.Version == version
	}
	target.ActivatedAt = &now
	return target, nil
}

type mockVerifiedQueryRepo struct {
	byName          map[string]*models.VerifiedQuery
	err             error
	disabledForVers []int
	incremented     []uuid.UUID
}

func newMockVerifiedQueryRepo() *mockVerifiedQueryRepo {
	return &mockVerifiedQueryRepo{byName: make(map[string]*models.VerifiedQuery)}
}

func (m *mockVerifiedQueryRepo) Upsert(ctx context.Context, query *models.VerifiedQuery) error {
	if m.err != nil {
		return m.err
	}
	if existing, ok := m.byName[query.Name]; ok {
		query.ID = existing.ID
		query.UsageCount = existing.UsageCount
	} else if query.ID == uuid.Nil {
		query.ID = uuid.New()
	}
	m.byName[query.Name] = query
	return nil
}

func (m *mockVerifiedQueryRepo) GetByID(ctx context.Context, queryID uuid.UUID) (*models.VerifiedQuery, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, q := range m.byName {
		if q.ID == queryID {
			return q, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockVerifiedQueryRepo) GetByName(ctx context.Context, name string) (*models.VerifiedQuery, error) {
	if q, ok := m.byName[name]; ok {
		return q, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockVerifiedQueryRepo) List(ctx context.Context) ([]*models.VerifiedQuery, error) {
	var out []*models.VerifiedQuery
	for _, q := range m.byName {
		out = append(out, q)
	}
	return out, m.err
}

func (m *mockVerifiedQueryRepo) ListEnabled(ctx context.Context) ([]*models.VerifiedQuery, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.VerifiedQuery
	for _, q := range m.byName {
		if q.IsEnabled {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockVerifiedQueryRepo) SetEnabled(ctx context.Context, queryID uuid.UUID, isEnabled bool) error {
	for _, q := range m.byName {
		if q.ID == queryID {
			q.IsEnabled = isEnabled
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockVerifiedQueryRepo) DisableOtherVersions(ctx context.Context, modelVersion int) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.disabledForVers = append(m.disabledForVers, modelVersion)
	var n int64
	for _, q := range m.byName {
		if q.IsEnabled && q.ModelVersion != modelVersion {
			q.IsEnabled = false
			n++
		}
	}
	return n, nil
}

func (m *mockVerifiedQueryRepo) IncrementUsage(ctx context.Context, queryID uuid.UUID) error {
	m.incremented = append(m.incremented, queryID)
	for _, q := range m.byName {
		if q.ID == queryID {
			q.UsageCount++
		}
	}
	return nil
}

const testModelDoc = `name: wifi_analytics
description: WiFi fleet analytics for the demo warehouse
tables:
  - schema: wifi
    table: networks
    dimensions:
      - column: customer
    measures:
      - column: sla_target
        aggregation: avg
  - schema: wifi
    table: qos_facts
    time_dimensions:
      - column: ts
    measures:
      - column: quality_score
        aggregation: avg
verified_queries:
  - name: avg_quality_by_customer
    question: What is the average quality score per customer?
    sql: SELECT n.customer, AVG(q.quality_score) FROM wifi.qos_facts q JOIN wifi.networks n ON n.id = q.network_id GROUP BY n.customer
`

func setupSemanticModelTest(t *testing.T) (SemanticModelService, *mockSemanticModelRepo, *mockVerifiedQueryRepo, *mockAdapter) {
	t.Helper()
	repo := &mockSemanticModelRepo{}
	queries := newMockVerifiedQueryRepo()
	adapter := &mockAdapter{}
	svc := NewSemanticModelService(repo, queries, adapter, zap.NewNop())
	return svc, repo, queries, adapter
}

func TestSemanticModelService_Put_Activates(t *testing.T) {
	svc, repo, queries, _ := setupSemanticModelTest(t)

	version, issues, err := svc.Put(context.Background(), []byte(testModelDoc), true)
	require.NoError(t, err)
	assert.False(t, semantic.HasErrors(issues))
	assert.Equal(t, 1, version.Version)
	assert.True(t, version.IsActive)
	require.Len(t, repo.versions, 1)

	// Verified queries from the document are synced on activation.
	q, ok := queries.byName["avg_quality_by_customer"]
	require.True(t, ok, "verified query should be upserted")
	assert.True(t, q.IsEnabled)
	assert.Equal(t, 1, q.ModelVersion)
	assert.Equal(t, []int{1}, queries.disabledForVers)
}

func TestSemanticModelService_Put_IdempotentByChecksum(t *testing.T) {
	svc, repo, _, _ := setupSemanticModelTest(t)

	first, _, err := svc.Put(context.Background(), []byte(testModelDoc), true)
	require.NoError(t, err)

	second, _, err := svc.Put(context.Background(), []byte(testModelDoc), true)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	assert.Len(t, repo.versions, 1, "identical document must not create a new version")
}

func TestSemanticModelService_Put_NoActivate(t *testing.T) {
	svc, _, queries, _ := setupSemanticModelTest(t)

	version, _, err := svc.Put(context.Background(), []byte(testModelDoc), false)
	require.NoError(t, err)
	assert.False(t, version.IsActive)
	assert.Empty(t, queries.byName, "verified queries sync only on activation")

	_, err = svc.GetActive(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrModelNotActive)
}

func TestSemanticModelService_Put_RejectsInvalidModel(t *testing.T) {
	svc, repo, _, _ := setupSemanticModelTest(t)

	// Parses but fails structural validation: no tables.
	_, issues, err := svc.Put(context.Background(), []byte("name: empty\ndescription: d\n"), true)
	require.Error(t, err)
	assert.True(t, semantic.HasErrors(issues))
	assert.Empty(t, repo.versions)
}

func TestSemanticModelService_Put_RejectsBadYAML(t *testing.T) {
	svc, _, _, _ := setupSemanticModelTest(t)

	_, _, err := svc.Put(context.Background(), []byte("tables: [unclosed"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not parse")
}

func TestSemanticModelService_Validate_Live(t *testing.T) {
	svc, _, _, adapter := setupSemanticModelTest(t)

	adapter.schema = semantic.PhysicalSchema{
		"wifi.networks":  {"id", "customer", "sla_target"},
		"wifi.qos_facts": {"ts", "network_id", "quality_score"},
	}

	issues, err := svc.Validate(context.Background(), []byte(testModelDoc))
	require.NoError(t, err)
	assert.False(t, semantic.HasErrors(issues))
}

func TestSemanticModelService_Validate_MissingPhysicalTable(t *testing.T) {
	svc, _, _, adapter := setupSemanticModelTest(t)

	adapter.schema = semantic.PhysicalSchema{
		"wifi.networks": {"id", "customer", "sla_target"},
	}

	issues, err := svc.Validate(context.Background(), []byte(testModelDoc))
	require.NoError(t, err)
	assert.True(t, semantic.HasErrors(issues), "missing physical table should be an error issue")
}

func TestSemanticModelService_GetActiveModel(t *testing.T) {
	svc, _, _, _ := setupSemanticModelTest(t)

	_, _, err := svc.Put(context.Background(), []byte(testModelDoc), true)
	require.NoError(t, err)

	model, version, err := svc.GetActiveModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "wifi_analytics", model.Name)
	assert.Len(t, model.Tables, 2)
}

func TestSemanticModelService_Render(t *testing.T) {
	svc, _, _, _ := setupSemanticModelTest(t)

	_, _, err := svc.Put(context.Background(), []byte(testModelDoc), true)
	require.NoError(t, err)

	out, err := svc.Render(context.Background(), "overview", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "wifi_analytics")
	assert.Contains(t, out, "wifi.networks")
}

func TestSemanticModelService_Bootstrap(t *testing.T) {
	svc, repo, _, _ := setupSemanticModelTest(t)

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testModelDoc), 0o600))

	require.NoError(t, svc.Bootstrap(context.Background(), path))
	require.Len(t, repo.versions, 1)
	assert.True(t, repo.versions[0].IsActive)

	// Restart with the same file: store untouched.
	require.NoError(t, svc.Bootstrap(context.Background(), path))
	assert.Len(t, repo.versions, 1)

	// Changed file: a new version is stored and activated.
	changed := testModelDoc + "sample_questions:\n  - Which customer has the worst WiFi?\n"
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o600))
	require.NoError(t, svc.Bootstrap(context.Background(), path))
	require.Len(t, repo.versions, 2)
	assert.False(t, repo.versions[0].IsActive)
	assert.True(t, repo.versions[1].IsActive)
}

func TestSemanticModelService_Bootstrap_MissingFile(t *testing.T) {
	svc, _, _, _ := setupSemanticModelTest(t)

	err := svc.Bootstrap(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
