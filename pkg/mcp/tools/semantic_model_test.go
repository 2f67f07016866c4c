package tools

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

func testSemanticModel() *models.SemanticModel {
	return &models.SemanticModel{
		Name:        "wifi_analytics",
		Description: "WiFi fleet telemetry",
		Tables: []models.LogicalTable{
			{
				Schema:       "public",
				Table:        "networks",
				BusinessName: "Networks",
				Dimensions:   []models.Dimension{{Column: "name"}},
			},
			{
				Schema:       "public",
				Table:        "qos_facts",
				BusinessName: "QoS Measurements",
				Measures: []models.Measure{
					{Column: "latency_ms", Aggregation: models.AggAvg, Unit: "ms"},
				},
			},
		},
	}
}

func TestGetSemanticModel_DefaultTier(t *testing.T) {
	mcpServer := newToolServer()
	scopes := &fakeScopes{}
	RegisterSemanticModelTool(mcpServer, &ToolDeps{
		Scopes:        scopes,
		SemanticModel: &mockSemanticModelService{model: testSemanticModel(), version: 3},
		Logger:        zap.NewNop(),
	})

	text, isError := callTool(t, mcpServer, "get_semantic_model", nil)
	require.False(t, isError, "unexpected error result: %s", text)

	var result semanticModelResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "overview", result.Tier)
	assert.Equal(t, 3, result.Version)
	assert.Contains(t, result.Model, "wifi_analytics")
	assert.Contains(t, result.Model, "public.networks")

	// An anonymous MCP call runs at viewer; the scope must be released.
	require.Equal(t, []auth.Role{auth.RoleViewer}, scopes.roles)
	assert.Equal(t, 1, scopes.cleanups)
}

func TestGetSemanticModel_ColumnTierRequiresTables(t *testing.T) {
	mcpServer := newToolServer()
	RegisterSemanticModelTool(mcpServer, &ToolDeps{
		Scopes:        &fakeScopes{},
		SemanticModel: &mockSemanticModelService{model: testSemanticModel(), version: 1},
		Logger:        zap.NewNop(),
	})

	text, isError := callTool(t, mcpServer, "get_semantic_model", map[string]any{"tier": "column"})
	require.True(t, isError)
	assert.Equal(t, "missing_tables", decodeErrorResult(t, text).Code)
}

func TestGetSemanticModel_ColumnTierWithTables(t *testing.T) {
	mcpServer := newToolServer()
	RegisterSemanticModelTool(mcpServer, &ToolDeps{
		Scopes:        &fakeScopes{},
		SemanticModel: &mockSemanticModelService{model: testSemanticModel(), version: 1},
		Logger:        zap.NewNop(),
	})

	text, isError := callTool(t, mcpServer, "get_semantic_model", map[string]any{
		"tier":   "column",
		"tables": []string{"qos_facts"},
	})
	require.False(t, isError, "unexpected error result: %s", text)

	var result semanticModelResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "column", result.Tier)
	assert.Contains(t, result.Model, "latency_ms")
}

func TestGetSemanticModel_UnknownTier(t *testing.T) {
	mcpServer := newToolServer()
	RegisterSemanticModelTool(mcpServer, &ToolDeps{
		Scopes:        &fakeScopes{},
		SemanticModel: &mockSemanticModelService{model: testSemanticModel(), version: 1},
		Logger:        zap.NewNop(),
	})

	text, isError := callTool(t, mcpServer, "get_semantic_model", map[string]any{"tier": "everything"})
	require.True(t, isError)

	resp := decodeErrorResult(t, text)
	assert.Equal(t, "invalid_tier", resp.Code)
	assert.Contains(t, resp.Message, "everything")
}

func TestGetSemanticModel_NoActiveModel(t *testing.T) {
	mcpServer := newToolServer()
	RegisterSemanticModelTool(mcpServer, &ToolDeps{
		Scopes:        &fakeScopes{},
		SemanticModel: &mockSemanticModelService{err: apperrors.ErrModelNotActive},
		Logger:        zap.NewNop(),
	})

	text, isError := callTool(t, mcpServer, "get_semantic_model", nil)
	require.True(t, isError)
	assert.Equal(t, "model_not_active", decodeErrorResult(t, text).Code)
}

func TestGetSemanticModel_ScopeFailure(t *testing.T) {
	// A connection failure is a system fault, not something the agent can
	// correct, so it surfaces as a protocol error rather than an error
	// result.
	mcpServer := newToolServer()
	RegisterSemanticModelTool(mcpServer, &ToolDeps{
		Scopes:        &fakeScopes{err: errors.New("pool exhausted")},
		SemanticModel: &mockSemanticModelService{model: testSemanticModel(), version: 1},
		Logger:        zap.NewNop(),
	})

	response := rawToolCall(t, mcpServer, "get_semantic_model", nil)
	require.NotNil(t, response.Error)
	assert.Contains(t, response.Error.Message, "database connection")
}
