package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
)

type semanticModelResult struct {
	Tier    string `json:"tier"`
	Version int    `json:"version"`
	Model   string `json:"model"`
}

// RegisterSemanticModelTool adds the get_semantic_model tool. Agents call
// it before writing questions or SQL; the rendered model is the contract
// for which tables the governed query path will accept.
func RegisterSemanticModelTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_semantic_model",
		mcp.WithDescription(
			"Returns the active semantic model describing the WiFi analytics schema "+
				"in business terms. Tier 'overview' (default) lists tables, joins, and "+
				"sample questions; 'table' adds dimensions and measures per table; "+
				"'column' is full column documentation and requires a tables filter. "+
				"Only tables in this model can be queried.",
		),
		mcp.WithString(
			"tier",
			mcp.Description("Detail level: overview, table, or column (default: overview)"),
		),
		mcp.WithArray(
			"tables",
			mcp.Description("Table names to include at the table and column tiers (e.g. [\"qos_facts\"])"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scopedCtx, cleanup, err := openScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		tier := trimString(getOptionalString(req, "tier"))
		if tier == "" {
			tier = semantic.TierOverview
		}
		tables := getOptionalStringArray(req, "tables")

		model, version, err := deps.SemanticModel.GetActiveModel(scopedCtx)
		if err != nil {
			if errors.Is(err, apperrors.ErrModelNotActive) {
				return NewErrorResult("model_not_active",
					"No semantic model is active. An administrator must activate one before agents can explore the schema."), nil
			}
			return nil, fmt.Errorf("failed to load semantic model: %w", err)
		}

		rendered, err := semantic.Render(model, tier, tables)
		if err != nil {
			if strings.Contains(err.Error(), "unknown tier") {
				return NewErrorResult("invalid_tier", err.Error()), nil
			}
			// The only other render failure is the column tier without a
			// tables filter.
			return NewErrorResult("missing_tables", err.Error()), nil
		}

		jsonResult, _ := json.Marshal(semanticModelResult{
			Tier:    tier,
			Version: version,
			Model:   rendered,
		})
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
