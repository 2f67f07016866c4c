package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

type dataQualityResult struct {
	Healthy bool                  `json:"healthy"`
	Run     *models.ValidationRun `json:"run"`
}

// RegisterDataQualityTool adds the get_data_quality tool. It reports the
// most recent validation run with its per-check results, so an agent can
// caveat answers when the underlying data failed recent checks.
func RegisterDataQualityTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_data_quality",
		mcp.WithDescription(
			"Returns the latest data validation run: row counts, referential "+
				"integrity, freshness, and metric bounds checks with pass/fail per "+
				"check. Check this before trusting answers when data quality matters.",
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

		latest, err := deps.Validation.LatestRun(scopedCtx)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return NewErrorResult("no_validation_runs",
					"No validation run has completed yet. An operator can trigger one with the validate command."), nil
			}
			return nil, fmt.Errorf("failed to get latest validation run: %w", err)
		}

		// LatestRun returns the summary row only; reload to attach the
		// per-check results.
		run, err := deps.Validation.GetRun(scopedCtx, latest.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load validation results: %w", err)
		}

		jsonResult, _ := json.Marshal(dataQualityResult{
			Healthy: run.Status == models.ValidationStatusPassed,
			Run:     run,
		})
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
