package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

type networkHealthResult struct {
	Networks []*models.NetworkHealth `json:"networks"`
	Count    int                     `json:"count"`
}

// RegisterNetworkHealthTool adds the get_network_health tool, a canned
// rollup for the most common fleet question. It spares agents a SQL round
// trip and shows the shape a good per-network aggregate takes.
func RegisterNetworkHealthTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_network_health",
		mcp.WithDescription(
			"Returns per-network health over the trailing day: AP counts, online "+
				"counts, average quality score, latency, loss, and whether each "+
				"network meets its SLA target. Pass network_id to fetch one network. "+
				"Row-level security limits the list to networks the caller can see.",
		),
		mcp.WithString(
			"network_id",
			mcp.Description("Network UUID to fetch a single network's rollup"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scopedCtx, cleanup, err := openScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		if raw := trimString(getOptionalString(req, "network_id")); raw != "" {
			networkID, err := uuid.Parse(raw)
			if err != nil {
				return NewErrorResult("invalid_network_id",
					fmt.Sprintf("network_id %q is not a valid UUID", raw)), nil
			}

			health, err := deps.Telemetry.NetworkHealthByID(scopedCtx, networkID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return NewErrorResult("network_not_found",
						"No network with that ID is visible to this caller."), nil
				}
				return nil, fmt.Errorf("failed to get network health: %w", err)
			}

			jsonResult, _ := json.Marshal(networkHealthResult{
				Networks: []*models.NetworkHealth{health},
				Count:    1,
			})
			return mcp.NewToolResultText(string(jsonResult)), nil
		}

		health, err := deps.Telemetry.NetworkHealth(scopedCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to get network health: %w", err)
		}

		jsonResult, _ := json.Marshal(networkHealthResult{
			Networks: health,
			Count:    len(health),
		})
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
