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

type listVerifiedQueriesResult struct {
	Queries []*models.VerifiedQuery `json:"queries"`
	Count   int                     `json:"count"`
}

type runVerifiedQueryResult struct {
	Query          string         `json:"query"`
	ParametersUsed map[string]any `json:"parameters_used,omitempty"`
	*models.QueryResult
}

// RegisterVerifiedQueryTools adds list_verified_queries and
// run_verified_query. Verified queries are the reviewed, parameterized SQL
// an agent should prefer over free-form generation when one fits.
func RegisterVerifiedQueryTools(s *server.MCPServer, deps *ToolDeps) {
	registerListVerifiedQueries(s, deps)
	registerRunVerifiedQuery(s, deps)
}

func registerListVerifiedQueries(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"list_verified_queries",
		mcp.WithDescription(
			"Lists the verified queries: reviewed, parameterized SQL with known-good "+
				"answers. Each entry shows the question it answers, its SQL, and its "+
				"parameter definitions. Prefer run_verified_query over ask_question "+
				"when a verified query matches the question.",
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

		queries, err := deps.Queries.List(scopedCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to list verified queries: %w", err)
		}

		jsonResult, _ := json.Marshal(listVerifiedQueriesResult{
			Queries: queries,
			Count:   len(queries),
		})
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

func registerRunVerifiedQuery(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"run_verified_query",
		mcp.WithDescription(
			"Runs a verified query by name with the given parameters and returns "+
				"masked result rows. Use list_verified_queries to see names and "+
				"parameter definitions. Parameters are bound server-side, never "+
				"interpolated into the SQL.",
		),
		mcp.WithString(
			"name",
			mcp.Required(),
			mcp.Description("Verified query name (e.g. 'worst_aps_by_loss')"),
		),
		mcp.WithObject(
			"parameters",
			mcp.Description("Parameter values keyed by parameter name"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum rows to return (default: server row limit)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return nil, err
		}
		params := getOptionalObject(req, "parameters")
		limit := 0
		if v, ok := getOptionalFloat(req, "limit"); ok {
			limit = int(v)
		}

		scopedCtx, cleanup, err := openScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		result, err := deps.Queries.RunByName(scopedCtx, name, params, limit)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				return NewErrorResult("query_not_found",
					fmt.Sprintf("No verified query named %q exists. Use list_verified_queries to see what is available.", name)), nil
			case errors.Is(err, apperrors.ErrMissingParameter):
				return NewErrorResult("missing_parameter", err.Error()), nil
			case errors.Is(err, apperrors.ErrQueryNotPermitted):
				return NewErrorResult("query_not_permitted", err.Error()), nil
			}
			if result := NewSQLErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to run verified query: %w", err)
		}

		jsonResult, _ := json.Marshal(runVerifiedQueryResult{
			Query:          name,
			ParametersUsed: params,
			QueryResult:    result,
		})
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
