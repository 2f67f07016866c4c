// Package tools provides MCP tool implementations for netsight-engine.
package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// ScopeProvider opens a role-scoped database context for a tool call.
// *database.RoleScopeProvider implements it.
type ScopeProvider interface {
	WithRoleScope(ctx context.Context, role auth.Role) (context.Context, func(), error)
}

// ToolDeps contains the services MCP tools call into.
type ToolDeps struct {
	Scopes        ScopeProvider
	Analyst       services.AnalystService
	SemanticModel services.SemanticModelService
	Queries       services.VerifiedQueryService
	Validation    services.ValidationService
	Telemetry     services.TelemetryService
	Logger        *zap.Logger
}

// openScope acquires a database scope for the caller's role. Every tool
// handler calls this first. The stateless HTTP transport makes each tool
// call a single request, so the scope lives exactly as long as the call.
func openScope(ctx context.Context, deps *ToolDeps) (context.Context, func(), error) {
	role := auth.GetRoleFromContext(ctx)
	scopedCtx, cleanup, err := deps.Scopes.WithRoleScope(ctx, role)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return scopedCtx, cleanup, nil
}
