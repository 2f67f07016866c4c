package database

import (
	"context"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
)

type contextKey string

const (
	// RoleScopeKey is the context key for storing the role-scoped database connection.
	RoleScopeKey contextKey = "roleScope"
)

// GetRoleScope retrieves the role-scoped database connection from context.
// Returns nil and false if not present.
func GetRoleScope(ctx context.Context) (*RoleScope, bool) {
	scope, ok := ctx.Value(RoleScopeKey).(*RoleScope)
	return scope, ok
}

// SetRoleScope stores the role-scoped database connection in context.
func SetRoleScope(ctx context.Context, scope *RoleScope) context.Context {
	return context.WithValue(ctx, RoleScopeKey, scope)
}

// RoleScopeProvider creates role-scoped contexts for database operations.
// Callers outside the HTTP middleware chain (MCP tools, CLI commands,
// background tasks) use it to open a scope of their own.
type RoleScopeProvider struct {
	db *DB
}

// NewRoleScopeProvider creates a RoleScopeProvider for the given database.
func NewRoleScopeProvider(db *DB) *RoleScopeProvider {
	return &RoleScopeProvider{db: db}
}

// WithRoleScope returns a context with a role scope set for the given role.
// The cleanup function must be called when the scope is no longer needed.
func (p *RoleScopeProvider) WithRoleScope(ctx context.Context, role auth.Role) (context.Context, func(), error) {
	scope, err := p.db.WithRole(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	scopedCtx := SetRoleScope(auth.ContextWithRole(ctx, role), scope)
	return scopedCtx, func() { scope.Close() }, nil
}
