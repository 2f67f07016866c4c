// Package auth provides context helpers for extracting authentication
// information from request contexts. These helpers simplify access to JWT
// claims injected by the auth middleware and to role overrides set by the
// agent-key and CLI entry points.
package auth

import (
	"context"
	"fmt"
)

// GetSubjectFromContext extracts the caller subject from JWT claims in the
// context. Returns empty string if not authenticated or claims are missing.
// Use this when you only need the subject and can handle empty string
// gracefully (audit logging, provenance).
func GetSubjectFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetRoleFromContext resolves the caller's engine role. An explicit role
// override (agent keys, CLI) takes precedence over JWT claims. Callers with
// neither are viewers.
func GetRoleFromContext(ctx context.Context) Role {
	if role, ok := ctx.Value(RoleKey).(Role); ok && role.Valid() {
		return role
	}

	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return RoleViewer
	}
	return claims.EngineRole()
}

// ContextWithRole returns a context carrying an explicit role override.
// Used by the MCP agent-key middleware and the CLI, which authenticate
// without a JWT.
func ContextWithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// RequireSubjectFromContext extracts the subject from context and returns an
// error if not found. Use this when caller identity is required.
func RequireSubjectFromContext(ctx context.Context) (string, error) {
	subject := GetSubjectFromContext(ctx)
	if subject == "" {
		return "", fmt.Errorf("subject not found in context")
	}
	return subject, nil
}

// RequireRole returns an error unless the context carries at least the given
// role. Services use this as a second line of defense behind the HTTP
// middleware.
func RequireRole(ctx context.Context, min Role) error {
	role := GetRoleFromContext(ctx)
	if !role.AtLeast(min) {
		return fmt.Errorf("role %s required, caller has %s", min, role)
	}
	return nil
}
