// Package auth provides JWT-based authentication for netsight-engine.
// It validates tokens issued by the configured identity provider using
// JWKS endpoints and resolves engine roles from token claims.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
	// RoleKey is the context key for an explicit role override. Agent API
	// keys and CLI invocations carry no JWT; their resolved role is stored
	// here instead.
	RoleKey contextKey = "role"
)

// Role is an engine authorization role.
type Role string

const (
	// RoleAdmin can mutate governance objects (masking policies, semantic
	// models, verified queries) and run seeding.
	RoleAdmin Role = "admin"
	// RoleAnalyst can ask questions and run verified queries with
	// unmasked access to non-restricted columns.
	RoleAnalyst Role = "analyst"
	// RoleViewer gets read access with all masking policies applied.
	RoleViewer Role = "viewer"
)

// roleRank orders roles for privilege comparison.
var roleRank = map[Role]int{
	RoleViewer:  1,
	RoleAnalyst: 2,
	RoleAdmin:   3,
}

// Valid reports whether r is a recognized engine role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privilege of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// ParseRole returns the Role for s, or RoleViewer if unrecognized.
func ParseRole(s string) Role {
	r := Role(s)
	if r.Valid() {
		return r
	}
	return RoleViewer
}

// Claims represents the JWT claims structure from the identity provider.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds custom claims for engine authorization.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"` // User email address
	Role  string   `json:"role,omitempty"`  // Primary engine role
	Roles []string `json:"roles,omitempty"` // Alternative multi-role claim
}

// EngineRole resolves the caller's engine role from the claims. The "role"
// claim wins; otherwise the highest-privilege recognized entry of "roles" is
// used. Authenticated callers without any role claim default to viewer.
func (c *Claims) EngineRole() Role {
	if r := Role(c.Role); r.Valid() {
		return r
	}

	best := RoleViewer
	found := false
	for _, s := range c.Roles {
		if r := Role(s); r.Valid() {
			found = true
			if r.AtLeast(best) {
				best = r
			}
		}
	}
	if found {
		return best
	}
	return RoleViewer
}

// AgentClaims builds synthetic claims for a caller authenticated by agent
// API key rather than JWT. The subject is "agent:<key name>" so audit
// entries attribute activity to the key.
func AgentClaims(keyName, role string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "agent:" + keyName},
		Role:             role,
	}
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
