// Package mcpauth provides MCP-specific authentication middleware.
// MCP callers present either an agent API key (X-Agent-Key) or a Bearer
// JWT; failures are answered with RFC 6750 WWW-Authenticate headers.
package mcpauth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/mcp"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// AgentKeyHeader carries an agent API key. A present key wins over a
// Bearer token so misconfigured agents fail loudly instead of silently
// falling back to someone's forwarded JWT.
const AgentKeyHeader = "X-Agent-Key"

// keyPrefixLen mirrors the display prefix stored with each key.
const keyPrefixLen = 8

// ScopeProvider opens a role-scoped database context for the key lookup.
// *database.RoleScopeProvider implements it.
type ScopeProvider interface {
	WithRoleScope(ctx context.Context, role auth.Role) (context.Context, func(), error)
}

// Middleware authenticates MCP requests.
type Middleware struct {
	authService auth.AuthService
	keys        services.AgentKeyService
	scopes      ScopeProvider
	auditLog    *mcp.AuditLogger
	logger      *zap.Logger
}

// NewMiddleware creates an MCP auth middleware. auditLog may be nil in
// tests; auth failures are then only logged.
func NewMiddleware(
	authService auth.AuthService,
	keys services.AgentKeyService,
	scopes ScopeProvider,
	auditLog *mcp.AuditLogger,
	logger *zap.Logger,
) *Middleware {
	return &Middleware{
		authService: authService,
		keys:        keys,
		scopes:      scopes,
		auditLog:    auditLog,
		logger:      logger,
	}
}

// RequireAgent validates the caller and injects claims and role into the
// request context. Tool handlers downstream resolve their database scope
// from that role.
func (m *Middleware) RequireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if presented := r.Header.Get(AgentKeyHeader); presented != "" {
			m.serveWithAgentKey(w, r, next, presented)
			return
		}

		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP auth failed: invalid or missing token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.recordFailure(r, "invalid or missing bearer token", "")
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
		ctx = context.WithValue(ctx, auth.TokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// serveWithAgentKey resolves an agent key to its role and forwards the
// request with synthetic agent claims.
func (m *Middleware) serveWithAgentKey(w http.ResponseWriter, r *http.Request, next http.Handler, presented string) {
	// The caller has no role until the key resolves, so the lookup runs
	// on an engine-internal scope.
	scopedCtx, cleanup, err := m.scopes.WithRoleScope(r.Context(), auth.RoleAdmin)
	if err != nil {
		m.logger.Error("MCP auth failed: could not acquire database connection", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	key, err := m.keys.Validate(scopedCtx, presented)
	cleanup()
	if err != nil {
		m.logger.Debug("MCP auth failed: agent key rejected",
			zap.String("path", r.URL.Path),
			zap.String("key_prefix", safePrefix(presented)))
		m.recordFailure(r, "unknown or disabled agent key", safePrefix(presented))
		m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The agent key is unknown or disabled")
		return
	}

	ctx := context.WithValue(r.Context(), auth.ClaimsKey, auth.AgentClaims(key.Name, key.Role))
	ctx = auth.ContextWithRole(ctx, auth.Role(key.Role))
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (m *Middleware) recordFailure(r *http.Request, reason, keyPrefix string) {
	if m.auditLog == nil {
		return
	}
	m.auditLog.RecordAuthFailure(reason, keyPrefix, audit.ClientIPFromContext(r.Context()))
}

// safePrefix returns the display prefix of a presented key, or empty when
// the key is too short to have one.
func safePrefix(presented string) string {
	if len(presented) < keyPrefixLen {
		return ""
	}
	return presented[:keyPrefixLen]
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
