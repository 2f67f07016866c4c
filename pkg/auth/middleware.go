package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
	scope       func(http.HandlerFunc) http.HandlerFunc
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// WithScope makes the middleware open a role-scoped database connection
// after authentication succeeds. The scope middleware reads the role from
// the claims this middleware sets, so it runs inside the auth wrapper.
// Handler tests skip this and mock their services instead.
func (m *Middleware) WithScope(scope func(http.HandlerFunc) http.HandlerFunc) *Middleware {
	m.scope = scope
	return m
}

// RequireAuth validates the JWT and sets claims and token in context for
// downstream handlers. Any valid role passes; use RequireRole to restrict.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	if m.scope != nil {
		next = m.scope(next)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole validates the JWT and requires at least the given engine role.
// Use for governance endpoints: RequireRole(RoleAdmin)(handler).
func (m *Middleware) RequireRole(min Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if m.scope != nil {
			next = m.scope(next)
		}
		return func(w http.ResponseWriter, r *http.Request) {
			claims, token, err := m.authService.ValidateRequest(r)
			if err != nil {
				m.unauthorized(w, "Authentication required")
				return
			}

			role := claims.EngineRole()
			if !role.AtLeast(min) {
				m.logger.Warn("Insufficient role for endpoint",
					zap.String("subject", claims.Subject),
					zap.String("role", string(role)),
					zap.String("required", string(min)),
					zap.String("path", r.URL.Path))
				m.forbidden(w, "Insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, TokenKey, token)
			next(w, r.WithContext(ctx))
		}
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}

// forbidden returns a 403 response with JSON error body.
func (m *Middleware) forbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "forbidden",
		"message": message,
	})
}
