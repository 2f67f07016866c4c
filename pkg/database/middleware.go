package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
)

// WithRoleContext creates middleware that sets up a role-scoped DB connection.
// It runs AFTER auth middleware and derives the role from JWT claims.
// The connection is automatically cleaned up after the handler returns.
func WithRoleContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			role := auth.GetRoleFromContext(r.Context())

			scope, err := db.WithRole(r.Context(), role)
			if err != nil {
				logger.Error("Failed to acquire role-scoped connection",
					zap.String("role", string(role)),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			ctx := SetRoleScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
