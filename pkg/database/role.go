package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
)

// RoleScope wraps a connection with the caller's engine role and ensures cleanup.
// The connection has netsight.current_role set for RLS policy evaluation, so
// row-level policies on governed tables see who is asking.
type RoleScope struct {
	Conn *pgxpool.Conn
	Role auth.Role
}

// Close resets the role context and releases the connection to the pool.
// This MUST be called to prevent role context from leaking to the next request.
func (s *RoleScope) Close() {
	if s.Conn == nil {
		return
	}
	// Reset the role context before returning connection to pool
	_, _ = s.Conn.Exec(context.Background(), "RESET netsight.current_role")
	s.Conn.Release()
}

// WithRole acquires a connection and sets the role context for RLS.
// The returned RoleScope MUST be closed with defer scope.Close().
func (db *DB) WithRole(ctx context.Context, role auth.Role) (*RoleScope, error) {
	if !role.Valid() {
		role = auth.RoleViewer
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('netsight.current_role', $1, false)", string(role))
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &RoleScope{Conn: conn, Role: role}, nil
}
