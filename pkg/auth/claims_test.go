package auth

import (
	"testing"
)

func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleAdmin, RoleViewer, true},
		{RoleAdmin, RoleAnalyst, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleAnalyst, RoleAdmin, false},
		{RoleAnalyst, RoleAnalyst, true},
		{RoleViewer, RoleAnalyst, false},
		{RoleViewer, RoleViewer, true},
	}

	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("admin") != RoleAdmin {
		t.Error("expected admin")
	}
	if ParseRole("analyst") != RoleAnalyst {
		t.Error("expected analyst")
	}
	if ParseRole("superuser") != RoleViewer {
		t.Error("unrecognized role should default to viewer")
	}
	if ParseRole("") != RoleViewer {
		t.Error("empty role should default to viewer")
	}
}

func TestClaims_EngineRole(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   Role
	}{
		{
			name:   "explicit role claim",
			claims: Claims{Role: "analyst"},
			want:   RoleAnalyst,
		},
		{
			name:   "role claim wins over roles list",
			claims: Claims{Role: "viewer", Roles: []string{"admin"}},
			want:   RoleViewer,
		},
		{
			name:   "highest privilege from roles list",
			claims: Claims{Roles: []string{"viewer", "admin", "analyst"}},
			want:   RoleAdmin,
		},
		{
			name:   "unrecognized entries ignored",
			claims: Claims{Roles: []string{"owner", "analyst"}},
			want:   RoleAnalyst,
		},
		{
			name:   "no role claims defaults to viewer",
			claims: Claims{},
			want:   RoleViewer,
		},
		{
			name:   "invalid role claim falls back to roles list",
			claims: Claims{Role: "owner", Roles: []string{"analyst"}},
			want:   RoleAnalyst,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.claims.EngineRole(); got != tt.want {
				t.Errorf("EngineRole() = %s, want %s", got, tt.want)
			}
		})
	}
}
