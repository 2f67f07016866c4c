package handlers

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
)

// mockAuthService is a mock AuthService for handler tests.
type mockAuthService struct {
	claims *auth.Claims
	token  string
	err    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.claims, m.token, nil
}

// claimsForRole builds claims carrying the given engine role.
func claimsForRole(role auth.Role) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "test-user",
		},
		Email: "test@netsight.example",
		Role:  string(role),
	}
}

// testMiddleware builds auth middleware whose caller always authenticates
// with the given role.
func testMiddleware(role auth.Role) *auth.Middleware {
	return auth.NewMiddleware(&mockAuthService{
		claims: claimsForRole(role),
		token:  "test-token",
	}, zap.NewNop())
}
