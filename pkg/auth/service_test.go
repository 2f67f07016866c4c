package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// stubJWKSClient is a stub JWKSClientInterface for testing the service layer.
type stubJWKSClient struct {
	claims    *Claims
	err       error
	lastToken string
}

func (s *stubJWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	s.lastToken = tokenString
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func (s *stubJWKSClient) Close() {}

func TestValidateRequest_BearerHeader(t *testing.T) {
	stub := &stubJWKSClient{claims: &Claims{Role: "analyst"}}
	svc := NewAuthService(stub, true, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	claims, token, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims == nil || claims.Role != "analyst" {
		t.Error("expected claims from validator")
	}
	if token != "header-token" {
		t.Errorf("expected token 'header-token', got %q", token)
	}
	if stub.lastToken != "header-token" {
		t.Errorf("validator received %q, want 'header-token'", stub.lastToken)
	}
}

func TestValidateRequest_Cookie(t *testing.T) {
	stub := &stubJWKSClient{claims: &Claims{Role: "viewer"}}
	svc := NewAuthService(stub, true, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)
	req.AddCookie(&http.Cookie{Name: JWTCookieName, Value: "cookie-token"})

	_, token, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "cookie-token" {
		t.Errorf("expected token 'cookie-token', got %q", token)
	}
}

func TestValidateRequest_CookieTakesPrecedenceOverHeader(t *testing.T) {
	stub := &stubJWKSClient{claims: &Claims{}}
	svc := NewAuthService(stub, true, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)
	req.AddCookie(&http.Cookie{Name: JWTCookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	_, _, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.lastToken != "cookie-token" {
		t.Errorf("expected cookie token to win, validator got %q", stub.lastToken)
	}
}

func TestValidateRequest_MalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing scheme", "just-a-token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"too many parts", "Bearer one two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(&stubJWKSClient{}, true, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)
			req.Header.Set("Authorization", tt.header)

			_, _, err := svc.ValidateRequest(req)
			if !errors.Is(err, ErrInvalidAuthFormat) {
				t.Errorf("expected ErrInvalidAuthFormat, got %v", err)
			}
		})
	}
}

func TestValidateRequest_DemoModeGrantsAdminWithoutToken(t *testing.T) {
	svc := NewAuthService(&stubJWKSClient{}, false, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)

	claims, token, err := svc.ValidateRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims == nil {
		t.Fatal("expected synthetic claims")
	}
	if claims.Subject != "demo" {
		t.Errorf("expected subject 'demo', got %q", claims.Subject)
	}
	if claims.EngineRole() != RoleAdmin {
		t.Errorf("expected admin role, got %q", claims.EngineRole())
	}
	if token != "" {
		t.Errorf("expected empty token, got %q", token)
	}
}

func TestValidateRequest_MissingTokenWithVerificationEnabled(t *testing.T) {
	svc := NewAuthService(&stubJWKSClient{}, true, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)

	_, _, err := svc.ValidateRequest(req)
	if !errors.Is(err, ErrMissingAuthorization) {
		t.Errorf("expected ErrMissingAuthorization, got %v", err)
	}
}

func TestValidateRequest_ValidationFailurePropagates(t *testing.T) {
	validationErr := errors.New("token expired")
	svc := NewAuthService(&stubJWKSClient{err: validationErr}, true, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/networks", nil)
	req.Header.Set("Authorization", "Bearer expired-token")

	_, _, err := svc.ValidateRequest(req)
	if !errors.Is(err, validationErr) {
		t.Errorf("expected validation error to propagate, got %v", err)
	}
}
