package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func mintJWT(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return token
}

func TestPrincipalFromAPIKeyIsDeterministic(t *testing.T) {
	first := PrincipalFromAPIKey("gk_live_abc123")
	second := PrincipalFromAPIKey("gk_live_abc123")

	if first.UserID != second.UserID {
		t.Errorf("same key produced different principals: %q vs %q", first.UserID, second.UserID)
	}
	if !first.KeyAuth {
		t.Error("API-key principal must be flagged KeyAuth")
	}
	if _, err := uuid.Parse(first.UserID); err != nil {
		t.Errorf("derived user id %q is not a UUID: %v", first.UserID, err)
	}

	other := PrincipalFromAPIKey("gk_live_abc124")
	if other.UserID == first.UserID {
		t.Error("distinct keys must map to distinct principals")
	}
}

func TestResolveAPIKey(t *testing.T) {
	r := NewResolver("", nil)
	principal, err := r.Resolve(context.Background(), "gk_test_key")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !principal.KeyAuth {
		t.Error("expected KeyAuth principal")
	}
	if want := PrincipalFromAPIKey("gk_test_key"); principal.UserID != want.UserID {
		t.Errorf("Resolve user id %q, expected %q", principal.UserID, want.UserID)
	}
}

func TestResolveJWT(t *testing.T) {
	token := mintJWT(t, "test-secret", jwt.MapClaims{
		"sub":   "user-42",
		"email": "dev@example.com",
		"app_metadata": map[string]interface{}{
			"organization_id": "org-9",
		},
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	r := NewResolver("test-secret", nil)
	principal, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if principal.UserID != "user-42" {
		t.Errorf("UserID = %q, expected user-42", principal.UserID)
	}
	if principal.Email != "dev@example.com" {
		t.Errorf("Email = %q, expected dev@example.com", principal.Email)
	}
	if principal.OrganizationID != "org-9" {
		t.Errorf("OrganizationID = %q, expected org-9", principal.OrganizationID)
	}
	if principal.KeyAuth {
		t.Error("session token must not be flagged KeyAuth")
	}

	// Second resolution comes from the cache and must agree.
	cached, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("cached Resolve returned error: %v", err)
	}
	if cached.UserID != principal.UserID {
		t.Errorf("cached UserID = %q, expected %q", cached.UserID, principal.UserID)
	}
}

func TestResolveJWTWrongSecret(t *testing.T) {
	token := mintJWT(t, "other-secret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	r := NewResolver("test-secret", nil)
	if _, err := r.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve with wrong secret = %v, expected ErrInvalidToken", err)
	}
}

func TestResolveExpiredJWT(t *testing.T) {
	token := mintJWT(t, "test-secret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	r := NewResolver("test-secret", nil)
	if _, err := r.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve with expired token = %v, expected ErrInvalidToken", err)
	}
}

func TestResolveJWTMissingSubject(t *testing.T) {
	token := mintJWT(t, "test-secret", jwt.MapClaims{
		"email": "dev@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	r := NewResolver("test-secret", nil)
	if _, err := r.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve without sub claim = %v, expected ErrInvalidToken", err)
	}
}

func TestResolveEmptyToken(t *testing.T) {
	r := NewResolver("test-secret", nil)
	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve(\"\") = %v, expected ErrInvalidToken", err)
	}
}

func TestResolveSessionTokenWithoutVerifiers(t *testing.T) {
	// No JWT secret and no identity provider: session tokens cannot be
	// verified at all.
	r := NewResolver("", nil)
	if _, err := r.Resolve(context.Background(), "opaque-session-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve without verifiers = %v, expected ErrInvalidToken", err)
	}
}
