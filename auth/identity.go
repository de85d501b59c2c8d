// Package auth resolves bearer credentials into principals and computes
// per-graph capabilities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"ginko-backend/types"
)

// ErrInvalidToken means the credential parsed but did not verify.
var ErrInvalidToken = errors.New("invalid credential")

// APIKeyPrefix marks long-lived keys; everything else is treated as an
// identity-provider session token.
const APIKeyPrefix = "gk_"

// apiKeyNamespace seeds the deterministic key-to-principal mapping.
var apiKeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ginko.ai/api-keys"))

// PrincipalFromAPIKey derives the stable principal for a long-lived key.
// The mapping is a pure function of the raw token bytes, so the same key
// always resolves to the same user id and no lookup table exists.
func PrincipalFromAPIKey(token string) types.Principal {
	return types.Principal{
		UserID:  uuid.NewSHA1(apiKeyNamespace, []byte(token)).String(),
		KeyAuth: true,
	}
}

// Resolver turns bearer tokens into principals. Session tokens verify
// locally when a JWT secret is configured and fall back to the identity
// provider's user endpoint otherwise. Resolutions are cached briefly to
// keep the gate off the request hot path.
type Resolver struct {
	jwtSecret string
	supabase  *SupabaseClient
	cache     *gocache.Cache
}

// NewResolver builds a resolver. supabase may be nil when the identity
// provider is not configured; session tokens then require the JWT secret.
func NewResolver(jwtSecret string, supabase *SupabaseClient) *Resolver {
	return &Resolver{
		jwtSecret: jwtSecret,
		supabase:  supabase,
		cache:     gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Resolve maps a raw bearer token to a principal.
func (r *Resolver) Resolve(ctx context.Context, token string) (types.Principal, error) {
	if token == "" {
		return types.Principal{}, ErrInvalidToken
	}
	if strings.HasPrefix(token, APIKeyPrefix) {
		return PrincipalFromAPIKey(token), nil
	}
	if cached, found := r.cache.Get(token); found {
		return cached.(types.Principal), nil
	}

	if r.jwtSecret != "" {
		principal, err := r.verifyJWT(token)
		if err == nil {
			r.cache.SetDefault(token, principal)
			return principal, nil
		}
		log.Printf("Auth: local token verification failed, falling back to provider: %v", err)
	}

	if r.supabase == nil {
		return types.Principal{}, ErrInvalidToken
	}
	principal, err := r.supabase.GetUser(ctx, token)
	if err != nil {
		return types.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	r.cache.SetDefault(token, principal)
	return principal, nil
}

func (r *Resolver) verifyJWT(token string) (types.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(r.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return types.Principal{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return types.Principal{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return types.Principal{}, ErrInvalidToken
	}
	principal := types.Principal{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		principal.Email = email
	}
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if org, ok := meta["organization_id"].(string); ok {
			principal.OrganizationID = org
		}
	}
	return principal, nil
}
