package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ginko-backend/types"
)

// SupabaseClient talks to the identity provider's auth API. The anon key
// scopes request-context lookups; the service-role key unlocks the admin
// endpoints used for profile backfill.
type SupabaseClient struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	httpClient     *http.Client
}

// NewSupabaseClient returns nil when no base URL is configured so
// callers can treat the provider as absent.
func NewSupabaseClient(baseURL, anonKey, serviceRoleKey string) *SupabaseClient {
	if baseURL == "" {
		return nil
	}
	return &SupabaseClient{
		baseURL:        baseURL,
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

type supabaseUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
}

// GetUser resolves a session token against the provider.
func (s *SupabaseClient) GetUser(ctx context.Context, accessToken string) (types.Principal, error) {
	endpoint := fmt.Sprintf("%s/auth/v1/user", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return types.Principal{}, err
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return types.Principal{}, fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.Principal{}, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}
	var user supabaseUser
	if err := json.Unmarshal(body, &user); err != nil {
		return types.Principal{}, fmt.Errorf("decode identity response: %w", err)
	}
	if user.ID == "" {
		return types.Principal{}, fmt.Errorf("identity response carried no user id")
	}
	principal := types.Principal{UserID: user.ID, Email: user.Email}
	if org, ok := user.AppMetadata["organization_id"].(string); ok {
		principal.OrganizationID = org
	}
	return principal, nil
}

// AdminGetProfile fetches a user's profile via the service-role admin
// endpoint. Used to backfill member listings when the local
// user_profiles row is missing or incomplete.
func (s *SupabaseClient) AdminGetProfile(ctx context.Context, userID string) (types.UserProfile, error) {
	if s.serviceRoleKey == "" {
		return types.UserProfile{}, fmt.Errorf("service role key not configured")
	}
	endpoint := fmt.Sprintf("%s/auth/v1/admin/users/%s", s.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return types.UserProfile{}, err
	}
	req.Header.Set("apikey", s.serviceRoleKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceRoleKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("identity admin request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.UserProfile{}, fmt.Errorf("identity admin endpoint returned %d", resp.StatusCode)
	}
	var user supabaseUser
	if err := json.Unmarshal(body, &user); err != nil {
		return types.UserProfile{}, fmt.Errorf("decode identity admin response: %w", err)
	}
	profile := types.UserProfile{UserID: user.ID, Email: user.Email}
	if name, ok := user.UserMetadata["full_name"].(string); ok {
		profile.DisplayName = name
	}
	if avatar, ok := user.UserMetadata["avatar_url"].(string); ok {
		profile.AvatarURL = avatar
	}
	return profile, nil
}
