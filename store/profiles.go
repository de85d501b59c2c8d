package store

import (
	"context"
	"fmt"

	"ginko-backend/types"
)

// UpsertProfile caches identity-provider profile data locally so member
// listings don't fan out to the provider on every request.
func (s *Store) UpsertProfile(ctx context.Context, p types.UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, email, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url, updated_at = now()`,
		p.UserID, p.Email, p.DisplayName, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
