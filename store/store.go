// Package store is the relational identity and billing store. Teams,
// memberships, invitations, organizations, and the webhook audit log
// live here; operational state lives in the graph.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTeamNotFound         = errors.New("team not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAlreadyMember        = errors.New("user is already a team member")
	ErrLastOwner            = errors.New("team must keep at least one owner")
)

// Store wraps the connection pool. All methods are safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects the pool and verifies it with a ping.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// isUniqueViolation classifies duplicate-key failures so callers can
// turn them into domain conflicts.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS organizations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT,
	stripe_customer_id TEXT UNIQUE,
	stripe_subscription_id TEXT,
	subscription_status TEXT,
	plan_tier TEXT NOT NULL DEFAULT 'free',
	seat_count INTEGER NOT NULL DEFAULT 2,
	payment_status TEXT,
	payment_attempt_count INTEGER NOT NULL DEFAULT 0,
	last_payment_at TIMESTAMPTZ,
	payment_failed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS teams (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	graph_id TEXT NOT NULL UNIQUE,
	organization_id UUID REFERENCES organizations(id),
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_sync_at TIMESTAMPTZ,
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS team_invitations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	code TEXT NOT NULL UNIQUE,
	email TEXT,
	role TEXT NOT NULL DEFAULT 'member',
	status TEXT NOT NULL DEFAULT 'pending',
	expires_at TIMESTAMPTZ NOT NULL,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	accepted_at TIMESTAMPTZ,
	accepted_by TEXT
);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	email TEXT,
	display_name TEXT,
	avatar_url TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS billing_events (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	organization_id UUID,
	stripe_event_id TEXT NOT NULL UNIQUE,
	event_type TEXT NOT NULL,
	payload JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS team_members_user_idx ON team_members (user_id);
CREATE INDEX IF NOT EXISTS teams_org_idx ON teams (organization_id);
CREATE INDEX IF NOT EXISTS invitations_team_idx ON team_invitations (team_id);
`

// EnsureSchema applies the idempotent DDL at boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
