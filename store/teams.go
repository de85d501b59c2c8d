package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ginko-backend/types"
)

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// TeamForGraph returns the team linked to a graph namespace, or nil when
// the graph has none.
func (s *Store) TeamForGraph(ctx context.Context, graphID string) (*types.Team, error) {
	team, err := s.scanTeam(ctx, `
		SELECT id::text, name, graph_id, COALESCE(organization_id::text, ''), COALESCE(created_by, ''), created_at
		FROM teams WHERE graph_id = $1`, graphID)
	if errors.Is(err, ErrTeamNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamByID fetches one team.
func (s *Store) TeamByID(ctx context.Context, teamID string) (types.Team, error) {
	return s.scanTeam(ctx, `
		SELECT id::text, name, graph_id, COALESCE(organization_id::text, ''), COALESCE(created_by, ''), created_at
		FROM teams WHERE id = $1`, teamID)
}

func (s *Store) scanTeam(ctx context.Context, query string, args ...any) (types.Team, error) {
	var team types.Team
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&team.ID, &team.Name, &team.GraphID, &team.OrganizationID, &team.CreatedBy, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Team{}, ErrTeamNotFound
	}
	if err != nil {
		return types.Team{}, fmt.Errorf("query team: %w", err)
	}
	team.CreatedAt = fmtTime(&createdAt)
	return team, nil
}

// MemberRole looks up one user's role in a team.
func (s *Store) MemberRole(ctx context.Context, teamID, userID string) (types.TeamRole, bool, error) {
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query member role: %w", err)
	}
	return types.TeamRole(role), true, nil
}

// Members lists a team's members with whatever profile data the local
// user_profiles table holds.
func (s *Store) Members(ctx context.Context, teamID string) ([]types.TeamMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tm.team_id::text, tm.user_id, tm.role, tm.joined_at, tm.last_sync_at,
			COALESCE(up.email, ''), COALESCE(up.display_name, ''), COALESCE(up.avatar_url, '')
		FROM team_members tm
		LEFT JOIN user_profiles up ON up.user_id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []types.TeamMember
	for rows.Next() {
		var m types.TeamMember
		var role string
		var joinedAt time.Time
		var lastSyncAt *time.Time
		if err := rows.Scan(&m.TeamID, &m.UserID, &role, &joinedAt, &lastSyncAt,
			&m.Email, &m.DisplayName, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = types.TeamRole(role)
		m.JoinedAt = fmtTime(&joinedAt)
		m.LastSyncAt = fmtTime(lastSyncAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember inserts a membership row. A duplicate (team, user) pair
// fails with ErrAlreadyMember carrying no role detail; callers that need
// the existing role read it separately.
func (s *Store) AddMember(ctx context.Context, teamID, userID string, role types.TeamRole) (types.TeamMember, error) {
	var joinedAt time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING joined_at`, teamID, userID, string(role)).Scan(&joinedAt)
	if isUniqueViolation(err) {
		return types.TeamMember{}, ErrAlreadyMember
	}
	if err != nil {
		return types.TeamMember{}, fmt.Errorf("insert member: %w", err)
	}
	return types.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: fmtTime(&joinedAt),
	}, nil
}

// RemoveMember deletes a membership inside one transaction, refusing
// when the target is the last owner so every team keeps at least one.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var role string
	err = tx.QueryRow(ctx,
		`SELECT role FROM team_members WHERE team_id = $1 AND user_id = $2 FOR UPDATE`,
		teamID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("lock member: %w", err)
	}

	if types.TeamRole(role) == types.RoleOwner {
		var owners int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND role = 'owner'`,
			teamID).Scan(&owners); err != nil {
			return fmt.Errorf("count owners: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdateLastSyncByGraph stamps the caller's membership in the team
// linked to graphID. Returns false when the caller is not a member.
func (s *Store) UpdateLastSyncByGraph(ctx context.Context, graphID, userID string, syncedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE team_members tm SET last_sync_at = $3
		FROM teams t
		WHERE t.id = tm.team_id AND t.graph_id = $1 AND tm.user_id = $2`,
		graphID, userID, syncedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("update last sync: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TeamsForUserWithRoles lists the teams where the user holds one of the
// given roles.
func (s *Store) TeamsForUserWithRoles(ctx context.Context, userID string, roles []types.TeamRole) ([]types.Team, error) {
	roleStrings := make([]string, len(roles))
	for i, r := range roles {
		roleStrings[i] = string(r)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT t.id::text, t.name, t.graph_id, COALESCE(t.organization_id::text, ''), COALESCE(t.created_by, ''), t.created_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1 AND tm.role = ANY($2)
		ORDER BY t.created_at DESC`, userID, roleStrings)
	if err != nil {
		return nil, fmt.Errorf("query teams for user: %w", err)
	}
	defer rows.Close()

	var teams []types.Team
	for rows.Next() {
		var team types.Team
		var createdAt time.Time
		if err := rows.Scan(&team.ID, &team.Name, &team.GraphID,
			&team.OrganizationID, &team.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		team.CreatedAt = fmtTime(&createdAt)
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// CreateInvitation mints a pending invitation row.
func (s *Store) CreateInvitation(ctx context.Context, inv types.TeamInvitation) (types.TeamInvitation, error) {
	var id string
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO team_invitations (team_id, code, email, role, status, expires_at, created_by)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		RETURNING id::text, created_at`,
		inv.TeamID, inv.Code, inv.Email, string(inv.Role), inv.ExpiresAt, inv.CreatedBy).
		Scan(&id, &createdAt)
	if err != nil {
		return types.TeamInvitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	inv.ID = id
	inv.Status = types.InvitationPending
	inv.CreatedAt = fmtTime(&createdAt)
	return inv, nil
}

// InvitationByCode fetches an invitation with its team name.
func (s *Store) InvitationByCode(ctx context.Context, code string) (types.TeamInvitation, error) {
	var inv types.TeamInvitation
	var role, status string
	var expiresAt, createdAt time.Time
	var acceptedAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT i.id::text, i.team_id::text, t.name, i.code, COALESCE(i.email, ''),
			i.role, i.status, i.expires_at, COALESCE(i.created_by, ''), i.created_at,
			i.accepted_at, COALESCE(i.accepted_by, '')
		FROM team_invitations i
		JOIN teams t ON t.id = i.team_id
		WHERE i.code = $1`, code).
		Scan(&inv.ID, &inv.TeamID, &inv.TeamName, &inv.Code, &inv.Email,
			&role, &status, &expiresAt, &inv.CreatedBy, &createdAt,
			&acceptedAt, &inv.AcceptedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.TeamInvitation{}, ErrInvitationNotFound
	}
	if err != nil {
		return types.TeamInvitation{}, fmt.Errorf("query invitation: %w", err)
	}
	inv.Role = types.TeamRole(role)
	inv.Status = types.InvitationStatus(status)
	inv.ExpiresAt = fmtTime(&expiresAt)
	inv.CreatedAt = fmtTime(&createdAt)
	inv.AcceptedAt = fmtTime(acceptedAt)
	return inv, nil
}

// MarkInvitationStatus flips an invitation's status.
func (s *Store) MarkInvitationStatus(ctx context.Context, invitationID string, status types.InvitationStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE team_invitations SET status = $2 WHERE id = $1`,
		invitationID, string(status))
	if err != nil {
		return fmt.Errorf("update invitation status: %w", err)
	}
	return nil
}

// AcceptInvitation adds the redeeming user with the invitation's role
// and marks the invitation accepted, atomically. An existing membership
// fails with ErrAlreadyMember and leaves the invitation untouched.
func (s *Store) AcceptInvitation(ctx context.Context, inv types.TeamInvitation, userID string, now time.Time) (types.TeamMember, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.TeamMember{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var joinedAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING joined_at`, inv.TeamID, userID, string(inv.Role)).Scan(&joinedAt)
	if isUniqueViolation(err) {
		return types.TeamMember{}, ErrAlreadyMember
	}
	if err != nil {
		return types.TeamMember{}, fmt.Errorf("insert member: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE team_invitations
		SET status = 'accepted', accepted_at = $2, accepted_by = $3
		WHERE id = $1`, inv.ID, now.UTC(), userID); err != nil {
		return types.TeamMember{}, fmt.Errorf("mark invitation accepted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.TeamMember{}, fmt.Errorf("commit: %w", err)
	}
	return types.TeamMember{
		TeamID:   inv.TeamID,
		UserID:   userID,
		Role:     inv.Role,
		JoinedAt: fmtTime(&joinedAt),
	}, nil
}
