package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ginko-backend/store"
	"ginko-backend/types"
)

func pendingInvitation() types.TeamInvitation {
	return types.TeamInvitation{
		ID:        "inv-1",
		TeamID:    "team-1",
		TeamName:  "Platform",
		Code:      "join-code-1",
		Email:     "new@example.com",
		Role:      types.RoleMember,
		Status:    types.InvitationPending,
		ExpiresAt: types.FormatTimestamp(time.Now().UTC().Add(24 * time.Hour)),
	}
}

func TestJoinPreview(t *testing.T) {
	resetDeps()
	inv := pendingInvitation()
	Teams = &fakeTeamStore{
		invitationByCode: func(_ context.Context, code string) (types.TeamInvitation, error) {
			if code != "join-code-1" {
				t.Errorf("lookup used code %q, expected join-code-1", code)
			}
			return inv, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/join", JoinPreview)

	w := doJSON(t, r, http.MethodGet, "/team/join?code=join-code-1", nil)

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["teamId"] != "team-1" || body["teamName"] != "Platform" || body["role"] != "member" {
		t.Errorf("body = %v, expected the invitation preview", body)
	}
}

func TestJoinPreview_WithoutDatabase(t *testing.T) {
	resetDeps()
	r := routeWith(testPrincipal, http.MethodGet, "/team/join", JoinPreview)

	w := doJSON(t, r, http.MethodGet, "/team/join?code=x", nil)

	assertStatus(t, w, http.StatusServiceUnavailable)
	if code := errorCode(t, w); code != types.CodeServiceUnavailable {
		t.Errorf("error code = %q, expected %q", code, types.CodeServiceUnavailable)
	}
}

func TestJoinPreview_ExpiredInvitationIsMarked(t *testing.T) {
	resetDeps()
	inv := pendingInvitation()
	inv.ExpiresAt = types.FormatTimestamp(time.Now().UTC().Add(-time.Hour))
	var marked types.InvitationStatus
	Teams = &fakeTeamStore{
		invitationByCode: func(context.Context, string) (types.TeamInvitation, error) {
			return inv, nil
		},
		markInvitationStatus: func(_ context.Context, invitationID string, status types.InvitationStatus) error {
			if invitationID != "inv-1" {
				t.Errorf("marked invitation %q, expected inv-1", invitationID)
			}
			marked = status
			return nil
		},
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/join", JoinPreview)

	w := doJSON(t, r, http.MethodGet, "/team/join?code=join-code-1", nil)

	assertStatus(t, w, http.StatusGone)
	if code := errorCode(t, w); code != types.CodeInvitationExpired {
		t.Errorf("error code = %q, expected %q", code, types.CodeInvitationExpired)
	}
	if marked != types.InvitationExpired {
		t.Errorf("invitation marked %q, expected expired", marked)
	}
}

func TestJoinPreview_RevokedInvitation(t *testing.T) {
	resetDeps()
	inv := pendingInvitation()
	inv.Status = types.InvitationRevoked
	Teams = &fakeTeamStore{
		invitationByCode: func(context.Context, string) (types.TeamInvitation, error) {
			return inv, nil
		},
		// No markInvitationStatus: a non-pending invitation must not be
		// rewritten.
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/join", JoinPreview)

	w := doJSON(t, r, http.MethodGet, "/team/join?code=join-code-1", nil)

	assertStatus(t, w, http.StatusGone)
	if code := errorCode(t, w); code != types.CodeInvitationExpired {
		t.Errorf("error code = %q, expected %q", code, types.CodeInvitationExpired)
	}
}

func TestJoinPreview_UnknownCode(t *testing.T) {
	resetDeps()
	Teams = &fakeTeamStore{
		invitationByCode: func(context.Context, string) (types.TeamInvitation, error) {
			return types.TeamInvitation{}, store.ErrInvitationNotFound
		},
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/join", JoinPreview)

	w := doJSON(t, r, http.MethodGet, "/team/join?code=nope", nil)

	assertStatus(t, w, http.StatusNotFound)
	if code := errorCode(t, w); code != types.CodeInvitationNotFound {
		t.Errorf("error code = %q, expected %q", code, types.CodeInvitationNotFound)
	}
}

func TestJoinAccept(t *testing.T) {
	resetDeps()
	inv := pendingInvitation()
	profiles := &fakeProfileStore{}
	seats := &fakeSeatSyncer{}
	Profiles = profiles
	Seats = seats
	Teams = &fakeTeamStore{
		invitationByCode: func(context.Context, string) (types.TeamInvitation, error) {
			return inv, nil
		},
		acceptInvitation: func(_ context.Context, got types.TeamInvitation, userID string, _ time.Time) (types.TeamMember, error) {
			if got.ID != inv.ID || userID != testPrincipal.UserID {
				t.Errorf("accept called with inv %q user %q", got.ID, userID)
			}
			return types.TeamMember{TeamID: got.TeamID, UserID: userID, Role: got.Role}, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/team/join", JoinAccept)

	w := doJSON(t, r, http.MethodPost, "/team/join", map[string]interface{}{"code": "join-code-1"})

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["success"] != true || body["teamId"] != "team-1" {
		t.Errorf("body = %v, expected success for team-1", body)
	}
	member := body["member"].(map[string]interface{})
	if member["user_id"] != testPrincipal.UserID || member["role"] != "member" {
		t.Errorf("member = %v, expected the caller at the invited role", member)
	}
	if got := seats.synced(); len(got) != 1 || got[0] != "team-1" {
		t.Errorf("seat sync calls = %v, expected [team-1]", got)
	}
	if len(profiles.upserted) != 1 || profiles.upserted[0].Email != testPrincipal.Email {
		t.Errorf("profile upserts = %v, expected the caller's email cached", profiles.upserted)
	}
}

func TestJoinAccept_AlreadyMemberIncludesRole(t *testing.T) {
	resetDeps()
	inv := pendingInvitation()
	Teams = &fakeTeamStore{
		invitationByCode: func(context.Context, string) (types.TeamInvitation, error) {
			return inv, nil
		},
		acceptInvitation: func(context.Context, types.TeamInvitation, string, time.Time) (types.TeamMember, error) {
			return types.TeamMember{}, store.ErrAlreadyMember
		},
		memberRole: func(context.Context, string, string) (types.TeamRole, bool, error) {
			return types.RoleAdmin, true, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/team/join", JoinAccept)

	w := doJSON(t, r, http.MethodPost, "/team/join", map[string]interface{}{"code": "join-code-1"})

	assertStatus(t, w, http.StatusConflict)
	body := decodeJSON(t, w)
	env := body["error"].(map[string]interface{})
	if env["code"] != types.CodeAlreadyMember {
		t.Errorf("error code = %v, expected %q", env["code"], types.CodeAlreadyMember)
	}
	// The duplicate-join response tells the caller what they already are.
	if body["role"] != "admin" {
		t.Errorf("role = %v, expected the existing admin role", body["role"])
	}
}

func TestJoinAccept_SeatSyncFailureDoesNotFailJoin(t *testing.T) {
	resetDeps()
	inv := pendingInvitation()
	Seats = &fakeSeatSyncer{err: context.DeadlineExceeded}
	Teams = &fakeTeamStore{
		invitationByCode: func(context.Context, string) (types.TeamInvitation, error) {
			return inv, nil
		},
		acceptInvitation: func(_ context.Context, got types.TeamInvitation, userID string, _ time.Time) (types.TeamMember, error) {
			return types.TeamMember{TeamID: got.TeamID, UserID: userID, Role: got.Role}, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/team/join", JoinAccept)

	w := doJSON(t, r, http.MethodPost, "/team/join", map[string]interface{}{"code": "join-code-1"})

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["success"] != true {
		t.Errorf("body = %v, billing trouble must not block a committed join", body)
	}
}
