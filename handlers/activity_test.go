package handlers

import (
	"context"
	"net/http"
	"testing"

	"ginko-backend/graph"
	"ginko-backend/store"
	"ginko-backend/types"
)

func TestUserActivity(t *testing.T) {
	resetDeps()
	Access = openGate()
	activity := &fakeActivityService{}
	Activity = activity
	r := routeWith(testPrincipal, http.MethodPost, "/user/activity", UserActivity)

	w := doJSON(t, r, http.MethodPost, "/user/activity", map[string]interface{}{
		"graphId":      "g1",
		"activityType": "task_start",
	})

	assertStatus(t, w, http.StatusOK)
	if len(activity.activities) != 1 || activity.activities[0].Activity != types.ActivityTaskStart {
		t.Errorf("recorded = %v, expected one task_start row", activity.activities)
	}
	if activity.activities[0].UserID != testPrincipal.UserID {
		t.Errorf("row user = %q, activity always belongs to the caller", activity.activities[0].UserID)
	}
	body := decodeJSON(t, w)
	row := body["activity"].(map[string]interface{})
	if row["graphId"] != "g1" {
		t.Errorf("activity = %v, expected the g1 row", row)
	}
}

func TestUserActivity_UnknownType(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPost, "/user/activity", UserActivity)

	w := doJSON(t, r, http.MethodPost, "/user/activity", map[string]interface{}{
		"graphId":      "g1",
		"activityType": "doomscrolling",
	})

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeInvalidActivityType {
		t.Errorf("error code = %q, expected %q", code, types.CodeInvalidActivityType)
	}
}

func TestTeamActivity_RequiresTeamID(t *testing.T) {
	resetDeps()
	Access = openGate()
	Teams = &fakeTeamStore{}
	r := routeWith(testPrincipal, http.MethodGet, "/team/activity", TeamActivity)

	w := doJSON(t, r, http.MethodGet, "/team/activity", nil)

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}

func TestTeamActivity_UnknownTeam(t *testing.T) {
	resetDeps()
	Access = openGate()
	Teams = &fakeTeamStore{
		teamByID: func(context.Context, string) (types.Team, error) {
			return types.Team{}, store.ErrTeamNotFound
		},
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/activity", TeamActivity)

	w := doJSON(t, r, http.MethodGet, "/team/activity?team_id=team-404", nil)

	assertStatus(t, w, http.StatusNotFound)
	if code := errorCode(t, w); code != types.CodeTeamNotFound {
		t.Errorf("error code = %q, expected %q", code, types.CodeTeamNotFound)
	}
}

func TestTeamActivity_PagedQuery(t *testing.T) {
	resetDeps()
	Access = openGate()
	Teams = &fakeTeamStore{
		teamByID: func(_ context.Context, teamID string) (types.Team, error) {
			return types.Team{ID: teamID, Name: "Platform", GraphID: "g1"}, nil
		},
	}
	var got graph.ActivityQuery
	Graphs = &fakeGraphService{
		graphActivity: func(_ context.Context, graphID string, q graph.ActivityQuery) ([]types.Event, bool, error) {
			if graphID != "g1" {
				t.Errorf("activity read from %q, expected the team's graph g1", graphID)
			}
			got = q
			return []types.Event{{ID: "evt_1", GraphID: graphID, Category: types.CategoryGit}}, true, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/activity", TeamActivity)

	w := doJSON(t, r, http.MethodGet, "/team/activity?team_id=team-1&category=git&member_id=user-2&limit=10&offset=20&since=2025-06-15T12:00:00Z", nil)

	assertStatus(t, w, http.StatusOK)
	if got.Category != "git" || got.MemberID != "user-2" || got.Limit != 10 || got.Offset != 20 {
		t.Errorf("query = %+v, expected the filters mapped through", got)
	}
	if got.Since != "2025-06-15T12:00:00.000Z" {
		t.Errorf("since = %q, expected the canonicalized timestamp", got.Since)
	}
	body := decodeJSON(t, w)
	if body["hasMore"] != true || body["limit"] != float64(10) || body["offset"] != float64(20) {
		t.Errorf("body = %v, expected the paging echo", body)
	}
}

func TestTeamActivity_RejectsBadSince(t *testing.T) {
	resetDeps()
	Access = openGate()
	Teams = &fakeTeamStore{
		teamByID: func(_ context.Context, teamID string) (types.Team, error) {
			return types.Team{ID: teamID, GraphID: "g1"}, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodGet, "/team/activity", TeamActivity)

	w := doJSON(t, r, http.MethodGet, "/team/activity?team_id=team-1&since=notatime", nil)

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}
