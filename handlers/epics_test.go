package handlers

import (
	"context"
	"net/http"
	"testing"

	"ginko-backend/graph"
	"ginko-backend/types"
)

func TestCheckEpicID_RequiresParams(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPost, "/epic/check", CheckEpicID)

	w := doJSON(t, r, http.MethodPost, "/epic/check?graphId=g1", nil)

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}

func TestCheckEpicID_NormalizesBeforeLookup(t *testing.T) {
	resetDeps()
	Access = openGate()
	var looked string
	Epics = &fakeEpicService{
		checkEpicID: func(_ context.Context, _, epicID string) (graph.EpicCheck, error) {
			looked = epicID
			return graph.EpicCheck{Exists: true, CreatedBy: "user-2", Title: "Auth overhaul", SuggestedID: "EPIC-008"}, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/check", CheckEpicID)

	w := doJSON(t, r, http.MethodPost, "/epic/check?graphId=g1&id=epic-7", nil)

	assertStatus(t, w, http.StatusOK)
	if looked != "EPIC-007" {
		t.Errorf("lookup used %q, expected the normalized EPIC-007", looked)
	}
	body := decodeJSON(t, w)
	if body["exists"] != true || body["suggestedId"] != "EPIC-008" {
		t.Errorf("body = %v, expected exists=true with a suggested id", body)
	}
}

func TestCheckEpicID_RejectsGarbage(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPost, "/epic/check", CheckEpicID)

	w := doJSON(t, r, http.MethodPost, "/epic/check?graphId=g1&id=EPIC-abc", nil)

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}

func TestCreateEpic_NormalizesSuppliedID(t *testing.T) {
	resetDeps()
	Access = openGate()
	var created types.Epic
	Epics = &fakeEpicService{
		createEpic: func(_ context.Context, epic types.Epic) (types.Epic, error) {
			created = epic
			return epic, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic", CreateEpic)

	w := doJSON(t, r, http.MethodPost, "/epic", map[string]interface{}{
		"graphId": "g1",
		"id":      "epic-4",
		"title":   "Graph migrations",
		"content": "## Plan",
	})

	assertStatus(t, w, http.StatusCreated)
	if created.ID != "EPIC-004" {
		t.Errorf("stored id = %q, expected EPIC-004", created.ID)
	}
	if created.Status != types.EpicDraft {
		t.Errorf("stored status = %q, new epics start at draft", created.Status)
	}
	if created.CreatedBy != testPrincipal.UserID {
		t.Errorf("createdBy = %q, expected the caller", created.CreatedBy)
	}
}

func TestCreateEpic_OmittedIDIsAssigned(t *testing.T) {
	resetDeps()
	Access = openGate()
	Epics = &fakeEpicService{
		createEpic: func(_ context.Context, epic types.Epic) (types.Epic, error) {
			if epic.ID != "" {
				t.Errorf("handler sent id %q, expected empty so the graph assigns one", epic.ID)
			}
			epic.ID = "EPIC-009"
			return epic, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic", CreateEpic)

	w := doJSON(t, r, http.MethodPost, "/epic", map[string]interface{}{
		"graphId": "g1",
		"title":   "Next epic",
	})

	assertStatus(t, w, http.StatusCreated)
	body := decodeJSON(t, w)
	epic := body["epic"].(map[string]interface{})
	if epic["id"] != "EPIC-009" {
		t.Errorf("epic id = %v, expected the graph-assigned EPIC-009", epic["id"])
	}
}

func TestCreateEpic_IDConflict(t *testing.T) {
	resetDeps()
	Access = openGate()
	Epics = &fakeEpicService{
		createEpic: func(context.Context, types.Epic) (types.Epic, error) {
			return types.Epic{}, graph.ErrEpicIDConflict
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic", CreateEpic)

	w := doJSON(t, r, http.MethodPost, "/epic", map[string]interface{}{
		"graphId": "g1",
		"id":      "EPIC-004",
		"title":   "Duplicate",
	})

	assertStatus(t, w, http.StatusConflict)
	if code := errorCode(t, w); code != types.CodeEpicIDConflict {
		t.Errorf("error code = %q, expected %q", code, types.CodeEpicIDConflict)
	}
}

func TestUpdateEpicStatus_InvalidStatus(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPatch, "/epic/:id/status", UpdateEpicStatus)

	w := doJSON(t, r, http.MethodPatch, "/epic/EPIC-004/status", map[string]interface{}{
		"graphId": "g1",
		"status":  "shipping",
	})

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeInvalidStatus {
		t.Errorf("error code = %q, expected %q", code, types.CodeInvalidStatus)
	}
}

func TestUpdateEpicStatus_TransitionEmits(t *testing.T) {
	resetDeps()
	Access = openGate()
	activity := &fakeActivityService{}
	Activity = activity
	Epics = &fakeEpicService{
		updateEpicStatus: func(_ context.Context, graphID, epicID string, status types.EpicStatus, userID, now string) (types.Epic, types.EpicStatus, bool, error) {
			return types.Epic{ID: epicID, GraphID: graphID, Status: status}, types.EpicDraft, true, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPatch, "/epic/:id/status", UpdateEpicStatus)

	w := doJSON(t, r, http.MethodPatch, "/epic/epic-7/status", map[string]interface{}{
		"graphId": "g1",
		"status":  "active",
	})

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["changed"] != true || body["previousStatus"] != "draft" {
		t.Errorf("body = %v, expected changed=true previousStatus=draft", body)
	}

	changes := activity.recordedChanges()
	if len(changes) != 1 {
		t.Fatalf("recorded %d status changes, expected 1", len(changes))
	}
	if changes[0].EntityType != "epic" || changes[0].EntityID != "EPIC-007" {
		t.Errorf("emitted change = %+v, expected epic EPIC-007", changes[0])
	}
}

func TestUpdateEpicStatus_BadPathID(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPatch, "/epic/:id/status", UpdateEpicStatus)

	w := doJSON(t, r, http.MethodPatch, "/epic/not-an-epic/status", map[string]interface{}{
		"graphId": "g1",
		"status":  "active",
	})

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}

func TestCreateSprint_NormalizesEpicID(t *testing.T) {
	resetDeps()
	Access = openGate()
	var created types.Sprint
	Epics = &fakeEpicService{
		createSprint: func(_ context.Context, sprint types.Sprint) (types.Sprint, error) {
			created = sprint
			sprint.ID = "SPRINT-2025-26"
			return sprint, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/sprint", CreateSprint)

	w := doJSON(t, r, http.MethodPost, "/sprint", map[string]interface{}{
		"graphId": "g1",
		"epicId":  "7",
		"title":   "Hardening week",
	})

	assertStatus(t, w, http.StatusCreated)
	if created.EpicID != "EPIC-007" {
		t.Errorf("sprint parent = %q, expected the normalized EPIC-007", created.EpicID)
	}
	if created.Status != types.SprintPlanned {
		t.Errorf("stored status = %q, new sprints start at planned", created.Status)
	}
	body := decodeJSON(t, w)
	sprint := body["sprint"].(map[string]interface{})
	if sprint["id"] != "SPRINT-2025-26" {
		t.Errorf("sprint id = %v, expected the assigned id", sprint["id"])
	}
}

func TestCreateSprint_RejectsBadEpicID(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPost, "/sprint", CreateSprint)

	w := doJSON(t, r, http.MethodPost, "/sprint", map[string]interface{}{
		"graphId": "g1",
		"epicId":  "EPIC-",
		"title":   "Orphan sprint",
	})

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}

func TestUpdateSprintStatus_InvalidStatus(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPatch, "/sprint/:id/status", UpdateSprintStatus)

	w := doJSON(t, r, http.MethodPatch, "/sprint/SPRINT-2025-26/status", map[string]interface{}{
		"graphId": "g1",
		"status":  "running",
	})

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeInvalidStatus {
		t.Errorf("error code = %q, expected %q", code, types.CodeInvalidStatus)
	}
}

func TestUpdateSprintStatus_TransitionEmits(t *testing.T) {
	resetDeps()
	Access = openGate()
	activity := &fakeActivityService{}
	Activity = activity
	Epics = &fakeEpicService{
		updateSprintStatus: func(_ context.Context, graphID, sprintID string, status types.SprintStatus, userID, now string) (types.Sprint, types.SprintStatus, bool, error) {
			return types.Sprint{ID: sprintID, GraphID: graphID, Status: status}, types.SprintPlanned, true, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPatch, "/sprint/:id/status", UpdateSprintStatus)

	w := doJSON(t, r, http.MethodPatch, "/sprint/SPRINT-2025-26/status", map[string]interface{}{
		"graphId": "g1",
		"status":  "active",
	})

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["changed"] != true || body["previousStatus"] != "planned" {
		t.Errorf("body = %v, expected changed=true previousStatus=planned", body)
	}

	changes := activity.recordedChanges()
	if len(changes) != 1 || changes[0].EntityType != "sprint" || changes[0].EntityID != "SPRINT-2025-26" {
		t.Errorf("changes = %+v, expected one sprint transition", changes)
	}
}
