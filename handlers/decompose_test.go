package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"ginko-backend/types"
)

func TestParseTaskSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
		wantErr  bool
		reason   string
	}{
		{
			name:     "clean array",
			raw:      `[{"title":"Add gate","description":"wire it"},{"title":"Test gate"}]`,
			expected: 2,
			reason:   "the happy path is a bare JSON array",
		},
		{
			name:     "fenced array",
			raw:      "```json\n[{\"title\":\"Add gate\"}]\n```",
			expected: 1,
			reason:   "models fence output despite instructions",
		},
		{
			name:     "prose around the array",
			raw:      `Here is the breakdown: [{"title":"Add gate"}] Let me know if you need more.`,
			expected: 1,
			reason:   "leading and trailing prose is tolerated",
		},
		{
			name:     "blank titles dropped",
			raw:      `[{"title":"Add gate"},{"title":"   "},{"title":""}]`,
			expected: 1,
			reason:   "a task without a title is unusable",
		},
		{
			name:    "no array at all",
			raw:     "I cannot break this epic down.",
			wantErr: true,
			reason:  "refusals have no JSON array",
		},
		{
			name:    "malformed json",
			raw:     `[{"title": "unterminated]`,
			wantErr: true,
			reason:  "broken JSON must not produce partial suggestions",
		},
		{
			name:    "all titles blank",
			raw:     `[{"title":""},{"title":" "}]`,
			wantErr: true,
			reason:  "an array of unusable tasks is an error, not an empty success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTaskSuggestions(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTaskSuggestions(%q) = %v, expected an error (reason: %s)", tt.raw, got, tt.reason)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTaskSuggestions(%q) returned error %v (reason: %s)", tt.raw, err, tt.reason)
			}
			if len(got) != tt.expected {
				t.Errorf("parseTaskSuggestions(%q) = %d tasks, expected %d (reason: %s)", tt.raw, len(got), tt.expected, tt.reason)
			}
		})
	}
}

func TestDecomposeEpic_NoProvider(t *testing.T) {
	resetDeps()
	Access = openGate()
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{
		"graphId": "g1",
		"title":   "Auth overhaul",
	})

	assertStatus(t, w, http.StatusServiceUnavailable)
	if code := errorCode(t, w); code != types.CodeAIServiceNotConfigured {
		t.Errorf("error code = %q, expected %q", code, types.CodeAIServiceNotConfigured)
	}
}

func TestDecomposeEpic_RequiresTitleOrEpic(t *testing.T) {
	resetDeps()
	Access = openGate()
	AI = &fakeCompleter{}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{"graphId": "g1"})

	assertStatus(t, w, http.StatusBadRequest)
	if code := errorCode(t, w); code != types.CodeMissingField {
		t.Errorf("error code = %q, expected %q", code, types.CodeMissingField)
	}
}

func TestDecomposeEpic_Success(t *testing.T) {
	resetDeps()
	Access = openGate()
	var prompt string
	AI = &fakeCompleter{
		complete: func(_ context.Context, p string) (string, error) {
			prompt = p
			return `[{"title":"Design schema","estimate":"day"},{"title":"Write migration"},{"title":"Cut over reads"}]`, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{
		"graphId": "g1",
		"title":   "Move sessions to the graph",
		"content": "All session state moves into Neo4j.",
	})

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["count"] != float64(3) {
		t.Errorf("count = %v, expected 3", body["count"])
	}
	if body["model"] != decomposeModel {
		t.Errorf("model = %v, expected %q", body["model"], decomposeModel)
	}
	suggestions := body["suggestions"].([]interface{})
	first := suggestions[0].(map[string]interface{})
	if first["title"] != "Design schema" || first["estimate"] != "day" {
		t.Errorf("first suggestion = %v, expected the model's first task", first)
	}
	if !strings.Contains(prompt, "Move sessions to the graph") {
		t.Error("prompt does not carry the epic title")
	}
	if !strings.Contains(prompt, "All session state moves into Neo4j.") {
		t.Error("prompt does not carry the epic description")
	}
}

func TestDecomposeEpic_TruncatesToMaxTasks(t *testing.T) {
	resetDeps()
	Access = openGate()
	AI = &fakeCompleter{
		complete: func(context.Context, string) (string, error) {
			return `[{"title":"t1"},{"title":"t2"},{"title":"t3"},{"title":"t4"},{"title":"t5"}]`, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{
		"graphId":  "g1",
		"title":    "Big epic",
		"maxTasks": 2,
	})

	assertStatus(t, w, http.StatusOK)
	body := decodeJSON(t, w)
	if body["count"] != float64(2) {
		t.Errorf("count = %v, expected the cap of 2", body["count"])
	}
}

func TestDecomposeEpic_FillsFromStoredEpic(t *testing.T) {
	resetDeps()
	Access = openGate()
	Epics = &fakeEpicService{
		epicByID: func(_ context.Context, _, epicID string) (types.Epic, error) {
			if epicID != "EPIC-007" {
				t.Errorf("lookup used %q, expected the normalized EPIC-007", epicID)
			}
			return types.Epic{ID: epicID, Title: "Stored title", Content: "Stored content"}, nil
		},
	}
	var prompt string
	AI = &fakeCompleter{
		complete: func(_ context.Context, p string) (string, error) {
			prompt = p
			return `[{"title":"t1"}]`, nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{
		"graphId": "g1",
		"epicId":  "epic-7",
	})

	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(prompt, "Stored title") || !strings.Contains(prompt, "Stored content") {
		t.Errorf("prompt %q does not carry the stored epic", prompt)
	}
}

func TestDecomposeEpic_CompletionFailure(t *testing.T) {
	resetDeps()
	Access = openGate()
	AI = &fakeCompleter{
		complete: func(context.Context, string) (string, error) {
			return "", errors.New("rate limited")
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{
		"graphId": "g1",
		"title":   "Auth overhaul",
	})

	assertStatus(t, w, http.StatusServiceUnavailable)
	if code := errorCode(t, w); code != types.CodeAIServiceError {
		t.Errorf("error code = %q, expected %q", code, types.CodeAIServiceError)
	}
}

func TestDecomposeEpic_MalformedModelOutput(t *testing.T) {
	resetDeps()
	Access = openGate()
	AI = &fakeCompleter{
		complete: func(context.Context, string) (string, error) {
			return "Sorry, I can't help with that.", nil
		},
	}
	r := routeWith(testPrincipal, http.MethodPost, "/epic/decompose", DecomposeEpic)

	w := doJSON(t, r, http.MethodPost, "/epic/decompose", map[string]interface{}{
		"graphId": "g1",
		"title":   "Auth overhaul",
	})

	assertStatus(t, w, http.StatusServiceUnavailable)
	if code := errorCode(t, w); code != types.CodeAIServiceError {
		t.Errorf("error code = %q, expected %q", code, types.CodeAIServiceError)
	}
}
