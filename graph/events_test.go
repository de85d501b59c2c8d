package graph

import (
	"strings"
	"testing"
)

func TestMintEventID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := MintEventID()
		if !strings.HasPrefix(id, "evt_") {
			t.Fatalf("MintEventID() = %q, expected evt_ prefix", id)
		}
		if len(id) != len("evt_")+36 {
			t.Fatalf("MintEventID() = %q, expected a UUID suffix", id)
		}
		if seen[id] {
			t.Fatalf("MintEventID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestExtractTaskMentions(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    []string
	}{
		{
			name:        "single mention",
			description: "Fixed the parser crash in TASK-123",
			expected:    []string{"TASK-123"},
		},
		{
			name:        "lowercase normalized",
			description: "task-7 is ready for review",
			expected:    []string{"TASK-7"},
		},
		{
			name:        "duplicates collapse case-insensitively",
			description: "task-7 blocks TASK-7 and Task-7",
			expected:    []string{"TASK-7"},
		},
		{
			name:        "multiple mentions keep order",
			description: "TASK-2 depends on TASK-10, see also TASK-2",
			expected:    []string{"TASK-2", "TASK-10"},
		},
		{
			name:        "punctuation boundaries",
			description: "closed (TASK-5), reopened [TASK-6].",
			expected:    []string{"TASK-5", "TASK-6"},
		},
		{
			name:        "embedded prefixes do not match",
			description: "the subtask-9 label is unrelated",
			expected:    nil,
		},
		{
			name:        "trailing word characters do not match",
			description: "TASK-12x is not an id",
			expected:    nil,
		},
		{
			name:        "no mentions",
			description: "refactored the websocket hub",
			expected:    nil,
		},
		{
			name:        "empty description",
			description: "",
			expected:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTaskMentions(tt.description)
			if len(got) != len(tt.expected) {
				t.Fatalf("ExtractTaskMentions(%q) = %v, expected %v", tt.description, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("ExtractTaskMentions(%q) = %v, expected %v", tt.description, got, tt.expected)
					break
				}
			}
		})
	}
}
