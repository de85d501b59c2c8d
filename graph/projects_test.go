package graph

import "testing"

func TestNamespaceFor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "Ginko", "ginko"},
		{"spaces become hyphens", "My Project", "my-project"},
		{"punctuation collapses", "v2.0 API (beta)", "v2-0-api-beta"},
		{"runs of separators collapse", "a  --  b", "a-b"},
		{"leading and trailing stripped", "  !!Weird Name!!  ", "weird-name"},
		{"digits kept", "sprint 2025", "sprint-2025"},
		{"nothing usable falls back", "!!!", "project"},
		{"empty falls back", "", "project"},
		{"non-ascii stripped", "日本語", "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NamespaceFor(tt.input); got != tt.expected {
				t.Errorf("NamespaceFor(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
