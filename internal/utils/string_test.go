package utils

import (
	"strings"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"uuid", "3f2a9c1e-0d4b-4c6a-9a51-7e0f8d2b6c11", "3f2a9c1e-0d4b-4c6a-9a51-7e0f8d2b6c11"},
		{"spaces and dots", "my profile.v2", "my_profile_v2"},
		{"underscore kept", "a_b", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeKey(tt.input); got != tt.want {
				t.Errorf("SanitizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeKeyPathTraversal(t *testing.T) {
	for _, input := range []string{"../etc/passwd", "a/b", `a\b`, "..", ""} {
		got := SanitizeKey(input)
		if len(got) != 64 {
			t.Errorf("SanitizeKey(%q) = %q, expected a sha256 hex digest", input, got)
		}
		if strings.ContainsAny(got, `./\`) {
			t.Errorf("SanitizeKey(%q) = %q contains path characters", input, got)
		}
	}
}

func TestIsSafeID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"3f2a9c1e-0d4b-4c6a-9a51-7e0f8d2b6c11", true},
		{"legacy_id", true},
		{"", false},
		{"..", false},
		{"a/b", false},
		{"a b", false},
		{strings.Repeat("a", 129), false},
	}

	for _, tt := range tests {
		if got := IsSafeID(tt.input); got != tt.want {
			t.Errorf("IsSafeID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestContainsAny(t *testing.T) {
	tests := []struct {
		name       string
		s          string
		substrings []string
		want       bool
	}{
		{"case insensitive", "Work Profile", []string{"work"}, true},
		{"second matches", "10.0.0.1", []string{"zzz", "0.0"}, true},
		{"none match", "Home", []string{"work", "office"}, false},
		{"no substrings", "Home", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsAny(tt.s, tt.substrings...); got != tt.want {
				t.Errorf("ContainsAny(%q, %v) = %v, want %v", tt.s, tt.substrings, got, tt.want)
			}
		})
	}
}
