package sanitizer

import (
	"reflect"
	"testing"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
		{"leading and trailing", "  algebra  ", "algebra"},
		{"internal runs", "bring   the\t\tworksheet", "bring the worksheet"},
		{"newlines", "line one\n\nline two", "line one line two"},
		{"unicode", "  משוואות   ריבועיות ", "משוואות ריבועיות"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.expected {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if again := TrimAndNormalize(got); again != got {
				t.Errorf("not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestNormalizeWeekday(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"monday":    "Monday",
		"MONDAY":    "Monday",
		"  friDay ": "Friday",
		"Wednesday": "Wednesday",
	}
	for input, want := range tests {
		if got := NormalizeWeekday(input); got != want {
			t.Errorf("NormalizeWeekday(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeEnum(t *testing.T) {
	if got := NormalizeEnum(" weekly "); got != "WEEKLY" {
		t.Errorf("expected WEEKLY, got %q", got)
	}
}

func TestNormalizeTimeZone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{" Europe/Berlin ", "Europe/Berlin"},
		{"America//New__York", "America/New_York"},
		{"/UTC/", "UTC"},
		{"Etc/GMT+3", "Etc/GMT+3"},
		{"Not a zone!", "Not a zone!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeTimeZone(tt.input); got != tt.expected {
				t.Errorf("NormalizeTimeZone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeSlice(t *testing.T) {
	got := SanitizeSlice([]string{" a ", "", "b", "a", "  "}, NormalizeIdentifier)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
