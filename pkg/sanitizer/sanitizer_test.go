package sanitizer

import (
	"slices"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  Ana Lima  ", want: "Ana Lima"},
		{name: "collapse inner whitespace", input: "Ana\t\n   Lima", want: "Ana Lima"},
		{name: "only whitespace", input: "  \t ", want: ""},
		{name: "keeps accents", input: " José Álvarez ", want: "José Álvarez"},
		{name: "drops zero-width and control", input: "Ana\u200b \x00Lima", want: "Ana Lima"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "  Ana@Example.COM ", want: "ana@example.com"},
		{input: "mailto:ana@example.com", want: "ana@example.com"},
		{input: "Ana Lima <Ana@Example.com>", want: "ana@example.com"},
		{input: "not an email", want: "not an email"},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.input); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: " 2024-01-15 ", want: "2024-01-15"},
		{input: "2024/01/15", want: "2024-01-15"},
		{input: "2024.01.15", want: "2024-01-15"},
		{input: "2024/01-15", want: "2024/01-15"},
		{input: "15/01/2024", want: "15/01/2024"},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.input); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Dr Smith", want: "dr-smith"},
		{input: "  room_101 ", want: "room_101"},
		{input: "--chair #3--", want: "chair-3"},
		{input: "dr-smith", want: "dr-smith"},
	}

	for _, tt := range tests {
		got := SanitizeIdentifier(tt.input)
		if got != tt.want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if again := SanitizeIdentifier(got); again != got {
			t.Errorf("not idempotent: %q -> %q", got, again)
		}
	}
}

func TestSanitizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already E.164", input: "+972541234567", want: "+972541234567"},
		{name: "with spaces", input: "+972 54 123 4567", want: "+972541234567"},
		{name: "with punctuation", input: "+1 (212) 555-1234", want: "+12125551234"},
		{name: "empty", input: "   ", want: ""},
		{name: "garbage passes through trimmed", input: " not-a-phone ", want: "not-a-phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePhone(tt.input); got != tt.want {
				t.Errorf("SanitizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeNotes_StripsControlCharacters(t *testing.T) {
	got := SanitizeNotes("  bring\x00 x-rays\n please\x07  ")
	if strings.ContainsAny(got, "\x00\x07") {
		t.Errorf("control characters left in %q", got)
	}
	if got != "bring x-rays\n please" {
		t.Errorf("unexpected notes %q", got)
	}
}

func TestSanitizeSlice(t *testing.T) {
	got := SanitizeSlice([]string{" 2024-01-15", "2024-01-15 ", "", "2024-01-22"}, strings.TrimSpace)
	want := []string{"2024-01-15", "2024-01-22"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
