package utils

import (
	"regexp"
	"testing"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"hyphen", "ABC-123", "ABC123"},
		{"lowercase and spaces", " abc 123 ", "ABC123"},
		{"substitutions before filter", "A|0/1", "AI011"},
		{"currency glyphs", "¢£-12", "CE12"},
		{"punctuation dropped", "P.B:C*1-2_3", "PBC123"},
		{"only noise", " - . , ", ""},
		{"accented letters kept", "ñu-12", "ÑU12"},
		{"sharp s expands", "straße-9", "STRASSE9"},
		{"ligature expands", "ﬁ-12", "FI12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePlate(tt.in); got != tt.want {
				t.Fatalf("NormalizePlate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePlate_Idempotent(t *testing.T) {
	inputs := []string{"", "ABC-123", "a|b/c", "¢£|/", "  x-y z ", "GTR 5-55 ÷", "ǆ12", "ß-9"}
	for _, in := range inputs {
		once := NormalizePlate(in)
		if twice := NormalizePlate(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestMatchesPlateGrammar(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]{3}[0-9]{3,4}$`)

	if !MatchesPlateGrammar("PBC1234", pattern) {
		t.Fatal("expected PBC1234 to match")
	}
	if MatchesPlateGrammar("1234PBC", pattern) {
		t.Fatal("expected 1234PBC not to match")
	}
	if !MatchesPlateGrammar("anything", nil) {
		t.Fatal("nil pattern should accept everything")
	}
}
