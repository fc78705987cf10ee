package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ocrGlyphFixes maps glyphs the OCR engine commonly confuses with plate characters.
var ocrGlyphFixes = map[rune]rune{
	'¢': 'C',
	'£': 'E',
	'|': 'I',
	'/': '1',
}

// NormalizePlate cleans raw OCR text into an alphanumeric plate string.
// Spaces and hyphens are dropped, known glyph confusions are corrected,
// and anything that is still not a letter or digit is discarded.
// No plate grammar is enforced.
func NormalizePlate(raw string) string {
	if raw == "" {
		return ""
	}

	// Full case mapping: "ß" becomes "SS", ligatures split into letters.
	upper := cases.Upper(language.Und).String(raw)

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if r == ' ' || r == '-' {
			continue
		}
		if fixed, ok := ocrGlyphFixes[r]; ok {
			r = fixed
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchesPlateGrammar reports whether a normalized plate fits pattern.
// A nil pattern accepts everything.
func MatchesPlateGrammar(plate string, pattern *regexp.Regexp) bool {
	if pattern == nil {
		return true
	}
	return pattern.MatchString(plate)
}
