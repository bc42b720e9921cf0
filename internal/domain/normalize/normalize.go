// Package normalize canonicalizes free text used as lookup and dedupe keys.
//
// Every function is pure and total: empty or whitespace-only input yields
// an empty string.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lowercases s, strips diacritic marks, collapses internal whitespace
// to single spaces and trims it. Used for names and aliases.
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	// A transformer chain carries state, so build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// Handle trims s, lowercases it and strips a single leading "@".
func Handle(s string) string {
	h := strings.ToLower(strings.TrimSpace(s))
	h = strings.TrimPrefix(h, "@")
	return strings.TrimSpace(h)
}

// Slug derives a URL-safe slug: Text, whitespace to "-", drop everything
// outside [a-z0-9-], collapse repeated "-" and trim them from both ends.
func Slug(s string) string {
	t := Text(s)
	if t == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(t))
	lastDash := false
	for _, r := range t {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || unicode.IsSpace(r):
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
