package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify derives the on-disk document name for a board title:
// Unicode NFKD, ASCII-lossy fold, non-alphanumeric runs collapsed to a
// single '-', trimmed, lowercased. An empty result falls back to
// "board".
func Slugify(value string) string {
	decomposed := norm.NFKD.String(value)

	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) || r > unicode.MaxASCII {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "board"
	}
	return slug
}
