package internal

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	ArticleIDMaxLen = 64
	ChunkIDMaxLen   = 96
)

var (
	unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	repeatedDash  = regexp.MustCompile(`-{2,}`)
)

// Sanitize turns an arbitrary string into an index-safe identifier made of
// [a-z0-9_-], at most maxLen bytes long and never empty. Accents are reduced
// to their base letter by NFKD decomposition before non-ASCII is dropped.
func Sanitize(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = ArticleIDMaxLen
	}

	decomposed := norm.NFKD.String(raw)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}

	safe := unsafeIDChars.ReplaceAllString(b.String(), "-")
	safe = repeatedDash.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-")
	safe = strings.ToLower(safe)
	if len(safe) > maxLen {
		safe = safe[:maxLen]
	}
	if safe == "" {
		return "id"
	}
	return safe
}
