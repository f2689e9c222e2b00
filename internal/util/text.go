package util

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// MatchAnyFold returns the first needle contained in text (case-insensitive),
// or "" if none match.
func MatchAnyFold(text string, needles []string) string {
	lt := strings.ToLower(text)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(lt, strings.ToLower(n)) {
			return n
		}
	}
	return ""
}

// WordSet returns the set of distinct lowercase whitespace-separated words.
func WordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// StripHandle removes surrounding space and a single leading @.
func StripHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}
