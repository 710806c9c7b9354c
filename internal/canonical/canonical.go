package canonical

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hetulpatel/sportsarb/internal/hashutil"
)

const questionSep = " vs "

// Lookup resolves a venue label to its canonical name for the sport.
func Lookup(raw string, sport Sport) (string, bool) {
	name, ok := table(sport)[strings.TrimSpace(raw)]
	return name, ok
}

// Canonicalize resolves a venue label, returning raw unchanged when the
// table has no entry for it.
func Canonicalize(raw string, sport Sport) string {
	if name, ok := Lookup(raw, sport); ok {
		return name
	}
	return raw
}

// BuildQuestion renders two canonical names as "A vs B" in lexicographic order.
func BuildQuestion(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return names[0] + questionSep + names[1]
}

// SplitQuestion is the inverse of BuildQuestion.
func SplitQuestion(q string) (string, string, bool) {
	parts := strings.Split(q, questionSep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// BuildMatchKey derives the cross-venue join key from a question and an
// event date (YYYY-MM-DD). Names are hashed with their spaces removed.
func BuildMatchKey(question, date string) string {
	a, b, ok := SplitQuestion(question)
	if !ok {
		return hashutil.Concat(question, date)
	}
	if b < a {
		a, b = b, a
	}
	return hashutil.Concat(strings.ReplaceAll(a, " ", ""), strings.ReplaceAll(b, " ", ""), date)
}

var vsPattern = regexp.MustCompile(`(?i)\s+vs\.?\s+`)

// ParseMatchup extracts the two sides of a venue market title such as
// "Lakers vs. Celtics" or "Counter-Strike: Vitality vs MOUZ (BO3)".
func ParseMatchup(title string) (string, string, bool) {
	t := strings.TrimSpace(title)
	if idx := strings.Index(t, ": "); idx >= 0 {
		t = t[idx+2:]
	}
	if idx := strings.LastIndex(t, " ("); idx > 0 && strings.HasSuffix(t, ")") {
		t = t[:idx]
	}

	parts := vsPattern.Split(t, -1)
	if len(parts) != 2 {
		// Compact titles like "TrailBlazersvs.Lakers".
		parts = strings.Split(strings.ReplaceAll(t, " ", ""), "vs.")
	}
	if len(parts) != 2 {
		return "", "", false
	}
	a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}
