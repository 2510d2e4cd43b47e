package parser

import (
	"regexp"
	"strings"
)

var (
	zeroWidth    = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
	colonSpacing = regexp.MustCompile(`\s*:\s*`)
)

// Normalize collapses every whitespace variant (non-breaking spaces, line
// breaks, tabs) to single spaces, strips zero-width characters, and rewrites
// colons as ": ".
func Normalize(raw string) string {
	s := zeroWidth.Replace(raw)
	s = strings.Join(strings.Fields(s), " ")
	s = colonSpacing.ReplaceAllString(s, ": ")
	return strings.TrimSpace(s)
}

// NormalizePerson trims the person token and collapses any mention of EMPTY
// to the open-slot sentinel.
func NormalizePerson(person string) string {
	person = strings.TrimSpace(person)
	if strings.Contains(strings.ToUpper(person), "EMPTY") {
		return "EMPTY"
	}
	return person
}
