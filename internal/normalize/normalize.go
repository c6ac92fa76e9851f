// Package normalize turns noisy OCR item text into canonical, title-cased
// item names.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
)

// Catalog exposes the names already present in the tally. It is consulted
// when deciding whether a run-together word such as "Deluxetrail" should be
// split. entity.Tally satisfies it.
type Catalog interface {
	HasCategory(name string) bool
	HasItem(key string) bool
}

// space is the whitespace class used by every pattern. RE2's \s is ASCII
// only and leaves out \v, so both are added back along with Unicode spaces.
const space = `\s\v\p{Z}`

var (
	reLeadTrim   = regexp.MustCompile(`^[` + space + `'"]+`)
	reTrailTrim  = regexp.MustCompile(`[` + space + `'"]+$`)
	reLeadDigits = regexp.MustCompile(`^[\d` + space + `]+([a-zA-Z])`)
	reDisallowed = regexp.MustCompile(`[^a-zA-Z0-9` + space + `'&/:]`)
	reLowerUpper = regexp.MustCompile(`([a-z])([A-Z])`)
	reUpperRun   = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	reSpaces     = regexp.MustCompile(`[` + space + `]+`)
)

// Normalize cleans raw OCR text into a canonical item name. catalog may be
// nil, in which case run-together words are never split. Empty input yields
// an empty string. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string, catalog Catalog) string {
	text := clean(raw)
	if text == "" {
		return ""
	}

	text = reLowerUpper.ReplaceAllString(text, "$1 $2")
	text = reUpperRun.ReplaceAllString(text, "$1 $2")

	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if split, ok := splitConcatenated(w, catalog); ok && split != w {
			out = append(out, strings.Fields(split)...)
			continue
		}
		out = append(out, w)
	}
	text = strings.Join(out, " ")
	text = reSpaces.ReplaceAllString(text, " ")

	return Title(strings.TrimSpace(text))
}

// clean trims quotes and whitespace, drops leading digit artifacts and strips
// disallowed characters. Deleting characters can expose new leading or
// trailing junk ("abc' !"), so the steps repeat until nothing changes.
func clean(s string) string {
	for {
		next := reLeadTrim.ReplaceAllString(s, "")
		next = reTrailTrim.ReplaceAllString(next, "")
		next = reLeadDigits.ReplaceAllString(next, "${1}")
		next = reDisallowed.ReplaceAllString(next, "")
		if next == s {
			return next
		}
		s = next
	}
}

// splitConcatenated splits a word that starts with a rarity keyword when the
// resulting phrase is a known category or item.
func splitConcatenated(word string, catalog Catalog) (string, bool) {
	if catalog == nil {
		return "", false
	}
	lower := strings.ToLower(word)
	for _, k := range constants.RarityKeywords {
		if !strings.HasPrefix(lower, k.Keyword) {
			continue
		}
		remainder := word[len(k.Keyword):]
		if remainder == "" {
			continue
		}
		candidate := Title(strings.TrimSpace(k.Keyword + " " + remainder))
		if catalog.HasCategory(candidate) || catalog.HasItem(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Title upper-cases every letter that follows a non-letter and lower-cases
// every letter that follows a letter ("they're" -> "They'Re").
func Title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
