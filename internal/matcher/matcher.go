// Package matcher resolves normalized OCR text to an item key that already
// exists in the tally.
package matcher

import (
	"log/slog"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
)

// DefaultThreshold is the minimum similarity a fuzzy candidate must exceed.
const DefaultThreshold = 0.6

// Match is a resolved item.
type Match struct {
	Key      string
	Category string
	Score    float64
	Exact    bool
}

type Matcher struct {
	threshold float64
	params    *levenshtein.Params
	logger    *slog.Logger
}

// New returns a matcher accepting candidates scoring strictly above threshold.
// A non-positive threshold selects DefaultThreshold.
func New(threshold float64, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold, params: levenshtein.NewParams(), logger: logger}
}

func (m *Matcher) Threshold() float64 { return m.threshold }

type candidate struct {
	canonical string
	key       string
	category  string
}

// Match looks text up among the items in known. An exact match on the
// canonical form wins outright. Otherwise the best edit-distance similarity
// is used, comparing only the type part when text starts with a rarity.
// Items never seen before cannot match.
func (m *Matcher) Match(text string, known entity.Tally) (Match, bool) {
	if strings.TrimSpace(text) == "" {
		return Match{}, false
	}
	candidates, index := buildIndex(known)

	if i, ok := index[Canonical(text)]; ok {
		c := candidates[i]
		m.logger.Debug("matcher.exact", "text", text, "key", c.key, "category", c.category)
		return Match{Key: c.key, Category: c.category, Score: 1, Exact: true}, true
	}

	rarity, remainder := SplitRarity(text)
	var (
		best      Match
		bestScore = m.threshold
		found     bool
	)
	for _, c := range candidates {
		var a, b string
		if rarity != "" {
			a = strings.ReplaceAll(remainder, " ", "")
			b = strings.Replace(c.canonical, Canonical(rarity), "", 1)
		} else {
			a = Canonical(text)
			b = c.canonical
		}
		score := levenshtein.Similarity(a, b, m.params)
		if score > bestScore {
			bestScore = score
			best = Match{Key: c.key, Category: c.category, Score: score}
			found = true
		}
	}

	if !found {
		m.logger.Debug("matcher.none", "text", text, "rarity", rarity, "candidates", len(candidates))
		return Match{}, false
	}
	m.logger.Debug("matcher.fuzzy", "text", text, "key", best.Key, "category", best.Category, "score", best.Score)
	return best, true
}

// buildIndex lists known items in store order. A key seen in several
// categories keeps its first position but reports the last category.
func buildIndex(known entity.Tally) ([]candidate, map[string]int) {
	var out []candidate
	index := make(map[string]int)
	for _, cat := range known {
		for _, it := range cat.Items {
			c := candidate{canonical: Canonical(it.Name), key: it.Name, category: cat.Name}
			if i, ok := index[c.canonical]; ok {
				out[i] = c
				continue
			}
			index[c.canonical] = len(out)
			out = append(out, c)
		}
	}
	return out, index
}

// Canonical lower-cases s and removes spaces.
func Canonical(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

// SplitRarity detects a leading rarity keyword and returns its display name
// together with the lower-cased remainder. Two-word keywords are tried
// before one-word keywords; run-together text ("importbody") falls back to
// prefix matching on single-word keywords. When nothing matches the rarity
// is empty and the remainder is the whole lower-cased text.
func SplitRarity(text string) (string, string) {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	if len(words) >= 2 {
		if name, ok := constants.LookupRarityKeyword(words[0] + " " + words[1]); ok {
			return name, strings.Join(words[2:], " ")
		}
	}
	if len(words) >= 1 {
		if name, ok := constants.LookupRarityKeyword(words[0]); ok {
			return name, strings.Join(words[1:], " ")
		}
	}

	for _, k := range constants.RarityKeywords {
		if strings.Contains(k.Keyword, " ") {
			continue
		}
		if strings.HasPrefix(lower, k.Keyword) {
			return k.Name, strings.TrimSpace(lower[len(k.Keyword):])
		}
	}
	return "", lower
}
