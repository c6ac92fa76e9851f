// Package stats computes per-category rarity probabilities from a tally.
package stats

import (
	"sort"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
)

// RarityProbability is the share of a category's openings that landed on one rarity.
type RarityProbability struct {
	Rarity      constants.Rarity `json:"rarity"`
	Count       int              `json:"count"`
	Probability float64          `json:"probability"`
}

// Probabilities groups the items of cs by rarity (inferred from the item
// name) and divides each group by the category total. The result is ordered
// rarest first and only lists rarities with a nonzero count. Items stored
// under the "Unknown" key land in the Unknown bucket, so the values always
// sum to 1. A category with no openings yields nil.
func Probabilities(cs entity.CategoryStats) []RarityProbability {
	total := cs.Total()
	if total <= 0 {
		return nil
	}

	counts := make(map[constants.Rarity]int)
	for _, it := range cs.Items {
		if it.Count <= 0 {
			continue
		}
		counts[constants.RarityFromString(it.Name)] += it.Count
	}

	out := make([]RarityProbability, 0, len(counts))
	for r, n := range counts {
		out = append(out, RarityProbability{
			Rarity:      r,
			Count:       n,
			Probability: float64(n) / float64(total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rarity.Order() < out[j].Rarity.Order() })
	return out
}

// Calculate maps every category with at least one opening to its
// probabilities. Empty categories are omitted rather than zero-filled.
func Calculate(tally []entity.CategoryStats) map[string][]RarityProbability {
	out := make(map[string][]RarityProbability, len(tally))
	for _, cs := range tally {
		if p := Probabilities(cs); p != nil {
			out[cs.Name] = p
		}
	}
	return out
}

// CategoryReport is one printable block of the probability report.
type CategoryReport struct {
	Category string              `json:"category"`
	Total    int                 `json:"total"`
	Rarities []RarityProbability `json:"rarities"`
}

// Report orders the non-empty categories of tally the way they are printed:
// the six drop categories rarest first, anything else after them in file
// order.
func Report(tally []entity.CategoryStats) []CategoryReport {
	var out []CategoryReport
	for _, cs := range tally {
		p := Probabilities(cs)
		if p == nil {
			continue
		}
		out = append(out, CategoryReport{Category: cs.Name, Total: cs.Total(), Rarities: p})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return constants.CategoryOrder(out[i].Category) < constants.CategoryOrder(out[j].Category)
	})
	return out
}
