package constants

import (
	"strings"
)

type Category string

const (
	BlackMarketDrop Category = "Black Market Drop"
	ExoticDrop      Category = "Exotic Drop"
	ImportDrop      Category = "Import Drop"
	DeluxeDrop      Category = "Deluxe Drop"
	SpecialDrop     Category = "Special Drop"
	SportDrop       Category = "Sport Drop"
)

// UnknownItem is the sentinel key for anything that fails classification.
const UnknownItem = "Unknown"

// MetadataSeparator splits "<category>:rarity" style section names.
const MetadataSeparator = ":"

// Metadata section suffixes carried alongside a category.
const (
	MetaRarity      = "rarity"
	MetaDisplayName = "display_name"
)

var allCategories = []Category{
	BlackMarketDrop,
	ExoticDrop,
	ImportDrop,
	DeluxeDrop,
	SpecialDrop,
	SportDrop,
}

var categoryOrder = map[Category]int{
	BlackMarketDrop: 0,
	ExoticDrop:      1,
	ImportDrop:      2,
	DeluxeDrop:      3,
	SpecialDrop:     4,
	SportDrop:       5,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IsExpectedCategory reports whether name is exactly one of the six drop categories.
func IsExpectedCategory(name string) bool {
	for _, cat := range allCategories {
		if string(cat) == name {
			return true
		}
	}
	return false
}

// CategoryOrder is the report position of a category; unexpected names sort last.
func CategoryOrder(name string) int {
	if o, ok := categoryOrder[Category(name)]; ok {
		return o
	}
	return UnknownOrder
}

// IsMetadataSection reports whether a section name is a "<category>:<kind>" annotation.
func IsMetadataSection(name string) bool {
	return strings.Contains(name, MetadataSeparator)
}

// MetadataSection builds the section name for a category annotation.
func MetadataSection(category, kind string) string {
	return category + MetadataSeparator + kind
}

// Canonicalize maps loosely typed operator input ("exotic", "bm drop") to a
// drop category.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.Join(strings.Fields(strings.ToLower(input)), " ")

	synonyms := map[string]Category{
		"bm":               BlackMarketDrop,
		"bm drop":          BlackMarketDrop,
		"black market":     BlackMarketDrop,
		"blackmarket":      BlackMarketDrop,
		"blackmarket drop": BlackMarketDrop,
		"exotic":           ExoticDrop,
		"import":           ImportDrop,
		"deluxe":           DeluxeDrop,
		"special":          SpecialDrop,
		"sport":            SportDrop,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return "", false
}
