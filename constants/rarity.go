package constants

import "strings"

// Rarity is the tier label shared by items and drop categories.
type Rarity string

// Declaration order matters: RarityFromString probes members in this order.
const (
	RaritySport       Rarity = "Sport"
	RaritySpecial     Rarity = "Special"
	RarityDeluxe      Rarity = "Deluxe"
	RarityImport      Rarity = "Import"
	RarityExotic      Rarity = "Exotic"
	RarityBlackMarket Rarity = "Black Market"
	RarityUnknown     Rarity = "Unknown"
)

// UnknownOrder sorts unrecognised rarities and item types after everything else.
const UnknownOrder = 999

var allRarities = []Rarity{
	RaritySport,
	RaritySpecial,
	RarityDeluxe,
	RarityImport,
	RarityExotic,
	RarityBlackMarket,
	RarityUnknown,
}

var rarityOrder = map[Rarity]int{
	RarityBlackMarket: 0,
	RarityExotic:      1,
	RarityImport:      2,
	RarityDeluxe:      3,
	RaritySpecial:     4,
	RaritySport:       5,
	RarityUnknown:     6,
}

// Rarities returns every rarity in declaration order.
func Rarities() []Rarity {
	out := make([]Rarity, len(allRarities))
	copy(out, allRarities)
	return out
}

// Order is the sort position of r; rarer tiers come first.
func (r Rarity) Order() int {
	if o, ok := rarityOrder[r]; ok {
		return o
	}
	return UnknownOrder
}

// RarityFromString classifies free text by space- and case-insensitive
// substring containment. The first member in declaration order wins, so a
// text containing several rarity names resolves to the earliest declared one.
func RarityFromString(text string) Rarity {
	needle := squash(text)
	for _, r := range allRarities {
		if strings.Contains(needle, squash(string(r))) {
			return r
		}
	}
	return RarityUnknown
}

// ParseRarity is an exact match on the display value, as written in
// "<category>:rarity" metadata sections.
func ParseRarity(value string) (Rarity, bool) {
	for _, r := range allRarities {
		if string(r) == value {
			return r, true
		}
	}
	return "", false
}

// RarityKeyword maps a lowercase prefix seen in OCR text to a rarity name.
type RarityKeyword struct {
	Keyword string
	Name    string
}

// RarityKeywords lists the prefixes recognised when splitting item text.
// "Base" is not a Rarity member; it only appears as a prefix.
var RarityKeywords = []RarityKeyword{
	{Keyword: "base", Name: "Base"},
	{Keyword: "sport", Name: string(RaritySport)},
	{Keyword: "special", Name: string(RaritySpecial)},
	{Keyword: "deluxe", Name: string(RarityDeluxe)},
	{Keyword: "import", Name: string(RarityImport)},
	{Keyword: "exotic", Name: string(RarityExotic)},
	{Keyword: "black market", Name: string(RarityBlackMarket)},
	{Keyword: "blackmarket", Name: string(RarityBlackMarket)},
}

// LookupRarityKeyword returns the rarity name for an exact lowercase keyword.
func LookupRarityKeyword(keyword string) (string, bool) {
	for _, k := range RarityKeywords {
		if k.Keyword == keyword {
			return k.Name, true
		}
	}
	return "", false
}

func squash(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}
