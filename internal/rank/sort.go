package rank

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
)

// ItemKey orders items inside a category.
type ItemKey struct {
	RarityOrder int
	TypeOrder   int
	Length      int
	Lower       string
}

// Less compares keys field by field.
func (k ItemKey) Less(o ItemKey) bool {
	if k.RarityOrder != o.RarityOrder {
		return k.RarityOrder < o.RarityOrder
	}
	if k.TypeOrder != o.TypeOrder {
		return k.TypeOrder < o.TypeOrder
	}
	if k.Length != o.Length {
		return k.Length < o.Length
	}
	return k.Lower < o.Lower
}

// KeyFor builds the ordering key of an item. annotated is the value from the
// category's ":rarity" section; when it is empty or not an exact rarity name
// the rarity is inferred from the item name.
func KeyFor(name, annotated string) ItemKey {
	rarity, ok := constants.ParseRarity(annotated)
	if !ok {
		rarity = constants.RarityFromString(name)
	}
	return ItemKey{
		RarityOrder: rarity.Order(),
		TypeOrder:   constants.TypeOrder(constants.ExtractType(name)),
		Length:      utf8.RuneCountInString(name),
		Lower:       strings.ToLower(name),
	}
}

// CategoryOrder is the position of a category section: the order of the
// rarity its name contains.
func CategoryOrder(name string) int {
	return constants.RarityFromString(name).Order()
}

// Sort returns a new document with categories ordered rarest first and
// items ordered by ItemKey. Each category is followed by its metadata
// sections, copied unchanged. Metadata sections without a parent category
// are dropped. Sort(Sort(d)) equals Sort(d).
func Sort(doc Document) Document {
	var categories []Section
	for _, s := range doc.Sections {
		if !constants.IsMetadataSection(s.Name) {
			categories = append(categories, s)
		}
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return CategoryOrder(categories[i].Name) < CategoryOrder(categories[j].Name)
	})

	out := Document{Sections: make([]Section, 0, len(doc.Sections))}
	for _, cat := range categories {
		raritySection := doc.Section(constants.MetadataSection(cat.Name, constants.MetaRarity))
		displaySection := doc.Section(constants.MetadataSection(cat.Name, constants.MetaDisplayName))

		sorted := cloneSection(cat)
		keys := make(map[string]ItemKey, len(sorted.Entries))
		for _, e := range sorted.Entries {
			annotated := ""
			if raritySection != nil {
				annotated, _ = raritySection.Get(e.Key)
			}
			keys[e.Key] = KeyFor(e.Key, annotated)
		}
		sort.SliceStable(sorted.Entries, func(i, j int) bool {
			return keys[sorted.Entries[i].Key].Less(keys[sorted.Entries[j].Key])
		})
		out.Sections = append(out.Sections, sorted)

		if raritySection != nil {
			out.Sections = append(out.Sections, cloneSection(*raritySection))
		}
		if displaySection != nil {
			out.Sections = append(out.Sections, cloneSection(*displaySection))
		}
	}
	return out
}
