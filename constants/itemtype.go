package constants

import (
	"sort"
	"strings"
)

var typeOrder = map[string]int{
	"Animated Decal": 0,
	"Antenna":        1,
	"Body":           2,
	"Decal":          3,
	"Goal Explosion": 4,
	"Paint Finish":   5,
	"Player Banner":  6,
	"Rocket Boost":   7,
	"Topper":         8,
	"Trail":          9,
	"Wheels":         10,
}

// itemTypes is sorted longest first so "Animated Decal" is tried before "Decal".
var itemTypes = func() []string {
	out := make([]string, 0, len(typeOrder))
	for t := range typeOrder {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return typeOrder[out[i]] < typeOrder[out[j]]
	})
	return out
}()

// ItemTypes returns the known type vocabulary in sort order.
func ItemTypes() []string {
	out := make([]string, 0, len(typeOrder))
	for t := range typeOrder {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return typeOrder[out[i]] < typeOrder[out[j]] })
	return out
}

// ExtractType returns the known type that name ends with, or name itself
// when no type matches.
func ExtractType(name string) string {
	for _, t := range itemTypes {
		if strings.HasSuffix(name, t) {
			return t
		}
	}
	return name
}

func TypeOrder(itemType string) int {
	if o, ok := typeOrder[itemType]; ok {
		return o
	}
	return UnknownOrder
}

func IsKnownType(itemType string) bool {
	_, ok := typeOrder[itemType]
	return ok
}
