package entity

// ItemCount is one tallied item inside a category, in file order.
type ItemCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CategoryStats holds the item counts recorded for one drop category.
type CategoryStats struct {
	Name  string      `json:"name"`
	Items []ItemCount `json:"items"`
}

// Total is the number of items recorded in the category.
func (c CategoryStats) Total() int {
	total := 0
	for _, it := range c.Items {
		total += it.Count
	}
	return total
}

// Count returns the stored count for an item key, 0 when absent.
func (c CategoryStats) Count(name string) int {
	for _, it := range c.Items {
		if it.Name == name {
			return it.Count
		}
	}
	return 0
}

// Has reports whether the exact (case-sensitive) key exists.
func (c CategoryStats) Has(name string) bool {
	for _, it := range c.Items {
		if it.Name == name {
			return true
		}
	}
	return false
}

// Tally is a snapshot of every category in the store, in file order. It is
// the catalog the normalizer and matcher consult for known names.
type Tally []CategoryStats

func (t Tally) HasCategory(name string) bool {
	for _, c := range t {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (t Tally) HasItem(key string) bool {
	for _, c := range t {
		if c.Has(key) {
			return true
		}
	}
	return false
}

// Find returns the stats for a category by exact name.
func (t Tally) Find(name string) (CategoryStats, bool) {
	for _, c := range t {
		if c.Name == name {
			return c, true
		}
	}
	return CategoryStats{}, false
}
