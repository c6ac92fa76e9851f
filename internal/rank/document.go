package rank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
)

// Entry is a single "key = value" line.
type Entry struct {
	Key   string
	Value string
}

// Section is a named block of entries, kept in file order.
type Section struct {
	Name    string
	Entries []Entry
}

// Document is the ordered content of a tally file: category sections and
// their "<category>:rarity" / "<category>:display_name" metadata sections.
type Document struct {
	Sections []Section
}

func (s *Section) Get(key string) (string, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set overwrites an existing key in place or appends a new one.
func (s *Section) Set(key, value string) {
	for i := range s.Entries {
		if s.Entries[i].Key == key {
			s.Entries[i].Value = value
			return
		}
	}
	s.Entries = append(s.Entries, Entry{Key: key, Value: value})
}

// Section returns the named section or nil. The pointer is invalidated by
// the next AddSection.
func (d *Document) Section(name string) *Section {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i]
		}
	}
	return nil
}

// AddSection returns the named section, appending an empty one if needed.
func (d *Document) AddSection(name string) *Section {
	if s := d.Section(name); s != nil {
		return s
	}
	d.Sections = append(d.Sections, Section{Name: name})
	return &d.Sections[len(d.Sections)-1]
}

// Tally converts category sections into stats, skipping metadata sections.
func (d Document) Tally() (entity.Tally, error) {
	var out entity.Tally
	for _, s := range d.Sections {
		if constants.IsMetadataSection(s.Name) {
			continue
		}
		cs := entity.CategoryStats{Name: s.Name, Items: make([]entity.ItemCount, 0, len(s.Entries))}
		for _, e := range s.Entries {
			n, err := strconv.Atoi(strings.TrimSpace(e.Value))
			if err != nil {
				return nil, fmt.Errorf("section %q: item %q: invalid count %q", s.Name, e.Key, e.Value)
			}
			cs.Items = append(cs.Items, entity.ItemCount{Name: e.Key, Count: n})
		}
		out = append(out, cs)
	}
	return out, nil
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{Sections: make([]Section, len(d.Sections))}
	for i, s := range d.Sections {
		out.Sections[i] = cloneSection(s)
	}
	return out
}

func cloneSection(s Section) Section {
	entries := make([]Entry, len(s.Entries))
	copy(entries, s.Entries)
	return Section{Name: s.Name, Entries: entries}
}
