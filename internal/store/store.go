// Package store keeps the persistent category -> item -> count tally.
//
// Every mutation is a full read-modify-write of the tally file followed by a
// re-sort. The file has a single writer process; within that process a mutex
// serializes access.
package store

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/normalize"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/rank"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/stats"
)

// DefaultFile is the tally file used when none is configured.
const DefaultFile = "items.txt"

type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New opens the tally file at path, creating it if needed.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultFile
	}
	if err := touch(path); err != nil {
		return nil, common.StoreIOError("create", err)
	}
	return &Store{path: path, logger: logger}, nil
}

func (s *Store) Path() string { return s.path }

// Update records one opening of rawItem in category. The item text is
// normalized first; an empty result is ignored. Items that cannot be
// classified, or that came from an unexpected category, are counted under
// the "Unknown" key. Update has no context: once started it always runs to
// the final save.
func (s *Store) Update(category, rawItem string) error {
	if err := checkCategory(category); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	tally, err := doc.Tally()
	if err != nil {
		return common.StoreIOError("parse", err)
	}

	item := normalize.Normalize(rawItem, tally)
	if item == "" {
		s.logger.Debug("store.update.skip", "category", category, "raw", rawItem)
		return nil
	}
	key := s.classify(category, item)

	sec := doc.AddSection(category)
	prev := 0
	if v, ok := sec.Get(key); ok {
		prev, err = strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return common.StoreIOError("parse", fmt.Errorf("section %q: item %q: invalid count %q", category, key, v))
		}
	}
	sec.Set(key, strconv.Itoa(prev+1))

	if err := writeDocument(s.path, doc); err != nil {
		return err
	}
	if err := writeDocument(s.path, rank.Sort(doc)); err != nil {
		return err
	}

	s.logger.Info("store.update.ok",
		"category", category,
		"item", key,
		"previous", prev,
		"count", prev+1,
	)
	return nil
}

// classify returns the key an item is counted under.
func (s *Store) classify(category, item string) string {
	if !constants.IsExpectedCategory(category) {
		s.logger.Warn("store.classify.unexpected_category", "category", category, "item", item)
		return constants.UnknownItem
	}
	if constants.RarityFromString(item) == constants.RarityUnknown {
		s.logger.Warn("store.classify.unknown_rarity", "category", category, "item", item)
		return constants.UnknownItem
	}
	if !constants.IsKnownType(constants.ExtractType(item)) {
		s.logger.Warn("store.classify.unknown_type", "category", category, "item", item)
		return constants.UnknownItem
	}
	return item
}

// Categories returns every category section in file order.
func (s *Store) Categories() (entity.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally()
}

func (s *Store) tally() (entity.Tally, error) {
	doc, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	t, err := doc.Tally()
	if err != nil {
		return nil, common.StoreIOError("parse", err)
	}
	return t, nil
}

// CalculateProbabilities returns the rarity distribution of every category
// that has at least one opening.
func (s *Store) CalculateProbabilities() (map[string][]stats.RarityProbability, error) {
	t, err := s.Categories()
	if err != nil {
		return nil, err
	}
	return stats.Calculate(t), nil
}

// Sort rewrites the tally file in rank order.
func (s *Store) Sort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	if err := writeDocument(s.path, rank.Sort(doc)); err != nil {
		return err
	}
	s.logger.Debug("store.sort.ok", "sections", len(doc.Sections))
	return nil
}

// Document returns the raw sections, metadata included.
func (s *Store) Document() (rank.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readDocument(s.path)
}

// SetMetadata writes a ":rarity" or ":display_name" annotation for an item
// of an existing category.
func (s *Store) SetMetadata(category, kind, item, value string) error {
	if kind != constants.MetaRarity && kind != constants.MetaDisplayName {
		return common.NewAppError(common.CodeValidation,
			fmt.Sprintf("unknown metadata kind %q", kind), common.ErrInvalidInput)
	}
	if item == "" {
		return common.NewAppError(common.CodeValidation, "item is required", common.ErrInvalidInput)
	}
	if err := checkCategory(category); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	if doc.Section(category) == nil {
		return common.NewAppError(common.CodeValidation,
			fmt.Sprintf("category %q", category), common.ErrNotFound)
	}
	doc.AddSection(constants.MetadataSection(category, kind)).Set(item, value)

	if err := writeDocument(s.path, rank.Sort(doc)); err != nil {
		return err
	}
	s.logger.Info("store.metadata.ok", "category", category, "kind", kind, "item", item)
	return nil
}
