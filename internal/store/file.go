package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/rank"
)

func init() {
	// "key = value" without column alignment
	ini.PrettyFormat = false
	ini.PrettyEqual = true
}

// Only "=" separates keys from values so item names may contain ':'.
// Keys are case-sensitive, which is the ini.v1 default.
var loadOptions = ini.LoadOptions{
	KeyValueDelimiters:  "=",
	IgnoreInlineComment: true,
}

// checkCategory rejects category names the tally file cannot hold as their
// own section: ini.v1 folds DEFAULT into the unnamed section, and a ':' marks
// a metadata section that Sort drops when its category is missing.
func checkCategory(category string) error {
	switch {
	case strings.TrimSpace(category) == "":
		return common.NewAppError(common.CodeValidation, "category is required", common.ErrInvalidInput)
	case category == ini.DefaultSection:
		return common.NewAppError(common.CodeValidation,
			fmt.Sprintf("category %q is reserved", category), common.ErrInvalidInput)
	case constants.IsMetadataSection(category):
		return common.NewAppError(common.CodeValidation,
			fmt.Sprintf("category %q must not contain %q", category, constants.MetadataSeparator), common.ErrInvalidInput)
	}
	return nil
}

// touch creates the tally file and its directory when missing.
func touch(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// readDocument parses the tally file. A missing file is an empty document.
func readDocument(path string) (rank.Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return rank.Document{}, nil
	}
	if err != nil {
		return rank.Document{}, common.StoreIOError("read", err)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return rank.Document{}, common.StoreIOError("parse", err)
	}

	var doc rank.Document
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		s := rank.Section{Name: sec.Name()}
		for _, k := range sec.Keys() {
			s.Entries = append(s.Entries, rank.Entry{Key: k.Name(), Value: k.Value()})
		}
		doc.Sections = append(doc.Sections, s)
	}
	return doc, nil
}

func encodeDocument(doc rank.Document) ([]byte, error) {
	f := ini.Empty(loadOptions)
	for _, s := range doc.Sections {
		sec, err := f.NewSection(s.Name)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
		for _, e := range s.Entries {
			if _, err := sec.NewKey(e.Key, e.Value); err != nil {
				return nil, fmt.Errorf("section %q key %q: %w", s.Name, e.Key, err)
			}
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeDocument replaces the tally file in one rename so readers never see
// a partial write and a failure leaves the previous content in place.
func writeDocument(path string, doc rank.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return common.StoreIOError("encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return common.StoreIOError("write", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return common.StoreIOError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return common.StoreIOError("write", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return common.StoreIOError("write", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return common.StoreIOError("write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return common.StoreIOError("rename", err)
	}
	return nil
}
