// Package settings persists RL_* settings to a JSON file so they survive
// restarts. Environment variables still take precedence when the file is
// read back through common.LoadConfig.
package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

// DefaultFile is the settings file read from the working directory.
const DefaultFile = "settings.json"

//go:embed schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	kinds       map[string]string
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("settings.json", bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		if compiled, compileErr = compiler.Compile("settings.json"); compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
			return
		}

		var doc struct {
			Properties map[string]struct {
				Type json.RawMessage `json:"type"`
			} `json:"properties"`
		}
		if compileErr = json.Unmarshal(schemaJSON, &doc); compileErr != nil {
			return
		}
		kinds = make(map[string]string, len(doc.Properties))
		for k, p := range doc.Properties {
			var one string
			var many []string
			if json.Unmarshal(p.Type, &one) == nil {
				kinds[k] = one
			} else if json.Unmarshal(p.Type, &many) == nil && len(many) > 0 {
				kinds[k] = many[0]
			}
		}
	})
	return compiled, compileErr
}

// Validate checks decoded settings against the embedded schema.
func Validate(values map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	// the validator wants plain JSON values
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return common.NewAppError(common.CodeValidation, "settings do not match schema", err)
	}
	return nil
}

// Load reads the saved settings. A missing file yields an empty map.
func Load(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "read "+path, err)
	}

	values := map[string]any{}
	if len(bytes.TrimSpace(b)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, common.NewAppError(common.CodeConfig, "parse "+path, err)
	}
	if err := Validate(values); err != nil {
		return nil, err
	}
	return values, nil
}

// Save writes the recognised keys of values to path, indented and sorted.
// Unknown keys are dropped; it is an error when none remain.
func Save(path string, values map[string]any) (int, error) {
	filtered := make(map[string]any, len(values))
	for k, v := range values {
		if common.IsSettingKey(k) {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return 0, common.NewAppError(common.CodeValidation, "no recognised settings to save", common.ErrInvalidInput)
	}
	if err := Validate(filtered); err != nil {
		return 0, err
	}

	b, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal settings: %w", err)
	}
	b = append(b, '\n')
	if err := writeFile(path, b); err != nil {
		return 0, common.NewAppError(common.CodeConfig, "write "+path, err)
	}
	return len(filtered), nil
}

// Set parses raw according to the declared type of key and stores it in values.
func Set(values map[string]any, key, raw string) error {
	if !common.IsSettingKey(key) {
		return common.NewAppError(common.CodeValidation, "unknown setting "+key, common.ErrInvalidInput)
	}
	if _, err := schema(); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)

	var (
		v   any
		err error
	)
	switch kinds[key] {
	case "boolean":
		v, err = strconv.ParseBool(raw)
	case "integer":
		v, err = strconv.Atoi(raw)
	case "number":
		v, err = strconv.ParseFloat(raw, 64)
	default:
		v = raw
	}
	if err != nil {
		return common.NewAppError(common.CodeValidation, fmt.Sprintf("%s=%q", key, raw), err)
	}
	if err := Validate(map[string]any{key: v}); err != nil {
		return err
	}
	values[key] = v
	return nil
}

// Reset removes the settings file. It reports false when there was none.
func Reset(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, common.NewAppError(common.CodeConfig, "remove "+path, err)
	}
	return true, nil
}

func writeFile(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
