package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

func TestLoadMissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	values := map[string]any{}
	for _, kv := range [][2]string{
		{"RL_DEBUG_DUMP_IMAGES", "true"},
		{"RL_DEBUG_MAX_IMAGES", "25"},
		{"RL_MATCH_THRESHOLD", "0.7"},
		{"RL_LOG_LEVEL", "DEBUG"},
	} {
		if err := Set(values, kv[0], kv[1]); err != nil {
			t.Fatalf("Set(%s): %v", kv[0], err)
		}
	}
	values["RL_INITIAL_DELAY"] = "1"

	n, err := Save(path, values)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("saved %d keys", n)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "RL_DEBUG_DUMP_IMAGES": true,
  "RL_DEBUG_MAX_IMAGES": 25,
  "RL_LOG_LEVEL": "DEBUG",
  "RL_MATCH_THRESHOLD": 0.7
}
`
	if diff := cmp.Diff(want, string(b)); diff != "" {
		t.Errorf("file (-want +got):\n%s", diff)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantLoaded := map[string]any{
		"RL_DEBUG_DUMP_IMAGES": true,
		"RL_DEBUG_MAX_IMAGES":  float64(25),
		"RL_LOG_LEVEL":         "DEBUG",
		"RL_MATCH_THRESHOLD":   0.7,
	}
	if diff := cmp.Diff(wantLoaded, got); diff != "" {
		t.Errorf("loaded (-want +got):\n%s", diff)
	}
}

func TestLoadAcceptsStringValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"RL_DEBUG_DUMP_IMAGES": "false", "RL_COLOR_SHADE_TOLERANCE": "12", "RL_WINDOW_CACHE_REFRESH_INTERVAL": "10"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got["RL_COLOR_SHADE_TOLERANCE"] != "12" {
		t.Errorf("got %v", got)
	}
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"RL_DEBUG_JPEG_QUALITY": 150}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !common.HasCode(err, common.CodeValidation) {
		t.Errorf("err = %v", err)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"RL_LOG_LEVEL":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !common.HasCode(err, common.CodeConfig) {
		t.Errorf("err = %v", err)
	}
}

func TestSetRejects(t *testing.T) {
	values := map[string]any{}
	cases := []struct {
		key, raw string
	}{
		{"RL_NOT_A_SETTING", "1"},
		{"RL_DEBUG_MAX_IMAGES", "many"},
		{"RL_OCR_PSM", "14"},
		{"RL_MATCH_THRESHOLD", "1.5"},
		{"RL_MATCH_THRESHOLD", "0"},
		{"RL_LOG_FORMAT", "xml"},
		{"RL_DEBUG_IMAGE_FORMAT", "gif"},
		{"RL_DEBUG_DUMP_ALWAYS", "sometimes"},
	}
	for _, c := range cases {
		if err := Set(values, c.key, c.raw); !common.HasCode(err, common.CodeValidation) {
			t.Errorf("Set(%s, %s) err = %v", c.key, c.raw, err)
		}
	}
	if len(values) != 0 {
		t.Errorf("rejected values stored: %v", values)
	}
}

func TestSaveNothingRecognised(t *testing.T) {
	_, err := Save(filepath.Join(t.TempDir(), "settings.json"), map[string]any{"RL_INITIAL_DELAY": 1})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if removed, err := Reset(path); removed || err != nil {
		t.Errorf("Reset missing = %v, %v", removed, err)
	}
	if _, err := Save(path, map[string]any{"RL_LOG_LEVEL": "INFO"}); err != nil {
		t.Fatal(err)
	}
	if removed, err := Reset(path); !removed || err != nil {
		t.Errorf("Reset = %v, %v", removed, err)
	}
}
