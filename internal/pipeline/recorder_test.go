package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/matcher"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/ocr"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/store"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/vision"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// regionExtractor answers by the region name carried in the context.
type regionExtractor struct {
	text map[string]string
	err  error
}

func (f regionExtractor) ExtractText(ctx context.Context, _ image.Image, _ ocr.Config) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text[common.RegionFromContext(ctx)], nil
}

type memHistory struct {
	mu   sync.Mutex
	rows []entity.Opening
}

func (h *memHistory) Record(_ context.Context, o entity.Opening) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, o)
	return nil
}

func colorOf(c vision.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func newTally(t *testing.T, content string) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := store.New(path, quiet())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func count(t *testing.T, s *store.Store, category, key string) int {
	t.Helper()
	tally, err := s.Categories()
	if err != nil {
		t.Fatal(err)
	}
	cs, _ := tally.Find(category)
	return cs.Count(key)
}

func newRecorder(s *store.Store, x ocr.TextExtractor, opts ...Option) *Recorder {
	return NewRecorder(s, matcher.New(matcher.DefaultThreshold, quiet()), x, ocr.Config{}, quiet(), opts...)
}

func TestRecordTextMatchesKnownItem(t *testing.T) {
	s := newTally(t, "[Deluxe Drop]\nDeluxe Trail = 1\n")
	r := newRecorder(s, nil)

	out, err := r.RecordText(context.Background(), "Deluxe Drop", "DeluxeTrall")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != constants.RecordMatched || out.Item != "Deluxe Trail" || out.Score <= 0.6 {
		t.Errorf("outcome = %+v", out)
	}
	if n := count(t, s, "Deluxe Drop", "Deluxe Trail"); n != 2 {
		t.Errorf("count = %d", n)
	}
	if n := count(t, s, "Deluxe Drop", "Deluxe Trall"); n != 0 {
		t.Errorf("typo stored separately: %d", n)
	}
}

func TestRecordTextFallsBackToNormalized(t *testing.T) {
	s := newTally(t, "")
	r := newRecorder(s, nil)

	out, err := r.RecordText(context.Background(), "Exotic Drop", "importBody")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != constants.RecordVerbatim || out.Item != "Import Body" {
		t.Errorf("outcome = %+v", out)
	}
	if n := count(t, s, "Exotic Drop", "Import Body"); n != 1 {
		t.Errorf("count = %d", n)
	}
}

func TestRecordTextSkipsEmpty(t *testing.T) {
	s := newTally(t, "")
	h := &memHistory{}
	r := newRecorder(s, nil, WithHistory(h))

	out, err := r.RecordText(context.Background(), "Exotic Drop", ` "!! ' `)
	if err != nil || out.Status != constants.RecordSkipped {
		t.Fatalf("outcome = %+v err = %v", out, err)
	}
	if tally, _ := s.Categories(); len(tally) != 0 || len(h.rows) != 0 {
		t.Errorf("unexpected writes: %+v %+v", tally, h.rows)
	}
}

func TestRecordTextCancelledBeforeWrite(t *testing.T) {
	s := newTally(t, "")
	r := newRecorder(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := r.RecordText(ctx, "Exotic Drop", "Import Body")
	if !errors.Is(err, context.Canceled) || out.Status != constants.RecordSkipped {
		t.Fatalf("outcome = %+v err = %v", out, err)
	}
	if n := count(t, s, "Exotic Drop", "Import Body"); n != 0 {
		t.Errorf("count = %d", n)
	}
}

func TestRecordTextWritesHistory(t *testing.T) {
	s := newTally(t, "")
	h := &memHistory{}
	r := newRecorder(s, nil, WithHistory(h))

	ctx := common.WithSessionID(context.Background(), "sess0001")
	if _, err := r.RecordText(ctx, "Sport Drop", "sport wheels"); err != nil {
		t.Fatal(err)
	}
	if len(h.rows) != 1 {
		t.Fatalf("rows = %+v", h.rows)
	}
	row := h.rows[0]
	if row.SessionID != "sess0001" || row.Item != "Sport Wheels" || row.RawText != "sport wheels" ||
		row.Status != string(constants.RecordVerbatim) || row.CreatedAt.IsZero() {
		t.Errorf("row = %+v", row)
	}
}

func TestReadCategoryUsesLastLine(t *testing.T) {
	s := newTally(t, "")
	r := newRecorder(s, regionExtractor{text: map[string]string{"drop_found": "drop found\n\nexotic drop\n"}})

	got, err := r.ReadCategory(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil || got != "Exotic Drop" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestRecordItemUsesFirstLine(t *testing.T) {
	s := newTally(t, "")
	r := newRecorder(s, regionExtractor{text: map[string]string{"item_open": "import body\npainted\n"}})

	out, err := r.RecordItem(context.Background(), "Import Drop", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil || out.Item != "Import Body" {
		t.Fatalf("outcome = %+v err = %v", out, err)
	}
}

func TestRecordItemExtractionFailure(t *testing.T) {
	s := newTally(t, "")
	boom := common.ExtractionError(3, errors.New("tesseract crashed"))
	r := newRecorder(s, regionExtractor{err: boom})

	_, err := r.RecordItem(context.Background(), "Import Drop", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, common.ErrExtractionFailed) {
		t.Errorf("err = %v", err)
	}
}

func TestProcessDrop(t *testing.T) {
	s := newTally(t, "[Black Market Drop]\nBlack Market Goal Explosion = 4\n")
	x := regionExtractor{text: map[string]string{
		"drop_found": "black market drop",
		"item_open":  "Black Market Goal Exploson",
	}}
	screen := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	screen.Set(150, 150, colorOf(vision.DropCheckColor))

	p := NewProcessor(quiet(), vision.NewImageVision(screen), newRecorder(s, x), 10)
	ok, err := p.DropAvailable(context.Background())
	if err != nil || !ok {
		t.Fatalf("DropAvailable = %v, %v", ok, err)
	}

	out, err := p.ProcessDrop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Category != "Black Market Drop" || out.Item != "Black Market Goal Explosion" || out.Status != constants.RecordMatched {
		t.Errorf("outcome = %+v", out)
	}
	if n := count(t, s, "Black Market Drop", "Black Market Goal Explosion"); n != 5 {
		t.Errorf("count = %d", n)
	}
}

func TestProcessDropWithoutCategory(t *testing.T) {
	s := newTally(t, "")
	screen := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	p := NewProcessor(quiet(), vision.NewImageVision(screen), newRecorder(s, regionExtractor{}), 10)

	if ok, _ := p.DropAvailable(context.Background()); ok {
		t.Error("blank screen has no drop")
	}
	out, err := p.ProcessDrop(context.Background())
	if err != nil || out.Status != constants.RecordSkipped {
		t.Errorf("outcome = %+v err = %v", out, err)
	}
}
