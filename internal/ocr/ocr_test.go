package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubRunner struct {
	stdout string
	stderr string
	err    error

	name     string
	args     []string
	imgExist bool
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name, s.args = name, args
	if len(args) > 0 {
		_, err := os.Stat(args[0])
		s.imgExist = err == nil
	}
	return []byte(s.stdout), []byte(s.stderr), s.err
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func newTestExtractor(t *testing.T, r Runner) *Extractor {
	e := NewExtractor(quiet())
	e.runner = r
	e.tmpDir = t.TempDir()
	return e
}

func TestExtractText(t *testing.T) {
	r := &stubRunner{stdout: "  Import Body \r\n----\n\tPainted\t\n"}
	e := newTestExtractor(t, r)

	cfg := Config{Lang: "eng", OEM: 3, PSM: 6, Whitelist: "AB c", TessdataDir: "/td"}
	got, err := e.ExtractText(context.Background(), testImage(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "import body\n\n painted" {
		t.Errorf("text = %q", got)
	}
	if r.name != "tesseract" || !r.imgExist {
		t.Errorf("runner saw name=%q image=%v", r.name, r.imgExist)
	}
	want := []string{r.args[0], "stdout", "-l", "eng", "--oem", "3", "--psm", "6",
		"-c", "tessedit_char_whitelist=AB c", "--tessdata-dir", "/td"}
	if diff := cmp.Diff(want, r.args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(r.args[0]); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temp image not removed: %v", err)
	}
}

func TestExtractTextFailure(t *testing.T) {
	r := &stubRunner{stderr: "Error in pixReadStream", err: errors.New("exit status 1")}
	e := newTestExtractor(t, r)

	_, err := e.ExtractText(context.Background(), testImage(), Config{Tesseract: "/opt/tess"})
	var te *TesseractError
	if !errors.As(err, &te) || !strings.Contains(te.Stderr, "pixReadStream") {
		t.Fatalf("err = %v", err)
	}
	if !IsTransient(err) {
		t.Error("tesseract failure should be transient")
	}
	if r.name != "/opt/tess" {
		t.Errorf("binary = %q", r.name)
	}
}

func TestExtractTextNilImage(t *testing.T) {
	e := newTestExtractor(t, &stubRunner{})
	_, err := e.ExtractText(context.Background(), nil, Config{})
	if !errors.Is(err, ErrEncode) || !IsTransient(err) {
		t.Errorf("err = %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("other"), false},
		{context.Canceled, false},
		{&TesseractError{Err: context.DeadlineExceeded}, false},
		{&fs.PathError{Op: "open", Path: "x", Err: fs.ErrPermission}, true},
		{&TesseractError{Err: errors.New("boom")}, true},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestParseLines(t *testing.T) {
	text := "\n  exotic drop \n\n import body\n  \n"
	if diff := cmp.Diff([]string{"exotic drop", "import body"}, ParseLines(text)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if FirstLine(text) != "exotic drop" || LastLine(text) != "import body" {
		t.Error("first/last line mismatch")
	}
	if FirstLine(" \n ") != "" || LastLine("") != "" {
		t.Error("blank text should give empty lines")
	}
}

type fakeExtractor struct {
	results []string
	errs    []error
	calls   int
}

func (f *fakeExtractor) ExtractText(context.Context, image.Image, Config) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return "", nil
}

type recordingDumper struct {
	mu     sync.Mutex
	labels []string
}

func (d *recordingDumper) Enqueue(_ image.Image, label string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels = append(d.labels, label)
	return true
}

func TestRetryingExtractorRecovers(t *testing.T) {
	flaky := &TesseractError{Err: errors.New("busy")}
	next := &fakeExtractor{errs: []error{flaky, flaky}, results: []string{"", "", "sport drop"}}
	d := &recordingDumper{}
	r := NewRetryingExtractor(next, quiet(), WithBackoff(3, time.Millisecond), WithDumper(d, DumpPolicy{}))

	got, err := r.ExtractText(common.WithRegion(context.Background(), "category"), testImage(), Config{})
	if err != nil || got != "sport drop" || next.calls != 3 {
		t.Fatalf("got (%q, %v) after %d calls", got, err, next.calls)
	}
	if len(d.labels) != 0 {
		t.Errorf("unexpected dumps %v", d.labels)
	}
}

func TestRetryingExtractorExhausts(t *testing.T) {
	flaky := &TesseractError{Err: errors.New("busy")}
	next := &fakeExtractor{errs: []error{flaky, flaky, flaky, flaky}}
	d := &recordingDumper{}
	r := NewRetryingExtractor(next, quiet(), WithBackoff(3, time.Millisecond), WithDumper(d, DumpPolicy{}))

	_, err := r.ExtractText(common.WithRegion(context.Background(), "item"), testImage(), Config{})
	if !common.HasCode(err, common.CodeExtractionFailed) || !errors.Is(err, common.ErrExtractionFailed) {
		t.Fatalf("err = %v", err)
	}
	if next.calls != 3 {
		t.Errorf("calls = %d", next.calls)
	}
	if diff := cmp.Diff([]string{"item_ocr_error"}, d.labels); diff != "" {
		t.Errorf("dumps (-want +got):\n%s", diff)
	}
}

func TestRetryingExtractorPermanentError(t *testing.T) {
	next := &fakeExtractor{errs: []error{errors.New("unsupported")}}
	r := NewRetryingExtractor(next, quiet(), WithBackoff(3, time.Millisecond))
	if _, err := r.ExtractText(context.Background(), testImage(), Config{}); err == nil || next.calls != 1 {
		t.Errorf("err = %v calls = %d", err, next.calls)
	}
}

func TestDumpPolicy(t *testing.T) {
	cases := []struct {
		p    DumpPolicy
		text string
		want bool
	}{
		{DumpPolicy{}, "", true},
		{DumpPolicy{}, "import body", false},
		{DumpPolicy{Always: true}, "import body", true},
		{DumpPolicy{MinLength: 5}, "abc", true},
		{DumpPolicy{MinLength: 5}, "abcde", false},
		{DumpPolicy{MinLength: 3}, "àé", true},
	}
	for _, tc := range cases {
		if got := tc.p.ShouldDump(tc.text); got != tc.want {
			t.Errorf("%+v.ShouldDump(%q) = %v", tc.p, tc.text, got)
		}
	}

	next := &fakeExtractor{results: []string{"ab"}}
	d := &recordingDumper{}
	r := NewRetryingExtractor(next, quiet(), WithDumper(d, DumpPolicy{MinLength: 4}))
	if _, err := r.ExtractText(context.Background(), testImage(), Config{}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ocr_ocr_result"}, d.labels); diff != "" {
		t.Errorf("dumps (-want +got):\n%s", diff)
	}
}

func TestTesseractRunnerLogsRegion(t *testing.T) {
	var buf bytes.Buffer
	r := tesseractRunner{logger: slog.New(slog.NewTextHandler(&buf, nil))}
	ctx := common.WithSessionID(common.WithRegion(context.Background(), "item"), "abc123")

	if _, _, err := r.Run(ctx, "rldrops-no-such-tesseract", "in.png", "stdout"); err == nil {
		t.Fatal("expected error for missing binary")
	}
	got := buf.String()
	for _, want := range []string{"msg=ocr.exec.failed", "region=item", "session_id=abc123", "exit_code=-1", `args="in.png stdout"`} {
		if !strings.Contains(got, want) {
			t.Errorf("log missing %q:\n%s", want, got)
		}
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip = %q", got)
	}
	if got := clip("abcdef", 3); got != "abc...(truncated)" {
		t.Errorf("clip = %q", got)
	}
}
