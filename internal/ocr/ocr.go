// Package ocr reads text out of captured screen regions with tesseract.
package ocr

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

// Config is the per-call tesseract tuning.
type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	Lang        string // default "eng"
	OEM         int
	PSM         int
	Whitelist   string
}

// ConfigFrom copies the tesseract settings out of the application config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Tesseract:   c.Tesseract,
		TessdataDir: c.TessdataDir,
		Lang:        c.Lang,
		OEM:         c.OEM,
		PSM:         c.PSM,
		Whitelist:   c.Whitelist,
	}
}

func (c Config) withDefaults() Config {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Lang == "" {
		c.Lang = "eng"
	}
	return c
}

// TextExtractor turns an image into lower-cased, trimmed text.
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image, cfg Config) (string, error)
}

// TesseractError is a failed tesseract run.
type TesseractError struct {
	Stderr string
	Err    error
}

func (e *TesseractError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return "tesseract: " + e.Err.Error() + ": " + s
	}
	return "tesseract: " + e.Err.Error()
}

func (e *TesseractError) Unwrap() error { return e.Err }

// ErrEncode marks a failure to write the image handed to tesseract.
var ErrEncode = errors.New("encode image")

// IsTransient reports whether an extraction error is worth retrying:
// tesseract failures, file system errors and image encoding errors.
// Context cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TesseractError
	var pe *fs.PathError
	var ee *exec.Error
	return errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &ee) || errors.Is(err, ErrEncode)
}

// ParseLines splits OCR output into trimmed, non-empty lines.
func ParseLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// FirstLine is the first non-empty line of text, or "".
func FirstLine(text string) string {
	if lines := ParseLines(text); len(lines) > 0 {
		return lines[0]
	}
	return ""
}

// LastLine is the last non-empty line of text, or "".
func LastLine(text string) string {
	if lines := ParseLines(text); len(lines) > 0 {
		return lines[len(lines)-1]
	}
	return ""
}

type Extractor struct {
	runner Runner
	tmpDir string
	logger *slog.Logger
}

// NewExtractor returns a tesseract-backed extractor. Temporary images go to
// the system temp directory.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{runner: tesseractRunner{logger: logger}, logger: logger}
}
