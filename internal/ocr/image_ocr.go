package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)
)

// ExtractText runs tesseract over img and returns its output trimmed and
// lower-cased.
func (e *Extractor) ExtractText(ctx context.Context, img image.Image, cfg Config) (string, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	path, cleanup, err := e.writeTemp(img)
	if err != nil {
		return "", err
	}
	defer cleanup()

	out, errb, err := e.runner.Run(ctx, cfg.Tesseract, tesseractArgs(path, cfg)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &TesseractError{Stderr: string(errb), Err: err}
	}

	text := strings.ToLower(clean(string(out)))
	e.logger.Debug("ocr.extract.ok",
		"region", regionName(ctx),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// tesseract <png> stdout -l <lang> --oem N --psm N [-c whitelist] [--tessdata-dir D]
func tesseractArgs(path string, cfg Config) []string {
	args := []string{path, "stdout", "-l", cfg.Lang,
		"--oem", strconv.Itoa(cfg.OEM),
		"--psm", strconv.Itoa(cfg.PSM),
	}
	if cfg.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+cfg.Whitelist)
	}
	if cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", cfg.TessdataDir)
	}
	return args
}

func (e *Extractor) writeTemp(img image.Image) (string, func(), error) {
	if img == nil {
		return "", nil, fmt.Errorf("%w: nil image", ErrEncode)
	}
	f, err := os.CreateTemp(e.tmpDir, "rldrops-ocr-*.png")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}

// clean collapses noisy whitespace and drops ruler lines tesseract reads
// from UI borders.
func clean(s string) string {
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
