package ocr

import (
	"context"
	"image"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/retry"
)

// ImageDumper saves an image for later inspection. Enqueue reports whether
// the image was accepted.
type ImageDumper interface {
	Enqueue(img image.Image, label string) bool
}

// DumpPolicy decides when a successful read is worth dumping. Empty text is
// always dumped.
type DumpPolicy struct {
	Always    bool
	MinLength int
}

func (p DumpPolicy) ShouldDump(text string) bool {
	return text == "" || p.Always || (p.MinLength > 0 && utf8.RuneCountInString(text) < p.MinLength)
}

// RetryingExtractor retries transient extraction failures and hands images
// to the debug dumper.
type RetryingExtractor struct {
	next   TextExtractor
	policy retry.Policy
	dumper ImageDumper
	dump   DumpPolicy
	logger *slog.Logger
}

type Option func(*RetryingExtractor)

// WithDumper enables debug image dumps.
func WithDumper(d ImageDumper, p DumpPolicy) Option {
	return func(r *RetryingExtractor) {
		r.dumper = d
		r.dump = p
	}
}

// WithBackoff overrides the attempt count and first wait.
func WithBackoff(attempts int, backoff time.Duration) Option {
	return func(r *RetryingExtractor) {
		if attempts > 0 {
			r.policy.MaxAttempts = attempts
		}
		if backoff > 0 {
			r.policy.Backoff = backoff
		}
	}
}

func NewRetryingExtractor(next TextExtractor, logger *slog.Logger, opts ...Option) *RetryingExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RetryingExtractor{
		next: next,
		policy: retry.Policy{
			MaxAttempts: retry.DefaultMaxAttempts,
			Backoff:     retry.DefaultBackoff,
			IsRetryable: IsTransient,
			Logger:      logger,
		},
		logger: logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ExtractText reads img with retries. Once retries are exhausted the error is
// an EXTRACTION_FAILED AppError and the image is dumped as "<region>_ocr_error".
func (r *RetryingExtractor) ExtractText(ctx context.Context, img image.Image, cfg Config) (string, error) {
	region := regionName(ctx)
	text, err := retry.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.ExtractText(ctx, img, cfg)
	})
	if err != nil {
		r.logger.Error("ocr.extract.failed", "region", region, "error", err)
		r.save(img, region+"_ocr_error")
		return "", err
	}
	if r.dump.ShouldDump(text) {
		r.save(img, region+"_ocr_result")
	}
	return text, nil
}

func (r *RetryingExtractor) save(img image.Image, label string) {
	if r.dumper == nil || img == nil {
		return
	}
	if !r.dumper.Enqueue(img, label) {
		r.logger.Debug("ocr.dump.skipped", "label", label)
	}
}

func regionName(ctx context.Context) string {
	return common.RegionFromContext(ctx)
}
