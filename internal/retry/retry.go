// Package retry runs an operation again after transient failures, sleeping
// with exponential backoff in between.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond
)

// Policy controls Do. Zero values select the defaults; a nil IsRetryable
// retries every error except context cancellation.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	IsRetryable func(error) bool
	Logger      *slog.Logger
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultBackoff
	}
	if p.IsRetryable == nil {
		p.IsRetryable = func(error) bool { return true }
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The wait doubles after every failed attempt. Exhausting
// the attempts yields an EXTRACTION_FAILED AppError wrapping the last error.
// Non-retryable errors and context errors are returned as they are.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	wait := p.Backoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if isContextErr(err) || !p.IsRetryable(err) {
			return zero, err
		}
		if attempt >= p.MaxAttempts {
			p.Logger.Error("retry.exhausted", "attempts", attempt, "error", err)
			return zero, common.ExtractionError(attempt, err)
		}

		p.Logger.Warn("retry.attempt_failed", "attempt", attempt, "max_attempts", p.MaxAttempts, "wait_ms", wait.Milliseconds(), "error", err)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
		wait *= 2
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
