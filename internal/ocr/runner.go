package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

// maxLoggedStderr caps how much tesseract stderr goes into a log record.
const maxLoggedStderr = 4 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// tesseractRunner executes the OCR binary and logs each run against the
// screen region and session carried by ctx.
type tesseractRunner struct {
	logger *slog.Logger
}

func (r tesseractRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	attrs := []any{
		"region", common.RegionFromContext(ctx),
		"session_id", common.SessionIDFromContext(ctx),
		"cmd", name,
		"duration_ms", time.Since(start).Milliseconds(),
	}

	if err != nil {
		attrs = append(attrs,
			"args", strings.Join(args, " "),
			"exit_code", exitCode(err),
			"error", err,
			"stderr", clip(stderr.String(), maxLoggedStderr),
		)
		r.logger.Error("ocr.exec.failed", attrs...)
	} else {
		r.logger.Debug("ocr.exec.ok", append(attrs, "stdout_bytes", stdout.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// exitCode is the process exit status, or -1 when the binary never ran
// or was killed.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
