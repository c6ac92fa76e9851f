package common

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLogFile is used when RL_LOG_TO_FILE is set without RL_LOG_FILE.
const DefaultLogFile = "rldrops.log"

// ParseLevel maps RL_LOG_LEVEL names onto slog levels. WARNING and CRITICAL
// are accepted for compatibility with existing settings files.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. Output goes to w, and additionally to
// a log file when file logging is enabled. The returned func closes the file.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }
	if w == nil {
		w = os.Stderr
	}

	path := cfg.File
	if path == "" && cfg.ToFile {
		path = DefaultLogFile
	}
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, closer, WrapError(err, "create log dir")
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, WrapError(err, "open log file")
		}
		w = io.MultiWriter(w, f)
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}
