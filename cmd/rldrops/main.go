package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/debugimg"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/history"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/matcher"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/ocr"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/pipeline"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/settings"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/store"
)

const usage = `usage: rldrops [-settings FILE] <command> [flags]

commands:
  probabilities            sort the tally and print rarity probabilities
  sort                     sort the tally file in place
  record   -category -item record one item by hand
  annotate -category -kind -item -value
                           set a rarity or display_name annotation
  ocr      -image FILE     read a drop screenshot and record it
  batch    -dir DIR        process every screenshot under DIR
  watch    -dir DIR        process screenshots as they appear in DIR
  export   -out FILE       write the tally as an XLSX workbook
  history  [-limit N]      list recently recorded openings
  settings show|set KEY=VALUE|reset
`

// errUsage marks errors that exit with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rldrops", flag.ContinueOnError)
	fs.SetOutput(stderr)
	settingsPath := fs.String("settings", settings.DefaultFile, "settings JSON file")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	// settings must work even when the saved file fails validation
	if cmd == "settings" {
		return exit(stderr, runSettings(*settingsPath, rest, stdout))
	}

	a, err := newApp(ctx, *settingsPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	var h func(context.Context, []string) error
	switch cmd {
	case "probabilities":
		h = a.cmdProbabilities
	case "sort":
		h = a.cmdSort
	case "record":
		h = a.cmdRecord
	case "annotate":
		h = a.cmdAnnotate
	case "ocr":
		h = a.cmdOcr
	case "batch":
		h = a.cmdBatch
	case "watch":
		h = a.cmdWatch
	case "export":
		h = a.cmdExport
	case "history":
		h = a.cmdHistory
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		return 2
	}
	a.stdout = stdout
	return exit(stderr, h(ctx, rest))
}

func exit(stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg       *common.Config
	logger    *slog.Logger
	store     *store.Store
	matcher   *matcher.Matcher
	extractor ocr.TextExtractor
	dumper    *debugimg.Dumper
	history   *history.Store
	recorder  *pipeline.Recorder
	stdout    io.Writer
	closers   []func()
}

func newApp(ctx context.Context, settingsPath string, stderr io.Writer) (*app, error) {
	cfg, err := common.LoadConfig(settingsPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, closeLog, err := common.NewLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = closeLog() })

	sessionID := common.NewSessionID()
	logger.Info("session.start", "session_id", sessionID, "items_file", cfg.ItemsFile)

	st, err := store.New(cfg.ItemsFile, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = st
	a.matcher = matcher.New(cfg.Match.Threshold, logger)

	opts := []ocr.Option{ocr.WithBackoff(cfg.OCR.MaxAttempts, cfg.OCR.Backoff)}
	if cfg.Debug.DumpImages {
		d, err := debugimg.New(debugimg.ConfigFrom(cfg.Debug, sessionID), logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.dumper = d
		a.closers = append(a.closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			d.Shutdown(sctx)
		})
		opts = append(opts, ocr.WithDumper(d, ocr.DumpPolicy{Always: cfg.Debug.DumpAlways, MinLength: cfg.Debug.MinLength}))
		logger.Info("debug.dump.enabled", "dir", d.Dir())
	}
	a.extractor = ocr.NewRetryingExtractor(ocr.NewExtractor(logger), logger, opts...)

	var recOpts []pipeline.Option
	if cfg.HistoryDB != "" {
		h, err := history.Open(ctx, cfg.HistoryDB, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.history = h
		a.closers = append(a.closers, func() { _ = h.Close() })
		recOpts = append(recOpts, pipeline.WithHistory(h))
	}
	a.recorder = pipeline.NewRecorder(st, a.matcher, a.extractor, ocr.ConfigFrom(cfg.OCR), logger, recOpts...)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// category resolves loose operator input ("bm", "exotic") to a drop
// category, passing anything else through unchanged.
func category(input string) string {
	if c, ok := constants.Canonicalize(input); ok {
		return string(c)
	}
	return input
}
