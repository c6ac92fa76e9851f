package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/export"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/ingest"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/ocr"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/pipeline"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/settings"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/stats"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/vision"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected argument %q", errUsage, fs.Name(), fs.Arg(0))
	}
	return nil
}

func (a *app) cmdProbabilities(_ context.Context, args []string) error {
	fs := newFlags("probabilities")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.store.Sort(); err != nil {
		return err
	}
	tally, err := a.store.Categories()
	if err != nil {
		return err
	}
	report := stats.Report(tally)
	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if report == nil {
			report = []stats.CategoryReport{}
		}
		return enc.Encode(report)
	}
	printReport(a.stdout, report)
	return nil
}

func printReport(w io.Writer, report []stats.CategoryReport) {
	if len(report) == 0 {
		fmt.Fprintln(w, "No items recorded yet.")
		return
	}
	for _, r := range report {
		fmt.Fprintf(w, "\nCategory: %s\n", r.Category)
		for _, p := range r.Rarities {
			fmt.Fprintf(w, "  %s: %.2f%% (%d items)\n", p.Rarity, p.Probability*100, p.Count)
		}
	}
}

func (a *app) cmdSort(_ context.Context, args []string) error {
	if err := parse(newFlags("sort"), args); err != nil {
		return err
	}
	if err := a.store.Sort(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Sorted %s\n", a.store.Path())
	return nil
}

func (a *app) cmdRecord(ctx context.Context, args []string) error {
	fs := newFlags("record")
	cat := fs.String("category", "", "drop category, e.g. \"Exotic Drop\" or \"bm\"")
	item := fs.String("item", "", "item text as read off the screen")
	if err := parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*cat) == "" || strings.TrimSpace(*item) == "" {
		return fmt.Errorf("%w: record needs -category and -item", errUsage)
	}
	out, err := a.recorder.RecordText(ctx, category(*cat), *item)
	if err != nil {
		return err
	}
	printOutcome(a.stdout, out)
	return nil
}

func (a *app) cmdAnnotate(_ context.Context, args []string) error {
	fs := newFlags("annotate")
	cat := fs.String("category", "", "drop category")
	kind := fs.String("kind", "rarity", "annotation kind: rarity or display_name")
	item := fs.String("item", "", "item key")
	value := fs.String("value", "", "annotation value")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *cat == "" || *item == "" || *value == "" {
		return fmt.Errorf("%w: annotate needs -category, -item and -value", errUsage)
	}
	return a.store.SetMetadata(category(*cat), *kind, *item, *value)
}

func printOutcome(w io.Writer, out pipeline.Outcome) {
	if out.Item == "" {
		fmt.Fprintf(w, "%s: nothing recorded\n", out.Status)
		return
	}
	fmt.Fprintf(w, "%s: %s / %s\n", out.Status, out.Category, out.Item)
}

func (a *app) cmdOcr(ctx context.Context, args []string) error {
	fs := newFlags("ocr")
	image := fs.String("image", "", "full-window screenshot (png or jpeg)")
	region := fs.String("region", "", "only print the text of one region: "+regionNames())
	cat := fs.String("category", "", "skip the category read and record under this category")
	force := fs.Bool("force", false, "process even when the drop indicator is missing")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *image == "" {
		return fmt.Errorf("%w: ocr needs -image", errUsage)
	}
	v, err := vision.LoadScreenshot(*image)
	if err != nil {
		return err
	}

	switch {
	case *region != "":
		r, ok := vision.NamedRegions[*region]
		if !ok {
			return fmt.Errorf("%w: unknown region %q (one of %s)", errUsage, *region, regionNames())
		}
		img, err := v.CaptureRegion(ctx, r)
		if err != nil {
			return err
		}
		text, err := a.extractor.ExtractText(common.WithRegion(ctx, *region), img, ocr.ConfigFrom(a.cfg.OCR))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, text)
		return nil
	case *cat != "":
		img, err := v.CaptureRegion(ctx, vision.ItemOpenRegion)
		if err != nil {
			return err
		}
		out, err := a.recorder.RecordItem(ctx, category(*cat), img)
		if err != nil {
			return err
		}
		printOutcome(a.stdout, out)
		return nil
	}
	return a.processScreenshot(ctx, v, *force)
}

func regionNames() string {
	names := make([]string, 0, len(vision.NamedRegions))
	for n := range vision.NamedRegions {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// processScreenshot records the drop shown in v. Screens without the drop
// indicator are skipped unless force is set.
func (a *app) processScreenshot(ctx context.Context, v vision.Vision, force bool) error {
	p := pipeline.NewProcessor(a.logger, v, a.recorder, a.cfg.Vision.DropCheckTolerance)
	if !force {
		ok, err := p.DropAvailable(ctx)
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Info("screenshot.no_drop")
			fmt.Fprintln(a.stdout, "No drop on screen.")
			return nil
		}
	}
	out, err := p.ProcessDrop(ctx)
	if err != nil {
		return err
	}
	printOutcome(a.stdout, out)
	return nil
}

func (a *app) screenshotHandler(force bool) ingest.Handler {
	return func(ctx context.Context, path string) error {
		v, err := vision.LoadScreenshot(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s: ", filepath.Base(path))
		if err := a.processScreenshot(ctx, v, force); err != nil {
			fmt.Fprintf(a.stdout, "failed: %v\n", err)
			return err
		}
		return nil
	}
}

func (a *app) cmdBatch(ctx context.Context, args []string) error {
	fs := newFlags("batch")
	dir := fs.String("dir", "", "directory of screenshots")
	force := fs.Bool("force", false, "process screenshots without the drop indicator")
	skipHidden := fs.Bool("skip-hidden", true, "skip dot files and directories")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("%w: batch needs -dir", errUsage)
	}

	start := time.Now()
	results, st, err := ingest.ScanDirectory(ctx, *dir, *skipHidden, a.screenshotHandler(*force))
	for _, r := range results {
		if r.Err != "" {
			a.logger.Error("batch.file.failed", "path", r.Path, "error", r.Err)
		}
	}
	a.logger.Info("batch.done",
		"scanned", st.Scanned,
		"matched", st.Matched,
		"succeeded", st.Succeeded,
		"failed", st.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Processed %d screenshots, %d failed\n", st.Succeeded, st.Failed)
	return nil
}

func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := newFlags("watch")
	dir := fs.String("dir", "", "directory the game saves screenshots to")
	existing := fs.Bool("existing", false, "also process screenshots already in the directory")
	debounce := fs.Duration("debounce", 500*time.Millisecond, "wait this long after the last write before reading a file")
	force := fs.Bool("force", false, "process screenshots without the drop indicator")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("%w: watch needs -dir", errUsage)
	}

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{*dir},
		InitialScan: *existing,
		Debounce:    *debounce,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	a.logger.Info("watch.start", "dir", *dir)
	handle := a.screenshotHandler(*force)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				a.logger.Info("watch.stop")
				return nil
			}
			if err := handle(ctx, path); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("watch.file.failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if ok {
				a.logger.Warn("watch.error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := newFlags("export")
	out := fs.String("out", "drops.xlsx", "output XLSX path")
	limit := fs.Int("history", 500, "recent openings to include when history is enabled")
	if err := parse(fs, args); err != nil {
		return err
	}
	var opts []export.Option
	if a.history != nil {
		opts = append(opts, export.WithHistory(a.history, *limit))
	}
	b, err := export.NewService(a.store, a.logger, opts...).ExportXLSX(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(a.stdout, "Wrote %s\n", *out)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := newFlags("history")
	limit := fs.Int("limit", 20, "number of openings to list")
	summary := fs.Bool("summary", false, "print counts per category instead")
	if err := parse(fs, args); err != nil {
		return err
	}
	if a.history == nil {
		return fmt.Errorf("history is disabled; set %s", common.KeyHistoryDB)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if *summary {
		counts, err := a.history.CountByCategory(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(counts))
		for n := range counts {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(tw, "%s\t%d\n", n, counts[n])
		}
		return nil
	}

	rows, err := a.history.List(ctx, *limit)
	if err != nil {
		return err
	}
	for _, o := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%q\n",
			o.CreatedAt.Local().Format(time.DateTime), o.Category, o.Item, o.Status, o.RawText)
	}
	return nil
}

func runSettings(path string, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: settings show|set KEY=VALUE...|reset", errUsage)
	}
	switch args[0] {
	case "show":
		values, err := settings.Load(path)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		for _, k := range common.SettingKeys() {
			if v, ok := values[k]; ok {
				fmt.Fprintf(tw, "%s\t%v\n", k, v)
			}
		}
		return tw.Flush()
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("%w: settings set KEY=VALUE...", errUsage)
		}
		values, err := settings.Load(path)
		if err != nil {
			// a broken file is replaced rather than blocking every edit
			values = map[string]any{}
		}
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("%w: expected KEY=VALUE, got %q", errUsage, kv)
			}
			if err := settings.Set(values, strings.TrimSpace(k), v); err != nil {
				return err
			}
		}
		n, err := settings.Save(path, values)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved %d settings to %s\n", n, path)
		return nil
	case "reset":
		removed, err := settings.Reset(path)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(stdout, "Removed %s\n", path)
		} else {
			fmt.Fprintln(stdout, "No saved settings.")
		}
		return nil
	}
	return fmt.Errorf("%w: unknown settings action %q", errUsage, args[0])
}
