package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/stats"
)

// Sheet names in the exported workbook.
const (
	ItemsSheet         = "Items"
	ProbabilitiesSheet = "Probabilities"
	HistorySheet       = "History"
)

// Source supplies the current tally.
type Source interface {
	Categories() (entity.Tally, error)
}

// HistoryLister supplies recent openings for the optional history sheet.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]entity.Opening, error)
}

// Service renders the tally as an XLSX workbook.
type Service struct {
	source       Source
	history      HistoryLister
	historyLimit int
	logger       *slog.Logger
}

type Option func(*Service)

// WithHistory adds a History sheet holding up to limit recent openings.
func WithHistory(h HistoryLister, limit int) Option {
	return func(s *Service) {
		s.history = h
		s.historyLimit = limit
	}
}

func NewService(source Source, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{source: source, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ExportXLSX returns the workbook bytes. Categories appear rarest first,
// items in file order within each category.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	tally, err := s.source.Categories()
	if err != nil {
		return nil, fmt.Errorf("read tally: %w", err)
	}
	ordered := make(entity.Tally, len(tally))
	copy(ordered, tally)
	sort.SliceStable(ordered, func(i, j int) bool {
		return constants.CategoryOrder(ordered[i].Name) < constants.CategoryOrder(ordered[j].Name)
	})

	f := excelize.NewFile()
	defer f.Close()

	// the default "Sheet1" becomes Items
	if err := f.SetSheetName("Sheet1", ItemsSheet); err != nil {
		return nil, err
	}
	rows := writeItems(f, ordered)

	if _, err := f.NewSheet(ProbabilitiesSheet); err != nil {
		return nil, err
	}
	writeProbabilities(f, stats.Report(ordered))

	var opened int
	if s.history != nil {
		openings, err := s.history.List(ctx, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		if _, err := f.NewSheet(HistorySheet); err != nil {
			return nil, err
		}
		writeHistory(f, openings)
		opened = len(openings)
	}

	activeIndex, _ := f.GetSheetIndex(ItemsSheet)
	f.SetActiveSheet(activeIndex)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"categories", len(ordered),
		"rows", rows,
		"history_rows", opened,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func writeItems(f *excelize.File, tally entity.Tally) int {
	writeHeader(f, ItemsSheet, []string{"Category", "Item", "Rarity", "Type", "Count"})
	row := 2
	for _, cs := range tally {
		for _, it := range cs.Items {
			itemType := constants.ExtractType(it.Name)
			if !constants.IsKnownType(itemType) {
				itemType = ""
			}
			writeRow(f, ItemsSheet, row, cs.Name, it.Name, string(constants.RarityFromString(it.Name)), itemType, it.Count)
			row++
		}
	}
	_ = f.SetColWidth(ItemsSheet, "A", "A", 22)
	_ = f.SetColWidth(ItemsSheet, "B", "B", 36)
	_ = f.SetColWidth(ItemsSheet, "C", "D", 16)
	return row - 2
}

func writeProbabilities(f *excelize.File, report []stats.CategoryReport) {
	writeHeader(f, ProbabilitiesSheet, []string{"Category", "Rarity", "Count", "Probability"})
	row := 2
	for _, r := range report {
		for _, p := range r.Rarities {
			writeRow(f, ProbabilitiesSheet, row, r.Category, string(p.Rarity), p.Count, p.Probability)
			row++
		}
	}
	_ = f.SetColWidth(ProbabilitiesSheet, "A", "A", 22)
	_ = f.SetColWidth(ProbabilitiesSheet, "B", "B", 16)
}

func writeHistory(f *excelize.File, openings []entity.Opening) {
	writeHeader(f, HistorySheet, []string{"Recorded At", "Session", "Category", "Item", "Status", "OCR Text"})
	for i, o := range openings {
		writeRow(f, HistorySheet, i+2,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.SessionID,
			o.Category,
			o.Item,
			o.Status,
			truncate(o.RawText, 140),
		)
	}
	_ = f.SetColWidth(HistorySheet, "A", "A", 22)
	_ = f.SetColWidth(HistorySheet, "C", "D", 28)
	_ = f.SetColWidth(HistorySheet, "F", "F", 48)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
