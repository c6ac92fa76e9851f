package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/matcher"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/normalize"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/ocr"
)

// Tally is the part of the store the recorder writes to.
type Tally interface {
	Update(category, rawItem string) error
	Categories() (entity.Tally, error)
}

// History receives one row per recorded opening.
type History interface {
	Record(ctx context.Context, o entity.Opening) error
}

// Outcome describes what happened to one OCR line.
type Outcome struct {
	Category string
	Raw      string
	Item     string
	Status   constants.RecordStatus
	Score    float64
}

type Recorder struct {
	store     Tally
	matcher   *matcher.Matcher
	extractor ocr.TextExtractor
	ocrCfg    ocr.Config
	history   History
	logger    *slog.Logger
}

type Option func(*Recorder)

// WithHistory appends every recorded opening to h.
func WithHistory(h History) Option {
	return func(r *Recorder) { r.history = h }
}

func NewRecorder(store Tally, m *matcher.Matcher, extractor ocr.TextExtractor, cfg ocr.Config, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = matcher.New(matcher.DefaultThreshold, logger)
	}
	r := &Recorder{store: store, matcher: m, extractor: extractor, ocrCfg: cfg, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ReadCategory reads the drop category from img. The category is the last
// line of the text; it is normalized but never matched or stored.
func (r *Recorder) ReadCategory(ctx context.Context, img image.Image) (string, error) {
	text, err := r.extractor.ExtractText(common.WithRegion(ctx, "drop_found"), img, r.ocrCfg)
	if err != nil {
		return "", fmt.Errorf("read category: %w", err)
	}
	line := ocr.LastLine(text)
	if line == "" {
		r.logger.Warn("recorder.category.empty")
		return "", nil
	}
	known, err := r.store.Categories()
	if err != nil {
		return "", err
	}
	category := normalize.Normalize(line, known)
	r.logger.Info("recorder.category.ok", "raw", line, "category", category)
	return category, nil
}

// RecordItem reads the opened item from img and records the first line
// under category.
func (r *Recorder) RecordItem(ctx context.Context, category string, img image.Image) (Outcome, error) {
	text, err := r.extractor.ExtractText(common.WithRegion(ctx, "item_open"), img, r.ocrCfg)
	if err != nil {
		return Outcome{Category: category, Status: constants.RecordSkipped}, fmt.Errorf("read item: %w", err)
	}
	return r.RecordText(ctx, category, ocr.FirstLine(text))
}

// RecordText normalizes raw, resolves it against the known items and
// counts it. Text that matches nothing known is stored as normalized.
// Cancellation is honoured only before the store write; once Update starts
// it runs to completion.
func (r *Recorder) RecordText(ctx context.Context, category, raw string) (Outcome, error) {
	out := Outcome{Category: category, Raw: raw, Status: constants.RecordSkipped}

	known, err := r.store.Categories()
	if err != nil {
		return out, err
	}
	normalized := normalize.Normalize(raw, known)
	if normalized == "" {
		r.logger.Warn("recorder.item.empty", "category", category, "raw", raw)
		return out, nil
	}

	if m, ok := r.matcher.Match(normalized, known); ok {
		out.Item, out.Status, out.Score = m.Key, constants.RecordMatched, m.Score
	} else {
		out.Item, out.Status = normalized, constants.RecordVerbatim
	}

	if err := ctx.Err(); err != nil {
		return Outcome{Category: category, Raw: raw, Status: constants.RecordSkipped}, err
	}
	if err := r.store.Update(category, out.Item); err != nil {
		return out, err
	}
	r.logger.Info("recorder.item.ok",
		"category", category,
		"item", out.Item,
		"status", out.Status,
		"score", out.Score,
	)

	if r.history != nil {
		row := entity.Opening{
			ID:        uuid.New(),
			SessionID: common.SessionIDFromContext(ctx),
			Category:  category,
			RawText:   raw,
			Item:      out.Item,
			Status:    string(out.Status),
			CreatedAt: time.Now().UTC(),
		}
		if err := r.history.Record(context.WithoutCancel(ctx), row); err != nil {
			r.logger.Warn("recorder.history.failed", "item", out.Item, "error", err)
		}
	}
	return out, nil
}
