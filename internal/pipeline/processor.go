// Package pipeline turns captured screen regions into tally updates.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/vision"
)

// Processor reads one opened drop off the screen: the category from the
// drop banner, then the item from the reveal panel.
type Processor struct {
	Logger    *slog.Logger
	Vision    vision.Vision
	Recorder  *Recorder
	Tolerance int
}

func NewProcessor(logger *slog.Logger, v vision.Vision, rec *Recorder, tolerance int) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Vision: v, Recorder: rec, Tolerance: tolerance}
}

// DropAvailable reports whether the drop indicator pixel is on screen.
func (p *Processor) DropAvailable(ctx context.Context) (bool, error) {
	_, ok, err := p.Vision.FindColor(ctx, vision.DropCheckColor, vision.DropCheckRegion, p.Tolerance)
	return ok, err
}

// ProcessDrop reads the category, then records the item. An unreadable
// category skips the item read.
func (p *Processor) ProcessDrop(ctx context.Context) (Outcome, error) {
	img, err := p.Vision.CaptureRegion(ctx, vision.DropFoundRegion)
	if err != nil {
		p.Logger.Error("processor.capture.failed", "region", "drop_found", "err", err)
		return Outcome{}, err
	}
	category, err := p.Recorder.ReadCategory(ctx, img)
	if err != nil {
		p.Logger.Error("processor.category.failed", "err", err)
		return Outcome{}, err
	}
	if category == "" {
		return Outcome{Status: constants.RecordSkipped}, nil
	}

	img, err = p.Vision.CaptureRegion(ctx, vision.ItemOpenRegion)
	if err != nil {
		p.Logger.Error("processor.capture.failed", "region", "item_open", "err", err)
		return Outcome{Category: category}, err
	}
	out, err := p.Recorder.RecordItem(ctx, category, img)
	if err != nil {
		p.Logger.Error("processor.item.failed", "category", category, "err", err)
		return out, err
	}
	p.Logger.Info("processor.drop.ok", "category", category, "item", out.Item, "status", out.Status)
	return out, nil
}
