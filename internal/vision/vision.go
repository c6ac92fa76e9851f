// Package vision holds the screen geometry and pixel-search helpers used
// around OCR: named regions of the game window, target colours, and a
// Vision interface for capturing and searching them.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
)

// Region is a window-relative rectangle, x2/y2 exclusive.
type Region struct {
	X1, Y1, X2, Y2 int
}

func (r Region) Rect() image.Rectangle { return image.Rect(r.X1, r.Y1, r.X2, r.Y2) }

func (r Region) Empty() bool { return r.X2 <= r.X1 || r.Y2 <= r.Y1 }

// Regions of the 1920x1080 game window read during an opening.
var (
	DropCheckRegion   = Region{100, 100, 280, 281}
	DropFoundRegion   = Region{40, 330, 160, 360}
	ItemOpenRegion    = Region{725, 200, 1195, 240}
	RewardItemsRegion = Region{30, 130, 450, 190}
	OpenButtonCheck   = Region{45, 895, 260, 940}
)

// NamedRegions maps the names accepted on the command line to regions.
var NamedRegions = map[string]Region{
	"drop_check":   DropCheckRegion,
	"drop_found":   DropFoundRegion,
	"item_open":    ItemOpenRegion,
	"reward_items": RewardItemsRegion,
	"open_button":  OpenButtonCheck,
}

// Color is an opaque RGB colour.
type Color struct {
	R, G, B uint8
}

var (
	DropCheckColor  = Color{38, 62, 107}
	OpenButtonColor = Color{0, 2, 3}
)

// ColorsMatch reports whether every channel of a and b differs by at most tol.
func ColorsMatch(a, b Color, tol int) bool {
	return absDiff(a.R, b.R) <= tol && absDiff(a.G, b.G) <= tol && absDiff(a.B, b.B) <= tol
}

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

func fromColor(c color.Color) Color {
	r, g, b, _ := c.RGBA()
	return Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// SearchPixel scans the part of img covered by region, column by column,
// and returns the window-relative position of the first pixel within tol of
// target. img is addressed in window coordinates.
func SearchPixel(img image.Image, target Color, region Region, tol int) (image.Point, bool) {
	area := region.Rect().Intersect(img.Bounds())
	for x := area.Min.X; x < area.Max.X; x++ {
		for y := area.Min.Y; y < area.Max.Y; y++ {
			if ColorsMatch(fromColor(img.At(x, y)), target, tol) {
				return image.Point{X: x, Y: y}, true
			}
		}
	}
	return image.Point{}, false
}

// Vision captures regions of the game window and searches them for colours.
type Vision interface {
	CaptureRegion(ctx context.Context, r Region) (image.Image, error)
	FindColor(ctx context.Context, c Color, r Region, tolerance int) (image.Point, bool, error)
}

var ErrOutOfBounds = errors.New("region outside screenshot")

// ImageVision serves regions out of a single full-window screenshot.
type ImageVision struct {
	img image.Image
}

var _ Vision = (*ImageVision)(nil)

func NewImageVision(img image.Image) *ImageVision { return &ImageVision{img: img} }

// LoadScreenshot decodes a PNG or JPEG screenshot from disk.
func LoadScreenshot(path string) (*ImageVision, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported screenshot extension %q", ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewImageVision(img), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CaptureRegion returns the part of the screenshot inside r. A region that
// does not overlap the screenshot is an error.
func (v *ImageVision) CaptureRegion(ctx context.Context, r Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	area := r.Rect().Intersect(v.img.Bounds())
	if r.Empty() || area.Empty() {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, r)
	}
	if si, ok := v.img.(subImager); ok {
		return si.SubImage(area), nil
	}
	out := image.NewRGBA(area)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			out.Set(x, y, v.img.At(x, y))
		}
	}
	return out, nil
}

func (v *ImageVision) FindColor(ctx context.Context, c Color, r Region, tolerance int) (image.Point, bool, error) {
	if err := ctx.Err(); err != nil {
		return image.Point{}, false, err
	}
	p, ok := SearchPixel(v.img, c, r, tolerance)
	return p, ok, nil
}
