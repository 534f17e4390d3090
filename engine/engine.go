// Package engine is the boundary to the PDF library that performs the
// actual page drawing. Every draw call reads one file and writes another;
// implementations never modify their input.
package engine

import (
	"context"
	"fmt"
	"image/color"

	"github.com/wudi/pdfoverlay/coords"
)

// Placement positions one stamp on a page.
type Placement struct {
	// Page is 1-based.
	Page int
	// Rect is in PDF points with a bottom-left origin and is the unrotated
	// box of the stamp.
	Rect coords.Rect
	// Rotation is counterclockwise degrees about the center of Rect.
	Rotation float64
	// Opacity is 0..1.
	Opacity float64
}

func (p Placement) String() string {
	return fmt.Sprintf("page %d %s rot %.4g op %.3g", p.Page, p.Rect, p.Rotation, p.Opacity)
}

// TextStyle is a text stamp in PDF units.
type TextStyle struct {
	// Font is a standard 14 font name such as "Helvetica-Bold".
	Font       string
	Size       float64
	Color      color.NRGBA
	Background *color.NRGBA
	Align      string
}

// RectStyle is a filled rectangle stamp. Fade is in points.
type RectStyle struct {
	Fill  color.NRGBA
	Alpha float64
	Fade  float64
}

// Engine draws a single overlay per call.
type Engine interface {
	PageSizes(ctx context.Context, path string) ([]coords.Size, error)
	DrawText(ctx context.Context, in, out string, p Placement, text string, style TextStyle) error
	DrawImage(ctx context.Context, in, out string, p Placement, imagePath string) error
	DrawRectangle(ctx context.Context, in, out string, p Placement, style RectStyle) error
}

// Part selects pages, 1-based and in output order, from one file.
type Part struct {
	Path  string
	Pages []int
}

// Assembler builds a new document from pages of existing ones.
type Assembler interface {
	Assemble(ctx context.Context, parts []Part, out string) error
}
