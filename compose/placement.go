package compose

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/engine"
	"github.com/wudi/pdfoverlay/fonts"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/recovery"
)

var (
	defaultTextColor = color.NRGBA{A: 0xff}
	defaultFillColor = color.NRGBA{R: 0xff, G: 0xff, A: 0xff}
)

// placement converts the overlay box to PDF space. Degenerate boxes go
// through the recovery policy; Fix and Warn clamp to coords.MinPDFExtent.
func (c *Compositor) placement(ctx context.Context, o overlay.Overlay, page coords.Size, loc recovery.Location) (engine.Placement, error) {
	rect, err := pdfRect(o, page)
	if err != nil {
		if !errors.Is(err, coords.ErrInvalidGeometry) {
			return engine.Placement{}, err
		}
		loc.Stage = recovery.StageGeometry
		if _, err := c.decide(ctx, err, loc); err != nil {
			return engine.Placement{}, err
		}
		rect = clampKeepTop(rect)
	}
	return engine.Placement{
		Page:     o.PageIndex + 1,
		Rect:     rect,
		Rotation: coords.ToPDFRotation(o.Rotation),
		Opacity:  o.OpacityFraction(),
	}, nil
}

func pdfRect(o overlay.Overlay, page coords.Size) (coords.Rect, error) {
	if o.Kind.TextLike() {
		return textRect(o, page)
	}
	return coords.ToPDFSpace(o.CanvasRect(), o.ReferenceCanvasSize, page)
}

// textRect anchors the measured text block at the overlay position: the top
// edge is the transformed canvas y, so the baseline box hangs below it.
// The box is measured with the Go fonts the canvas gizmo also uses, while
// the engine stamps a standard 14 font with its own metrics. Width and
// height are therefore approximate; only the top-left anchor is exact.
func textRect(o overlay.Overlay, page coords.Size) (coords.Rect, error) {
	top, err := coords.PointToPDF(o.Position, o.ReferenceCanvasSize, page)
	if err != nil {
		return coords.Rect{X: top.X, Y: top.Y}, err
	}
	m, err := fonts.Measure(o.Text.Content, fontStyle(o), fontPoints(o, page))
	if err != nil {
		return coords.Rect{}, fmt.Errorf("measure text: %w", err)
	}
	r := coords.Rect{X: top.X, Y: top.Y - m.Height, W: m.Width, H: m.Height}
	if !(r.W > 0) || !(r.H > 0) {
		return r, fmt.Errorf("%w: w=%g,h=%g", coords.ErrInvalidGeometry, r.W, r.H)
	}
	return r, nil
}

func clampKeepTop(r coords.Rect) coords.Rect {
	top := r.Y + r.H
	clamped, _ := coords.ClampMin(r, coords.MinPDFExtent)
	if !math.IsNaN(top) && !math.IsInf(top, 0) {
		clamped.Y = top - clamped.H
	}
	return clamped
}

// fontPoints converts the canvas font size with the vertical page scale.
func fontPoints(o overlay.Overlay, page coords.Size) float64 {
	size := o.Text.FontSize
	if size <= 0 {
		size = overlay.DefaultFontSize
	}
	return size * page.H / o.ReferenceCanvasSize.H
}

func fontStyle(o overlay.Overlay) fonts.Style {
	return fonts.Style{Family: o.Text.FontFamily, Bold: o.Text.Bold, Italic: o.Text.Italic}
}

func textStyle(o overlay.Overlay, page coords.Size) (engine.TextStyle, error) {
	fg, err := overlay.ParseColor(o.Text.Color, defaultTextColor)
	if err != nil {
		return engine.TextStyle{}, err
	}
	style := engine.TextStyle{
		Font:  fonts.CoreFont(fontStyle(o)),
		Size:  fontPoints(o, page),
		Color: fg,
		Align: o.Text.Align,
	}
	if o.Text.Highlight != "" {
		bg, err := overlay.ParseColor(o.Text.Highlight, defaultFillColor)
		if err != nil {
			return engine.TextStyle{}, err
		}
		style.Background = &bg
	}
	return style, nil
}

func rectStyle(o overlay.Overlay, page coords.Size) (engine.RectStyle, error) {
	fill, err := overlay.ParseColor(o.Rect.FillColor, defaultFillColor)
	if err != nil {
		return engine.RectStyle{}, err
	}
	return engine.RectStyle{
		Fill:  fill,
		Alpha: o.Rect.Alpha,
		Fade:  o.Rect.BorderFade * page.W / o.ReferenceCanvasSize.W,
	}, nil
}
