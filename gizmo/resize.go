package gizmo

import (
	"math"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/overlay"
)

// resize computes the overlay for the pointer at p during a resize gesture.
// The pointer delta is taken in the overlay's own rotated frame, and the
// edge or corner opposite the handle stays fixed on screen.
func (c *Controller) resize(p coords.Point) overlay.Overlay {
	g := &c.g
	r0 := g.rect
	// Unmeasured point annotations start from the floor size.
	r0.W = math.Max(r0.W, c.minW)
	r0.H = math.Max(r0.H, c.minH)
	rot := g.start.Rotation
	d := coords.Rotate(coords.Radians(-rot)).TransformVector(p.Sub(g.pointer))

	w, h := r0.W, r0.H
	switch g.handle {
	case HandleE:
		w = math.Max(r0.W+d.X, c.minW)
	case HandleW:
		w = math.Max(r0.W-d.X, c.minW)
	case HandleS:
		h = math.Max(r0.H+d.Y, c.minH)
	case HandleN:
		h = math.Max(r0.H-d.Y, c.minH)
	case HandleSE, HandleSW:
		dx := d.X
		if g.handle == HandleSW {
			dx = -dx
		}
		base := coords.Size{W: r0.W, H: r0.H}
		if ar := g.start.AspectRatio; ar != nil && *ar > 0 {
			base.H = r0.W / *ar
		}
		scale := math.Max((r0.W+dx)/r0.W, (r0.H+d.Y)/r0.H)
		scale = math.Max(scale, math.Max(c.minW/base.W, c.minH/base.H))
		w, h = base.W*scale, base.H*scale
	}

	// Place the new box so its anchor keeps its unrotated coordinates.
	r1 := coords.Rect{X: r0.X, Y: r0.Y, W: w, H: h}
	var anchor coords.Point
	switch g.handle {
	case HandleE, HandleS, HandleSE:
		anchor = r0.Origin()
	case HandleW:
		r1.X = r0.X + r0.W - w
		anchor = coords.Point{X: r0.X + r0.W, Y: r0.Y}
	case HandleN:
		r1.Y = r0.Y + r0.H - h
		anchor = coords.Point{X: r0.X, Y: r0.Y + r0.H}
	case HandleSW:
		r1.X = r0.X + r0.W - w
		anchor = coords.Point{X: r0.X + r0.W, Y: r0.Y}
	}
	// Rotation is about the center, which moved; shift back so the anchor
	// stays put on screen.
	if rot != 0 {
		shift := toScreen(anchor, r0, rot).Sub(toScreen(anchor, r1, rot))
		r1.X += shift.X
		r1.Y += shift.Y
	}

	next := g.start.Clone()
	next.SetCanvasRect(r1)
	if next.Kind.TextLike() && next.Text != nil && g.start.Text != nil {
		next.Text.FontSize = g.start.Text.FontSize * w / r0.W
	}
	return next
}
