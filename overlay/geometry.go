package overlay

import "github.com/wudi/pdfoverlay/coords"

// CanvasRect is the overlay's box in its own reference canvas space. Point
// annotations report a zero extent.
func (o Overlay) CanvasRect() coords.Rect {
	r := coords.Rect{X: o.Position.X, Y: o.Position.Y}
	if o.Size != nil {
		r.W, r.H = o.Size.Width, o.Size.Height
	}
	return r
}

// DisplayRect re-derives the box for a canvas of the current size. The
// overlay itself is not modified.
func (o Overlay) DisplayRect(current coords.Size) coords.Rect {
	sx, sy, err := coords.DisplayScale(current, o.ReferenceCanvasSize)
	if err != nil {
		return o.CanvasRect()
	}
	return o.CanvasRect().Scale(sx, sy)
}

// Rebase rewrites position, size and pixel-valued styling into the current
// canvas space and stamps current as the new reference. It is the only place
// ReferenceCanvasSize changes, and is called when an edit is committed
// against the canvas in effect.
func (o *Overlay) Rebase(current coords.Size) {
	if !current.Valid() {
		return
	}
	if !o.ReferenceCanvasSize.Valid() {
		o.ReferenceCanvasSize = current
		return
	}
	sx, sy, err := coords.DisplayScale(current, o.ReferenceCanvasSize)
	if err != nil || (sx == 1 && sy == 1) {
		o.ReferenceCanvasSize = current
		return
	}
	o.Position = o.Position.Scale(sx, sy)
	if o.Size != nil {
		o.Size.Width *= sx
		o.Size.Height *= sy
	}
	if o.Text != nil {
		o.Text.FontSize *= sy
	}
	if o.Rect != nil {
		o.Rect.BorderFade *= sx
	}
	o.ReferenceCanvasSize = current
}

// SetCanvasRect writes a box already expressed in the reference space.
func (o *Overlay) SetCanvasRect(r coords.Rect) {
	o.Position = r.Origin()
	if o.Size == nil {
		o.Size = &Size{}
	}
	o.Size.Width, o.Size.Height = r.W, r.H
}
