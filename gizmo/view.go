package gizmo

import (
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/overlay"
)

// View is what a renderer needs to draw one gizmo.
type View struct {
	Index    int
	Kind     overlay.Kind
	Content  coords.Rect
	Frame    coords.Rect
	Rotation float64
	Opacity  float64
	Selected bool
	Handles  []HandleView
}

// HandleView is a handle center in screen coordinates.
type HandleView struct {
	Handle Handle
	Center coords.Point
}

// Views lists the gizmos of the current page in z-order. Rotation is
// normalized for rendering.
func (c *Controller) Views() []View {
	sel, hasSel := c.store.Selected()
	var out []View
	for i, o := range c.store.List() {
		if o.PageIndex != c.page {
			continue
		}
		content := c.ContentRect(o)
		frame := c.chrome.Outer(content)
		v := View{
			Index:    i,
			Kind:     o.Kind,
			Content:  content,
			Frame:    frame,
			Rotation: coords.NormalizeDegrees(o.Rotation),
			Opacity:  o.OpacityFraction(),
			Selected: hasSel && sel == i,
		}
		if v.Selected {
			for _, h := range append([]Handle{HandleRotate, HandleDelete}, resizeHandles...) {
				v.Handles = append(v.Handles, HandleView{Handle: h, Center: toScreen(c.chrome.handleCenter(h, frame), frame, o.Rotation)})
			}
		}
		out = append(out, v)
	}
	return out
}
