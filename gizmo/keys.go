package gizmo

import "github.com/wudi/pdfoverlay/coords"

type Key int

const (
	KeyOther Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyDelete
	KeyBackspace
	KeyEscape
)

// Focus is where keyboard input is going.
type Focus struct {
	PointerOverCanvas bool
	InFormField       bool
}

// KeyDown handles editing keys and reports whether the key was consumed.
// Keys typed into form fields are never consumed.
func (c *Controller) KeyDown(k Key, mods Modifiers, f Focus) bool {
	if f.InFormField || c.state != Idle {
		return false
	}
	sel, ok := c.store.Selected()
	if !ok {
		return false
	}
	switch k {
	case KeyEscape:
		c.store.Deselect()
		return true
	case KeyDelete, KeyBackspace:
		return c.Delete(sel)
	case KeyLeft, KeyRight, KeyUp, KeyDown:
		if !f.PointerOverCanvas {
			return false
		}
		step := NudgeStep
		if mods.Precision {
			step = FineNudgeStep
		}
		var d coords.Point
		switch k {
		case KeyLeft:
			d.X = -step
		case KeyRight:
			d.X = step
		case KeyUp:
			d.Y = -step
		case KeyDown:
			d.Y = step
		}
		return c.Nudge(sel, d)
	}
	return false
}

// Nudge moves an overlay by d canvas pixels and records it in history.
func (c *Controller) Nudge(index int, d coords.Point) bool {
	o, ok := c.store.Get(index)
	if !ok {
		return false
	}
	o.Rebase(c.canvas)
	o.Position = o.Position.Add(d)
	if err := c.write(index, o); err != nil {
		return false
	}
	c.store.Commit()
	return true
}
