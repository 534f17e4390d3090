// Package gizmo turns pointer and keyboard input on the page canvas into
// overlay edits. It owns the gesture state machine; the overlays themselves
// live in a store.Store.
package gizmo

import (
	"math"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/fonts"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/store"
)

// State of the canvas-wide gesture.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
	Rotating
)

func (s State) String() string {
	return [...]string{"idle", "dragging", "resizing", "rotating"}[s]
}

const (
	MinWidth      = 30.0
	MinHeight     = 20.0
	NudgeStep     = 10.0
	FineNudgeStep = 1.0
	SnapStep      = 15.0
)

// Modifiers held during a pointer or key event.
type Modifiers struct {
	// Snap rounds rotation to SnapStep.
	Snap bool
	// Precision nudges by FineNudgeStep.
	Precision bool
}

// Confirmer approves deletions.
type Confirmer interface {
	ConfirmDelete(o overlay.Overlay) bool
}

type ConfirmFunc func(overlay.Overlay) bool

func (f ConfirmFunc) ConfirmDelete(o overlay.Overlay) bool { return f(o) }

// Measurer returns the content size, in the overlay's reference space, of
// an overlay that has no explicit size.
type Measurer func(o overlay.Overlay) coords.Size

// MeasureText sizes text-like point annotations with fonts.Measure.
func MeasureText(o overlay.Overlay) coords.Size {
	if o.Text == nil {
		return coords.Size{}
	}
	size := o.Text.FontSize
	if size <= 0 {
		size = overlay.DefaultFontSize
	}
	m, err := fonts.Measure(o.Text.Content, fonts.Style{Family: o.Text.FontFamily, Bold: o.Text.Bold, Italic: o.Text.Italic}, size)
	if err != nil {
		return coords.Size{}
	}
	return coords.Size{W: m.Width, H: m.Height}
}

type Option func(*Controller)

func WithChrome(ch Chrome) Option {
	return func(c *Controller) { c.chrome = ch }
}

// WithConfirmer guards deletion. Without one deletions are unconditional.
func WithConfirmer(cf Confirmer) Option {
	return func(c *Controller) { c.confirm = cf }
}

func WithMinSize(w, h float64) Option {
	return func(c *Controller) { c.minW, c.minH = w, h }
}

func WithMeasurer(m Measurer) Option {
	return func(c *Controller) { c.measure = m }
}

func WithLogger(l observability.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// Hit is the result of a hit test. Index is -1 when nothing was hit.
type Hit struct {
	Index  int
	Handle Handle
}

type gesture struct {
	index   int
	handle  Handle
	pointer coords.Point
	// start is the overlay rebased onto the canvas in effect at gesture start.
	start  overlay.Overlay
	rect   coords.Rect
	offset float64
	angle  float64
	moved  bool
}

// Controller is single-threaded, like the store it edits.
type Controller struct {
	store      *store.Store
	canvas     coords.Size
	page       int
	chrome     Chrome
	confirm    Confirmer
	measure    Measurer
	minW, minH float64
	log        observability.Logger

	state State
	g     gesture
}

// New returns a controller for one page canvas of the given pixel size.
func New(s *store.Store, canvas coords.Size, opts ...Option) *Controller {
	c := &Controller{
		store:   s,
		canvas:  canvas,
		chrome:  DefaultChrome,
		measure: MeasureText,
		minW:    MinWidth,
		minH:    MinHeight,
		log:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State        { return c.state }
func (c *Controller) Canvas() coords.Size { return c.canvas }
func (c *Controller) Page() int           { return c.page }

// SetCanvasSize changes the display size. Overlays are not modified; they are
// re-derived for display. A running gesture ends first.
func (c *Controller) SetCanvasSize(sz coords.Size) {
	if !sz.Valid() {
		return
	}
	c.Cancel()
	c.canvas = sz
}

// SetPage switches the canvas to another page (0-based).
func (c *Controller) SetPage(page int) {
	c.Cancel()
	c.page = page
}

// ContentRect is the overlay's content box on the current canvas.
func (c *Controller) ContentRect(o overlay.Overlay) coords.Rect {
	r := o.CanvasRect()
	if o.Size == nil && c.measure != nil {
		sz := c.measure(o)
		r.W, r.H = sz.W, sz.H
	}
	if sx, sy, err := coords.DisplayScale(c.canvas, o.ReferenceCanvasSize); err == nil {
		r = r.Scale(sx, sy)
	}
	return r
}

// HitTest resolves the topmost gizmo part under p. Handles belong to the
// selected overlay only; bodies are tested from the last overlay down.
func (c *Controller) HitTest(p coords.Point) Hit {
	if sel, ok := c.store.Selected(); ok {
		if o, _ := c.store.Get(sel); o.PageIndex == c.page {
			frame := c.chrome.Outer(c.ContentRect(o))
			if h := c.chrome.hitHandle(frame, toLocal(p, frame, o.Rotation)); h != HandleNone {
				return Hit{Index: sel, Handle: h}
			}
		}
	}
	for i := c.store.Len() - 1; i >= 0; i-- {
		o, _ := c.store.Get(i)
		if o.PageIndex != c.page {
			continue
		}
		frame := c.chrome.Outer(c.ContentRect(o))
		if frame.Contains(toLocal(p, frame, o.Rotation)) {
			return Hit{Index: i, Handle: HandleBody}
		}
	}
	return Hit{Index: -1}
}

// PointerDown starts a gesture. It returns false when the event was ignored
// because a gesture already holds the pointer or nothing was hit; a miss
// also clears the selection.
func (c *Controller) PointerDown(p coords.Point, mods Modifiers) bool {
	if c.state != Idle {
		return false
	}
	hit := c.HitTest(p)
	switch hit.Handle {
	case HandleNone:
		c.store.Deselect()
		return false
	case HandleDelete:
		return c.Delete(hit.Index)
	}

	c.store.Select(hit.Index)
	o, ok := c.store.Get(hit.Index)
	if !ok {
		return false
	}
	o.Rebase(c.canvas)
	c.g = gesture{index: hit.Index, handle: hit.Handle, pointer: p, start: o, rect: c.ContentRect(o)}

	switch {
	case hit.Handle == HandleBody:
		c.state = Dragging
	case hit.Handle == HandleRotate:
		c.state = Rotating
		c.g.offset = pointerAngle(p, c.g.rect.Center()) - o.Rotation
		c.g.angle = o.Rotation
	case hit.Handle.Corner() || hit.Handle.Edge():
		c.state = Resizing
	}
	c.log.Debug("gesture start", observability.String("state", c.state.String()), observability.Int("index", hit.Index))
	return true
}

// PointerMove continues the running gesture. Every move writes into the
// store without recording history.
func (c *Controller) PointerMove(p coords.Point, mods Modifiers) {
	var next overlay.Overlay
	switch c.state {
	case Idle:
		return
	case Dragging:
		next = c.g.start.Clone()
		next.Position = c.g.start.Position.Add(p.Sub(c.g.pointer))
	case Resizing:
		next = c.resize(p)
	case Rotating:
		raw := pointerAngle(p, c.g.rect.Center()) - c.g.offset
		c.g.angle = coords.Unwrap(c.g.angle, raw)
		next = c.g.start.Clone()
		next.Rotation = c.g.angle
		if mods.Snap {
			next.Rotation = coords.Snap(c.g.angle, SnapStep)
		}
	}
	if err := c.write(c.g.index, next); err != nil {
		c.log.Warn("gesture target vanished", observability.Error("error", err))
		c.state, c.g = Idle, gesture{}
		return
	}
	c.g.moved = true
}

// PointerUp ends the gesture and records one history entry for it.
func (c *Controller) PointerUp(p coords.Point, mods Modifiers) {
	c.end()
}

// Cancel ends a gesture whose pointer capture was lost. The overlay keeps
// its last written state, which is committed like a normal pointer-up.
func (c *Controller) Cancel() {
	c.end()
}

func (c *Controller) end() {
	if c.state == Idle {
		return
	}
	if c.g.moved {
		c.store.Commit()
	}
	c.log.Debug("gesture end", observability.String("state", c.state.String()), observability.Int("index", c.g.index))
	c.state, c.g = Idle, gesture{}
}

// write replaces the overlay at index, keeping its transient preview.
func (c *Controller) write(index int, next overlay.Overlay) error {
	return c.store.Update(index, func(o *overlay.Overlay) {
		preview := o.Preview
		*o = next
		o.Preview = preview
	})
}

// Delete removes the overlay at index after confirmation.
func (c *Controller) Delete(index int) bool {
	o, ok := c.store.Get(index)
	if !ok {
		return false
	}
	if c.confirm != nil && !c.confirm.ConfirmDelete(o) {
		return false
	}
	return c.store.Remove(index) == nil
}

// pointerAngle is the clockwise screen angle of p around center, in degrees.
func pointerAngle(p, center coords.Point) float64 {
	return coords.Degrees(math.Atan2(p.Y-center.Y, p.X-center.X))
}
