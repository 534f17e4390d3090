package gizmo

import "github.com/wudi/pdfoverlay/coords"

// Chrome is the visual frame drawn around an overlay's content: a border,
// padding inside it and the handles on it. Overlay geometry always describes
// the content box; the frame is derived from it.
type Chrome struct {
	Border       float64
	Padding      float64
	HandleSize   float64
	RotateOffset float64
}

// DefaultChrome matches the stock stylesheet.
var DefaultChrome = Chrome{Border: 2, Padding: 6, HandleSize: 10, RotateOffset: 24}

// Inset is the distance between the frame's outer edge and the content.
func (c Chrome) Inset() float64 { return c.Border + c.Padding }

// Outer grows a content box to the frame box.
func (c Chrome) Outer(content coords.Rect) coords.Rect { return content.Inset(-c.Inset()) }

// Inner shrinks a frame box to its content box.
func (c Chrome) Inner(frame coords.Rect) coords.Rect { return frame.Inset(c.Inset()) }
