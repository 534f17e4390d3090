package gizmo

import (
	"math"

	"github.com/wudi/pdfoverlay/coords"
)

// Handle is the part of a gizmo under the pointer.
type Handle int

const (
	HandleNone Handle = iota
	HandleBody
	HandleRotate
	HandleDelete
	HandleN
	HandleS
	HandleE
	HandleW
	HandleSE
	HandleSW
)

var handleNames = [...]string{"none", "body", "rotate", "delete", "n", "s", "e", "w", "se", "sw"}

func (h Handle) String() string {
	if int(h) < len(handleNames) {
		return handleNames[h]
	}
	return "handle?"
}

// Corner handles resize with the aspect ratio locked.
func (h Handle) Corner() bool { return h == HandleSE || h == HandleSW }

// Edge handles resize one dimension freely.
func (h Handle) Edge() bool { return h >= HandleN && h <= HandleW }

// resizeHandles in hit-test priority order.
var resizeHandles = []Handle{HandleSE, HandleSW, HandleN, HandleS, HandleE, HandleW}

// handleCenter returns where h is drawn on frame, in the unrotated frame.
func (c Chrome) handleCenter(h Handle, frame coords.Rect) coords.Point {
	l, t := frame.X, frame.Y
	r, b := frame.X+frame.W, frame.Y+frame.H
	mx, my := l+frame.W/2, t+frame.H/2
	switch h {
	case HandleN:
		return coords.Point{X: mx, Y: t}
	case HandleS:
		return coords.Point{X: mx, Y: b}
	case HandleE:
		return coords.Point{X: r, Y: my}
	case HandleW:
		return coords.Point{X: l, Y: my}
	case HandleSE:
		return coords.Point{X: r, Y: b}
	case HandleSW:
		return coords.Point{X: l, Y: b}
	case HandleRotate:
		return coords.Point{X: mx, Y: t - c.RotateOffset}
	case HandleDelete:
		return coords.Point{X: r, Y: t}
	}
	return frame.Center()
}

// hitHandle returns the handle of a selected gizmo under local, a point
// already rotated into the gizmo's unrotated frame.
func (c Chrome) hitHandle(frame coords.Rect, local coords.Point) Handle {
	half := c.HandleSize / 2
	near := func(h Handle) bool {
		p := c.handleCenter(h, frame)
		return math.Abs(local.X-p.X) <= half && math.Abs(local.Y-p.Y) <= half
	}
	for _, h := range []Handle{HandleDelete, HandleRotate} {
		if near(h) {
			return h
		}
	}
	for _, h := range resizeHandles {
		if near(h) {
			return h
		}
	}
	return HandleNone
}

// toLocal undoes the gizmo rotation about the frame center.
func toLocal(p coords.Point, frame coords.Rect, rotation float64) coords.Point {
	return coords.RotateAbout(-rotation, frame.Center()).Transform(p)
}

// toScreen applies the gizmo rotation about the frame center.
func toScreen(p coords.Point, frame coords.Rect, rotation float64) coords.Point {
	return coords.RotateAbout(rotation, frame.Center()).Transform(p)
}
