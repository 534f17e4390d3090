package coords

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry reports a transform that produced a non-finite or
// non-positive rectangle, or was given unusable sizes.
var ErrInvalidGeometry = errors.New("invalid geometry")

// MinPDFExtent is the smallest width/height, in points, substituted for a
// degenerate rectangle by ClampMin.
const MinPDFExtent = 10.0

// Point is a location in either space; the space is implied by the caller.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Point) Scale(sx, sy float64) Point { return Point{X: p.X * sx, Y: p.Y * sy} }

// Size is a width/height pair. Canvas sizes use W/H in JSON to match the
// referenceCanvasSize wire field.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether both extents are finite and positive.
func (s Size) Valid() bool { return finitePositive(s.W) && finitePositive(s.H) }

func (s Size) String() string { return fmt.Sprintf("%gx%g", s.W, s.H) }

// Rect is an axis-aligned rectangle anchored at its origin corner: top-left in
// canvas space, bottom-left in PDF space.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }
func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

// Scale multiplies origin and extent.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// Inset shrinks r by d on every side; a negative d grows it.
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, W: r.W - 2*d, H: r.H - 2*d}
}

// Contains uses half-open bounds.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

func (r Rect) String() string {
	return fmt.Sprintf("x=%.2f,y=%.2f,w=%.2f,h=%.2f", r.X, r.Y, r.W, r.H)
}

// ToPDFSpace converts a canvas rectangle captured against ref into PDF points
// on a page of the given point size.
func ToPDFSpace(canvas Rect, ref, page Size) (Rect, error) {
	sx, sy, err := scales(ref, page)
	if err != nil {
		return Rect{}, err
	}
	out := Rect{
		X: canvas.X * sx,
		Y: page.H - canvas.Y*sy - canvas.H*sy,
		W: canvas.W * sx,
		H: canvas.H * sy,
	}
	if err := checkRect(out); err != nil {
		return out, err
	}
	return out, nil
}

// ToCanvasSpace is the inverse of ToPDFSpace.
func ToCanvasSpace(pdf Rect, ref, page Size) (Rect, error) {
	sx, sy, err := scales(ref, page)
	if err != nil {
		return Rect{}, err
	}
	out := Rect{
		X: pdf.X / sx,
		Y: (page.H - pdf.Y - pdf.H) / sy,
		W: pdf.W / sx,
		H: pdf.H / sy,
	}
	if err := checkRect(out); err != nil {
		return out, err
	}
	return out, nil
}

// PointToPDF maps a single canvas point; no extent is involved.
func PointToPDF(p Point, ref, page Size) (Point, error) {
	sx, sy, err := scales(ref, page)
	if err != nil {
		return Point{}, err
	}
	out := Point{X: p.X * sx, Y: page.H - p.Y*sy}
	if !finite(out.X) || !finite(out.Y) {
		return out, fmt.Errorf("%w: point %v", ErrInvalidGeometry, out)
	}
	return out, nil
}

// PointToCanvas is the inverse of PointToPDF.
func PointToCanvas(p Point, ref, page Size) (Point, error) {
	sx, sy, err := scales(ref, page)
	if err != nil {
		return Point{}, err
	}
	out := Point{X: p.X / sx, Y: (page.H - p.Y) / sy}
	if !finite(out.X) || !finite(out.Y) {
		return out, fmt.Errorf("%w: point %v", ErrInvalidGeometry, out)
	}
	return out, nil
}

// DisplayScale returns the factors that re-derive geometry captured against
// ref for display on a canvas of the current size. It never changes ref.
func DisplayScale(current, ref Size) (sx, sy float64, err error) {
	if !current.Valid() || !ref.Valid() {
		return 1, 1, fmt.Errorf("%w: display %v against reference %v", ErrInvalidGeometry, current, ref)
	}
	return current.W / ref.W, current.H / ref.H, nil
}

// ClampMin replaces a non-finite or too small extent with floor and a
// non-finite origin with zero. It reports whether anything changed.
func ClampMin(r Rect, floor float64) (Rect, bool) {
	changed := false
	if !finite(r.X) {
		r.X, changed = 0, true
	}
	if !finite(r.Y) {
		r.Y, changed = 0, true
	}
	if !finite(r.W) || r.W < floor {
		r.W, changed = floor, true
	}
	if !finite(r.H) || r.H < floor {
		r.H, changed = floor, true
	}
	return r, changed
}

func scales(ref, page Size) (float64, float64, error) {
	if !ref.Valid() {
		return 0, 0, fmt.Errorf("%w: reference canvas size %v", ErrInvalidGeometry, ref)
	}
	if !page.Valid() {
		return 0, 0, fmt.Errorf("%w: page size %v", ErrInvalidGeometry, page)
	}
	return page.W / ref.W, page.H / ref.H, nil
}

func checkRect(r Rect) error {
	if !finite(r.X) || !finite(r.Y) || !finitePositive(r.W) || !finitePositive(r.H) {
		return fmt.Errorf("%w: w=%g,h=%g", ErrInvalidGeometry, r.W, r.H)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
func finitePositive(v float64) bool { return finite(v) && v > 0 }
