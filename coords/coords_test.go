package coords

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestToPDFSpace_UpperLeftTextLandsNearTop(t *testing.T) {
	ref := Size{W: 800, H: 1000}
	page := Size{W: 612, H: 792}
	textHeight := 20.0 // canvas px
	got, err := ToPDFSpace(Rect{X: 100, Y: 100, W: 200, H: textHeight}, ref, page)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !near(got.X, 76.5, eps) {
		t.Fatalf("x = %v, want 76.5", got.X)
	}
	textHeightPt := textHeight * page.H / ref.H
	if !near(got.Y, 712-textHeightPt, 1e-6) {
		t.Fatalf("y = %v, want %v", got.Y, 712-textHeightPt)
	}
	if got.Y < page.H/2 {
		t.Fatalf("overlay flipped to the bottom half: y=%v", got.Y)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		r         Rect
		ref, page Size
	}{
		{"letter", Rect{X: 10, Y: 20, W: 30, H: 40}, Size{W: 800, H: 1000}, Size{W: 612, H: 792}},
		{"a4 zoomed", Rect{X: 512.25, Y: 3.5, W: 0.5, H: 900}, Size{W: 1190, H: 1684}, Size{W: 595, H: 842}},
		{"landscape", Rect{X: 0, Y: 0, W: 1, H: 1}, Size{W: 333, H: 111}, Size{W: 792, H: 612}},
		{"outside page", Rect{X: -50, Y: 1200, W: 80, H: 20}, Size{W: 800, H: 1000}, Size{W: 612, H: 792}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pdf, err := ToPDFSpace(tc.r, tc.ref, tc.page)
			if err != nil {
				t.Fatalf("to pdf: %v", err)
			}
			back, err := ToCanvasSpace(pdf, tc.ref, tc.page)
			if err != nil {
				t.Fatalf("to canvas: %v", err)
			}
			if !near(back.X, tc.r.X, 1e-9) || !near(back.Y, tc.r.Y, 1e-9) || !near(back.W, tc.r.W, 1e-9) || !near(back.H, tc.r.H, 1e-9) {
				t.Fatalf("round trip %v -> %v -> %v", tc.r, pdf, back)
			}
		})
	}
}

func TestPointRoundTrip(t *testing.T) {
	ref := Size{W: 640, H: 480}
	page := Size{W: 612, H: 792}
	p := Point{X: 123.4, Y: 56.7}
	pdf, err := PointToPDF(p, ref, page)
	if err != nil {
		t.Fatalf("to pdf: %v", err)
	}
	back, err := PointToCanvas(pdf, ref, page)
	if err != nil {
		t.Fatalf("to canvas: %v", err)
	}
	if !near(back.X, p.X, 1e-9) || !near(back.Y, p.Y, 1e-9) {
		t.Fatalf("round trip %v -> %v", p, back)
	}
}

func TestToPDFSpace_Degenerate(t *testing.T) {
	page := Size{W: 612, H: 792}
	cases := []struct {
		name string
		r    Rect
		ref  Size
	}{
		{"zero width", Rect{X: 1, Y: 1, W: 0, H: 10}, Size{W: 800, H: 1000}},
		{"negative height", Rect{X: 1, Y: 1, W: 10, H: -3}, Size{W: 800, H: 1000}},
		{"nan origin", Rect{X: math.NaN(), Y: 1, W: 10, H: 10}, Size{W: 800, H: 1000}},
		{"zero reference", Rect{X: 1, Y: 1, W: 10, H: 10}, Size{}},
		{"inf reference", Rect{X: 1, Y: 1, W: 10, H: 10}, Size{W: math.Inf(1), H: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ToPDFSpace(tc.r, tc.ref, page); !errors.Is(err, ErrInvalidGeometry) {
				t.Fatalf("expected ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestClampMin(t *testing.T) {
	r, changed := ClampMin(Rect{X: 5, Y: math.Inf(-1), W: 0, H: 50}, MinPDFExtent)
	if !changed {
		t.Fatalf("expected change")
	}
	if r.X != 5 || r.Y != 0 || r.W != MinPDFExtent || r.H != 50 {
		t.Fatalf("unexpected clamp result %v", r)
	}
	if _, changed := ClampMin(Rect{W: 20, H: 20}, MinPDFExtent); changed {
		t.Fatalf("valid rect must not change")
	}
}

func TestDisplayScaleDoesNotTouchReference(t *testing.T) {
	ref := Size{W: 800, H: 1000}
	sx, sy, err := DisplayScale(Size{W: 1200, H: 1500}, ref)
	if err != nil {
		t.Fatalf("display scale: %v", err)
	}
	if sx != 1.5 || sy != 1.5 {
		t.Fatalf("scale = %v,%v", sx, sy)
	}
	if ref != (Size{W: 800, H: 1000}) {
		t.Fatalf("reference mutated: %v", ref)
	}
	if _, _, err := DisplayScale(Size{}, ref); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected invalid geometry for empty canvas, got %v", err)
	}
}

func TestRotationHelpers(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{
		{0, 0}, {360, 0}, {725, 5}, {-90, 270}, {-720, 0},
	} {
		if got := NormalizeDegrees(tc.in); !near(got, tc.want, eps) {
			t.Fatalf("NormalizeDegrees(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, tc := range []struct{ in, want float64 }{
		{30, -30}, {-30, 30}, {180, 180}, {270, 90}, {450, -90},
	} {
		if got := ToPDFRotation(tc.in); !near(got, tc.want, eps) {
			t.Fatalf("ToPDFRotation(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := Unwrap(170, -170); !near(got, 190, eps) {
		t.Fatalf("Unwrap(170,-170) = %v, want 190", got)
	}
	if got := Unwrap(-350, 0); !near(got, -360, eps) {
		t.Fatalf("Unwrap(-350,0) = %v, want -360", got)
	}
	if got := Snap(22, 15); got != 15 {
		t.Fatalf("Snap(22,15) = %v", got)
	}
}

func TestRotateAboutKeepsPivot(t *testing.T) {
	pivot := Point{X: 50, Y: 20}
	m := RotateAbout(90, pivot)
	if got := m.Transform(pivot); !near(got.X, pivot.X, 1e-9) || !near(got.Y, pivot.Y, 1e-9) {
		t.Fatalf("pivot moved to %v", got)
	}
	// y grows downward on the canvas, so +90 turns a point right of the
	// pivot to below it.
	got := m.Transform(Point{X: 60, Y: 20})
	if !near(got.X, 50, 1e-9) || !near(got.Y, 30, 1e-9) {
		t.Fatalf("rotated point = %v, want (50,30)", got)
	}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	back := inv.Transform(got)
	if !near(back.X, 60, 1e-9) || !near(back.Y, 20, 1e-9) {
		t.Fatalf("inverse = %v", back)
	}
}
