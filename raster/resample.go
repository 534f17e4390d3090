package raster

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// MaxSide bounds the longest edge produced by FitAspect.
const MaxSide = 4096

// Resample scales src to exactly w x h pixels.
func Resample(src image.Image, w, h int) *image.NRGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// FitAspect resamples src so its pixel aspect ratio equals aspect (w/h),
// keeping the longer source edge. The engine stamps images at their natural
// ratio.
func FitAspect(src image.Image, aspect float64) image.Image {
	b := src.Bounds()
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) || b.Dx() == 0 || b.Dy() == 0 {
		return src
	}
	cur := float64(b.Dx()) / float64(b.Dy())
	if math.Abs(cur-aspect)/aspect < 0.005 {
		return src
	}
	w, h := float64(b.Dx()), float64(b.Dy())
	if aspect > cur {
		w = h * aspect
	} else {
		h = w / aspect
	}
	if s := math.Max(w, h) / MaxSide; s > 1 {
		w /= s
		h /= s
	}
	return Resample(src, int(math.Round(w)), int(math.Round(h)))
}
