package raster

import (
	"image"
	"image/color"
	"math"
)

// RenderRect rasterizes a filled rectangle of w x h pixels. alpha scales the
// fill; fade is the width in pixels over which opacity ramps up from the
// border.
func RenderRect(fill color.NRGBA, alpha float64, w, h int, fade float64) *image.NRGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	alpha = math.Max(0, math.Min(1, alpha))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := alpha
			if fade > 0 {
				d := math.Min(math.Min(float64(x)+0.5, float64(w-x)-0.5), math.Min(float64(y)+0.5, float64(h-y)-0.5))
				if d < fade {
					a *= d / fade
				}
			}
			img.SetNRGBA(x, y, color.NRGBA{R: fill.R, G: fill.G, B: fill.B, A: uint8(math.Round(a * 255))})
		}
	}
	return img
}
