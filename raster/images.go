// Package raster prepares overlay image payloads for stamping: it decodes
// data URLs and image formats, removes signature backgrounds, resamples to
// the placed aspect ratio and rasterizes rectangle overlays.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register decoders
	_ "image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/pdfoverlay/security"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode decodes any natively supported format. GIFs yield their first frame.
// The header is checked against limits before any pixel buffer is allocated.
func Decode(data []byte, limits security.Limits) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if err := limits.CheckPixels(cfg.Width, cfg.Height); err != nil {
		return nil, format, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// ToNRGBA converts src to non-premultiplied RGBA with a zero origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	bounds := src.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)
	return nrgba
}

// HasAlpha reports whether any pixel is not fully opaque.
func HasAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] < 0xff {
			return true
		}
	}
	return false
}

// DefaultBackgroundThreshold is the channel value above which a pixel counts
// as paper white.
const DefaultBackgroundThreshold = 235

// RemoveBackground returns a copy of src in which near-white pixels are
// transparent. Pixels between threshold-32 and threshold fade linearly so
// scanned pen strokes keep soft edges.
func RemoveBackground(src image.Image, threshold uint8) *image.NRGBA {
	in := ToNRGBA(src)
	out := image.NewNRGBA(in.Rect)
	copy(out.Pix, in.Pix)

	lo := int(threshold) - 32
	if lo < 0 {
		lo = 0
	}
	for i := 0; i < len(out.Pix); i += 4 {
		r, g, b := int(out.Pix[i]), int(out.Pix[i+1]), int(out.Pix[i+2])
		m := min(r, g, b)
		switch {
		case m >= int(threshold):
			out.Pix[i+3] = 0
		case m > lo:
			keep := (int(threshold) - m) * 0xff / (int(threshold) - lo)
			if a := int(out.Pix[i+3]); keep < a {
				out.Pix[i+3] = uint8(keep)
			}
		}
	}
	return out
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
