package compose

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/raster"
)

// materialize writes the overlay's image, processed for placement into rect,
// to a PNG in the run directory. Identical payloads placed with the same
// aspect ratio share one file.
func (c *Compositor) materialize(ctx context.Context, r *run, o overlay.Overlay, rect coords.Rect) (string, error) {
	data := o.Image.Data
	if len(data) == 0 {
		var err error
		if data, _, err = raster.DecodeDataURL(o.Image.Src); err != nil {
			return "", err
		}
	}
	if err := c.limits.CheckPayload(len(data)); err != nil {
		return "", err
	}
	aspect := rect.W / rect.H

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write(data)
	fmt.Fprintf(h, "|bg=%t|aspect=%.3f", o.Image.RemoveBackground, aspect)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	if path, ok := r.payloads[key]; ok {
		return path, nil
	}

	img, err := raster.Load(ctx, data, c.conv, r.dir, c.limits)
	if err != nil {
		return "", err
	}
	if o.Image.RemoveBackground {
		img = raster.RemoveBackground(img, c.bgThreshold)
	}
	img = raster.FitAspect(img, aspect)

	f, err := os.CreateTemp(r.dir, "payload-*.png")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTempFile, err)
	}
	r.queue(f.Name())
	werr := raster.EncodePNG(f, img)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", werr
	}
	r.payloads[key] = f.Name()
	return f.Name(), nil
}
