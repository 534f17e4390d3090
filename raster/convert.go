package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wudi/pdfoverlay/security"
)

// Converter turns a file the native decoders cannot read into one they can.
type Converter interface {
	Convert(ctx context.Context, in, out string, args ...string) error
}

var ErrNoConverter = errors.New("no image converter available")

// Magick runs ImageMagick. Binary is "magick" for v7 or "convert" for v6.
type Magick struct {
	Binary string
}

// LookupMagick finds an ImageMagick binary on PATH.
func LookupMagick() (*Magick, error) {
	for _, name := range []string{"magick", "convert"} {
		if p, err := exec.LookPath(name); err == nil {
			return &Magick{Binary: p}, nil
		}
	}
	return nil, ErrNoConverter
}

func (m *Magick) Convert(ctx context.Context, in, out string, args ...string) error {
	argv := make([]string, 0, len(args)+2)
	// "[0]" selects the first frame of animated inputs.
	argv = append(argv, in+"[0]")
	argv = append(argv, args...)
	argv = append(argv, out)
	cmd := exec.CommandContext(ctx, m.Binary, argv...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(m.Binary), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// Load decodes data natively and falls back to conv for other formats. The
// fallback works in dir, which the caller owns and removes. Converted output
// is held to the same limits.
func Load(ctx context.Context, data []byte, conv Converter, dir string, limits security.Limits) (image.Image, error) {
	img, _, err := Decode(data, limits)
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		return nil, err
	}
	if conv == nil {
		return nil, err
	}
	in, err := os.CreateTemp(dir, "payload-*")
	if err != nil {
		return nil, err
	}
	_, werr := in.Write(data)
	if cerr := in.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return nil, werr
	}
	out := in.Name() + ".png"
	if err := conv.Convert(ctx, in.Name(), out); err != nil {
		return nil, fmt.Errorf("convert payload: %w", err)
	}
	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	img, _, err = Decode(converted, limits)
	return img, err
}
