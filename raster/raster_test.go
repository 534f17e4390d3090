package raster

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"os"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/wudi/pdfoverlay/security"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	raw := pngBytes(t, solid(2, 2, color.NRGBA{A: 0xff}))
	data, mime, err := DecodeDataURL(EncodeDataURL("image/png", raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mime != "image/png" || !bytes.Equal(data, raw) {
		t.Fatalf("round trip mismatch: %s %d bytes", mime, len(data))
	}

	if data, mime, err := DecodeDataURL("data:,hello%20world"); err != nil || string(data) != "hello world" || mime != "text/plain" {
		t.Fatalf("plain data URL: %q %q %v", data, mime, err)
	}
	if _, _, err := DecodeDataURL("https://example.com/a.png"); !errors.Is(err, ErrNotDataURL) {
		t.Fatalf("expected ErrNotDataURL, got %v", err)
	}
	if _, _, err := DecodeDataURL("data:image/png;base64,@@@"); err == nil {
		t.Fatalf("bad base64 accepted")
	}
}

func TestDecodeNativeFormats(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, solid(3, 2, color.NRGBA{R: 0xff, A: 0xff})); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}
	img, format, err := Decode(buf.Bytes(), security.Limits{})
	if err != nil || format != "bmp" {
		t.Fatalf("bmp decode: %v %q", err, format)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds %v", img.Bounds())
	}
	if _, _, err := Decode([]byte("not an image"), security.Limits{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// pngHeader returns the signature and IHDR chunk of a PNG claiming the given
// dimensions, with no image data after it.
func pngHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := pngBytes(t, solid(1, 1, color.NRGBA{A: 0xff}))[:33]
	binary.BigEndian.PutUint32(b[16:], w)
	binary.BigEndian.PutUint32(b[20:], h)
	binary.BigEndian.PutUint32(b[29:], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestDecodeChecksPixelsBeforeDecoding(t *testing.T) {
	limits := security.Limits{MaxPayloadPixels: 40_000_000}
	if _, _, err := Decode(pngHeader(t, 8000, 8000), limits); !errors.Is(err, security.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	// Within the limit the truncated body is reached and fails to decode.
	_, _, err := Decode(pngHeader(t, 100, 100), limits)
	if err == nil || errors.Is(err, security.ErrLimitExceeded) {
		t.Fatalf("expected a decode error, got %v", err)
	}

	conv := &fakeConverter{img: solid(20, 20, color.NRGBA{A: 0xff})}
	_, err = Load(context.Background(), []byte("HEIC-ish bytes"), conv, t.TempDir(), security.Limits{MaxPayloadPixels: 100})
	if !errors.Is(err, security.ErrLimitExceeded) {
		t.Fatalf("converted output must be limited too, got %v", err)
	}
}

func TestRemoveBackground(t *testing.T) {
	img := solid(3, 1, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 10, B: 40, A: 0xff})
	img.SetNRGBA(2, 0, color.NRGBA{R: 220, G: 220, B: 220, A: 0xff})

	out := RemoveBackground(img, DefaultBackgroundThreshold)
	if a := out.NRGBAAt(0, 0).A; a != 0 {
		t.Fatalf("white pixel alpha = %d", a)
	}
	if a := out.NRGBAAt(1, 0).A; a != 0xff {
		t.Fatalf("ink pixel alpha = %d", a)
	}
	if a := out.NRGBAAt(2, 0).A; a == 0 || a == 0xff {
		t.Fatalf("near-white pixel should be partially transparent, alpha = %d", a)
	}
	if img.NRGBAAt(0, 0).A != 0xff {
		t.Fatalf("source image modified")
	}
	if !HasAlpha(out) || HasAlpha(img) {
		t.Fatalf("HasAlpha mismatch")
	}
}

func TestFitAspect(t *testing.T) {
	src := solid(100, 100, color.NRGBA{A: 0xff})
	wide := FitAspect(src, 2)
	if b := wide.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("wide bounds %v", b)
	}
	tall := FitAspect(src, 0.5)
	if b := tall.Bounds(); b.Dx() != 100 || b.Dy() != 200 {
		t.Fatalf("tall bounds %v", b)
	}
	if FitAspect(src, 1) != image.Image(src) {
		t.Fatalf("matching aspect should return the source")
	}
	huge := FitAspect(solid(4000, 10, color.NRGBA{A: 0xff}), 0.01)
	if b := huge.Bounds(); b.Dy() > MaxSide {
		t.Fatalf("longest side %d exceeds %d", b.Dy(), MaxSide)
	}
}

func TestRenderRect(t *testing.T) {
	fill := color.NRGBA{R: 0xff, G: 0xff}
	flat := RenderRect(fill, 0.4, 10, 4, 0)
	if c := flat.NRGBAAt(0, 0); c.A != 102 || c.R != 0xff || c.B != 0 {
		t.Fatalf("flat corner %v", c)
	}

	faded := RenderRect(fill, 1, 40, 40, 10)
	edge := faded.NRGBAAt(0, 20).A
	center := faded.NRGBAAt(20, 20).A
	if edge >= center || center != 0xff {
		t.Fatalf("fade should ramp from edge %d to center %d", edge, center)
	}
}

type fakeConverter struct {
	calls int
	img   image.Image
}

func (f *fakeConverter) Convert(_ context.Context, in, out string, _ ...string) error {
	f.calls++
	if _, err := os.Stat(in); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, f.img); err != nil {
		return err
	}
	return os.WriteFile(out, buf.Bytes(), 0o600)
}

func TestLoadFallsBackToConverter(t *testing.T) {
	ctx := context.Background()
	conv := &fakeConverter{img: solid(5, 5, color.NRGBA{B: 0xff, A: 0xff})}

	img, err := Load(ctx, pngBytes(t, solid(2, 2, color.NRGBA{A: 0xff})), conv, t.TempDir(), security.Limits{})
	if err != nil || img.Bounds().Dx() != 2 || conv.calls != 0 {
		t.Fatalf("native decode should not convert: %v calls=%d", err, conv.calls)
	}

	img, err = Load(ctx, []byte("HEIC-ish bytes"), conv, t.TempDir(), security.Limits{})
	if err != nil {
		t.Fatalf("load via converter: %v", err)
	}
	if img.Bounds().Dx() != 5 || conv.calls != 1 {
		t.Fatalf("converted image %v calls=%d", img.Bounds(), conv.calls)
	}

	if _, err := Load(ctx, []byte("???"), nil, t.TempDir(), security.Limits{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat without converter, got %v", err)
	}
}

func TestLookupMagickMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, err := LookupMagick(); !errors.Is(err, ErrNoConverter) {
		t.Fatalf("expected ErrNoConverter, got %v", err)
	}
}
