package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/raster"
)

// RectDensity is the raster resolution, in pixels per point, used for
// rectangle stamps.
const RectDensity = 2.0

var disableConfigDir sync.Once

// PDFCPU implements Engine and Assembler with pdfcpu watermark stamping.
// Stamps are anchored bottom-left with an absolute offset and an absolute
// scale so the placed box is exactly Placement.Rect.
type PDFCPU struct {
	log observability.Logger
}

// NewPDFCPU returns the pdfcpu engine. pdfcpu's on-disk configuration
// directory is disabled for the whole process.
func NewPDFCPU(log observability.Logger) *PDFCPU {
	disableConfigDir.Do(api.DisableConfigDir)
	if log == nil {
		log = observability.NopLogger{}
	}
	return &PDFCPU{log: log}
}

func (e *PDFCPU) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (e *PDFCPU) PageSizes(ctx context.Context, path string) ([]coords.Size, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("page dimensions: %w", err)
	}
	sizes := make([]coords.Size, len(dims))
	for i, d := range dims {
		sizes[i] = coords.Size{W: d.Width, H: d.Height}
	}
	return sizes, nil
}

func (e *PDFCPU) DrawText(ctx context.Context, in, out string, p Placement, text string, style TextStyle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	desc := TextDescription(p, style)
	wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("text stamp %q: %w", desc, err)
	}
	return e.stamp(in, out, p, wm)
}

func (e *PDFCPU) DrawImage(ctx context.Context, in, out string, p Placement, imagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, h, err := imageDims(imagePath)
	if err != nil {
		return err
	}
	desc := ImageDescription(p, w, h)
	wm, err := api.ImageWatermark(imagePath, desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("image stamp %q: %w", desc, err)
	}
	return e.stamp(in, out, p, wm)
}

// DrawRectangle rasterizes the rectangle, including its faded border, and
// stamps it as an image.
func (e *PDFCPU) DrawRectangle(ctx context.Context, in, out string, p Placement, style RectStyle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pw := int(math.Ceil(p.Rect.W * RectDensity))
	ph := int(math.Ceil(p.Rect.H * RectDensity))
	if s := float64(max(pw, ph)) / raster.MaxSide; s > 1 {
		pw = int(math.Ceil(float64(pw) / s))
		ph = int(math.Ceil(float64(ph) / s))
	}
	img := raster.RenderRect(style.Fill, style.Alpha, pw, ph, style.Fade*float64(pw)/p.Rect.W)

	f, err := os.CreateTemp(filepath.Dir(out), "rect-*.png")
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil {
			e.log.Warn("remove rectangle raster", observability.String("path", f.Name()), observability.Error("error", err))
		}
	}()
	werr := raster.EncodePNG(f, img)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return werr
	}
	return e.DrawImage(ctx, in, out, p, f.Name())
}

func (e *PDFCPU) stamp(in, out string, p Placement, wm *model.Watermark) error {
	pages := []string{strconv.Itoa(p.Page)}
	if err := api.AddWatermarksFile(in, out, pages, wm, e.conf()); err != nil {
		return fmt.Errorf("stamp %s: %w", p, err)
	}
	e.log.Debug("stamped", observability.String("out", filepath.Base(out)), observability.Int("page", p.Page))
	return nil
}

// Assemble collects the selected pages of every part and merges them in
// order.
func (e *PDFCPU) Assemble(ctx context.Context, parts []Part, out string) error {
	dir, err := os.MkdirTemp(filepath.Dir(out), "assemble-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	var files []string
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		sel := make([]string, len(part.Pages))
		for j, pg := range part.Pages {
			sel[j] = strconv.Itoa(pg)
		}
		f := filepath.Join(dir, fmt.Sprintf("part-%03d.pdf", i))
		if err := api.CollectFile(part.Path, f, sel, e.conf()); err != nil {
			return fmt.Errorf("collect pages %v of %s: %w", part.Pages, filepath.Base(part.Path), err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return fmt.Errorf("assemble: no pages")
	}
	if len(files) == 1 {
		return os.Rename(files[0], out)
	}
	if err := api.MergeCreateFile(files, out, false, e.conf()); err != nil {
		return fmt.Errorf("merge parts: %w", err)
	}
	return nil
}

// TextDescription renders the pdfcpu watermark description for a text stamp.
func TextDescription(p Placement, style TextStyle) string {
	font := style.Font
	if font == "" {
		font = "Helvetica"
	}
	points := int(math.Max(1, math.Round(style.Size)))
	parts := []string{
		"fontname:" + font,
		"points:" + strconv.Itoa(points),
		"scalefactor:1 abs",
		"position:bl",
		"offset:" + num(p.Rect.X) + " " + num(p.Rect.Y),
		"rotation:" + num(p.Rotation),
		"opacity:" + num(clamp01(p.Opacity)),
		"fillcolor:" + hex(style.Color),
		"aligntext:" + alignKey(style.Align),
	}
	if style.Background != nil {
		parts = append(parts, "backgroundcolor:"+hex(*style.Background))
	}
	return strings.Join(parts, ", ")
}

// ImageDescription renders the pdfcpu watermark description for an image of
// pxW x pxH pixels placed into p.Rect.
func ImageDescription(p Placement, pxW, pxH int) string {
	sc := 1.0
	if pxW > 0 {
		sc = p.Rect.W / float64(pxW)
	}
	return strings.Join([]string{
		"position:bl",
		"offset:" + num(p.Rect.X) + " " + num(p.Rect.Y),
		"scalefactor:" + num(sc) + " abs",
		"rotation:" + num(p.Rotation),
		"opacity:" + num(clamp01(p.Opacity)),
	}, ", ")
}

func imageDims(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("image header %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}

func alignKey(a string) string {
	switch strings.ToLower(a) {
	case "center", "c":
		return "c"
	case "right", "r":
		return "r"
	case "justify", "j":
		return "j"
	}
	return "l"
}

func num(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

func hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
