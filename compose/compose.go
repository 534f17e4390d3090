// Package compose burns an ordered overlay list into a PDF, one engine call
// per overlay. Each step reads the previous step's file and writes a new
// one, so the source document is never written and a failed step leaves
// every earlier file intact.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/engine"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/raster"
	"github.com/wudi/pdfoverlay/recovery"
	"github.com/wudi/pdfoverlay/security"
)

var (
	ErrOverlayApplyFailed = errors.New("overlay apply failed")
	ErrPagesOutOfRange    = errors.New("overlay page out of range")
	ErrTempFile           = errors.New("temp file")
	ErrSameFile           = errors.New("output path is the source path")
)

// OverlayError identifies the overlay that stopped a compose run. It matches
// ErrOverlayApplyFailed and the underlying cause with errors.Is.
type OverlayError struct {
	Index int
	Kind  overlay.Kind
	Err   error
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlay %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *OverlayError) Unwrap() []error { return []error{ErrOverlayApplyFailed, e.Err} }

// Drop records an overlay that was left out of the output.
type Drop struct {
	Index  int
	Kind   overlay.Kind
	Reason error
}

// Progress is reported before each overlay is processed and once more with
// Done set when the output is in place.
type Progress struct {
	Index int
	Total int
	Kind  overlay.Kind
	Done  bool
}

// Result describes a finished run. TempFiles are the intermediate files the
// caller removes with Cleanup once FinalPath has been consumed.
type Result struct {
	FinalPath string
	TempFiles []string
	Applied   int
	Dropped   []Drop

	log observability.Logger
}

// Cleanup removes TempFiles best-effort. Failures are logged and returned
// joined under ErrTempFile; they never affect FinalPath.
func (r *Result) Cleanup() error {
	if r == nil {
		return nil
	}
	err := removeAll(r.TempFiles, r.log)
	r.TempFiles = nil
	return err
}

type Option func(*Compositor)

func WithLogger(l observability.Logger) Option {
	return func(c *Compositor) {
		if l != nil {
			c.log = l
		}
	}
}

func WithTracer(t observability.Tracer) Option {
	return func(c *Compositor) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithStrategy sets the policy for out-of-range pages, degenerate geometry
// and unreadable payloads. The default drops, clamps and fails respectively.
func WithStrategy(s recovery.Strategy) Option {
	return func(c *Compositor) {
		if s != nil {
			c.policy = s
		}
	}
}

// WithConverter enables non-native image formats.
func WithConverter(conv raster.Converter) Option {
	return func(c *Compositor) { c.conv = conv }
}

// WithTempDir sets the parent of per-run working directories.
func WithTempDir(dir string) Option {
	return func(c *Compositor) { c.tempDir = dir }
}

func WithProgress(fn func(Progress)) Option {
	return func(c *Compositor) { c.progress = fn }
}

// WithBackgroundThreshold overrides raster.DefaultBackgroundThreshold.
func WithBackgroundThreshold(v uint8) Option {
	return func(c *Compositor) { c.bgThreshold = v }
}

// WithLimits bounds image payloads. The default is security.DefaultLimits.
func WithLimits(l security.Limits) Option {
	return func(c *Compositor) { c.limits = l }
}

// Compositor is safe for concurrent use; every Compose call works in its own
// directory.
type Compositor struct {
	engine      engine.Engine
	conv        raster.Converter
	policy      recovery.Strategy
	log         observability.Logger
	tracer      observability.Tracer
	tempDir     string
	progress    func(Progress)
	bgThreshold uint8
	limits      security.Limits
}

func New(e engine.Engine, opts ...Option) *Compositor {
	c := &Compositor{
		engine:      e,
		log:         observability.NopLogger{},
		tracer:      observability.NopTracer(),
		bgThreshold: raster.DefaultBackgroundThreshold,
		limits:      security.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy == nil {
		c.policy = recovery.Default()
	}
	return c
}

// run is the state of one Compose call.
type run struct {
	dir      string
	temps    []string
	payloads map[[32]byte]string
}

func (r *run) queue(path string) { r.temps = append(r.temps, path) }

// Compose applies overlays to sourcePath in array order and moves the last
// intermediate file to outputPath. On error nothing is left behind except
// the untouched source.
func (c *Compositor) Compose(ctx context.Context, sourcePath string, overlays []overlay.Overlay, outputPath string) (res *Result, err error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanCompose)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if samePath(sourcePath, outputPath) {
		return nil, fmt.Errorf("%w: %s", ErrSameFile, outputPath)
	}
	sizes, err := c.engine.PageSizes(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("read page sizes: %w", err)
	}
	log := c.log.With(observability.String("source", filepath.Base(sourcePath)))
	res = &Result{log: log}

	if len(overlays) == 0 {
		if err := copyFile(sourcePath, outputPath); err != nil {
			return nil, err
		}
		res.FinalPath = outputPath
		c.report(Progress{Total: 0, Done: true})
		return res, nil
	}

	dir, err := os.MkdirTemp(c.tempDir, "compose-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempFile, err)
	}
	r := &run{dir: dir, payloads: make(map[[32]byte]string)}
	defer func() {
		if err != nil {
			r.queue(dir)
			_ = removeAll(r.temps, log)
		}
	}()

	working := sourcePath
	for i, o := range overlays {
		c.report(Progress{Index: i, Total: len(overlays), Kind: o.Kind})
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := filepath.Join(dir, fmt.Sprintf("step-%03d.pdf", i))
		applied, err := c.apply(ctx, r, i, o, sizes, working, out)
		if err != nil {
			var drop *dropError
			if errors.As(err, &drop) {
				log.Warn("overlay dropped", observability.Int("index", i), observability.String("kind", string(o.Kind)), observability.Error("error", drop.cause))
				res.Dropped = append(res.Dropped, Drop{Index: i, Kind: o.Kind, Reason: drop.cause})
				continue
			}
			r.queue(out)
			return nil, &OverlayError{Index: i, Kind: o.Kind, Err: err}
		}
		if !applied {
			continue
		}
		if working != sourcePath {
			r.queue(working)
		}
		working = out
		res.Applied++
	}

	if res.Applied == 0 {
		err = copyFile(sourcePath, outputPath)
	} else {
		var copied bool
		copied, err = moveFile(working, outputPath)
		if copied {
			r.queue(working)
		}
	}
	if err != nil {
		return nil, err
	}
	r.queue(dir)
	res.FinalPath = outputPath
	res.TempFiles = r.temps

	span.SetTag(observability.MetricApplied, res.Applied)
	span.SetTag(observability.MetricDropped, len(res.Dropped))
	span.SetTag(observability.MetricTempFiles, len(res.TempFiles))
	log.Info("compose finished",
		observability.Int("applied", res.Applied),
		observability.Int("dropped", len(res.Dropped)),
		observability.Duration(observability.MetricComposeTime, time.Since(started)),
	)
	c.report(Progress{Index: len(overlays), Total: len(overlays), Done: true})
	return res, nil
}

// ComposeTo composes into a private temporary file, streams it to w and
// removes every file it created.
func (c *Compositor) ComposeTo(ctx context.Context, sourcePath string, overlays []overlay.Overlay, w io.Writer) (*Result, error) {
	dir, err := os.MkdirTemp(c.tempDir, "compose-out-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempFile, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			c.log.Warn("remove output dir", observability.String("path", dir), observability.Error("error", err))
		}
	}()

	out := filepath.Join(dir, "out.pdf")
	res, err := c.Compose(ctx, sourcePath, overlays, out)
	if err != nil {
		return nil, err
	}
	defer res.Cleanup()

	f, err := os.Open(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return nil, fmt.Errorf("write composed pdf: %w", err)
	}
	return res, nil
}

func (c *Compositor) report(p Progress) {
	if c.progress != nil {
		c.progress(p)
	}
}

// dropError marks an overlay the policy chose to leave out.
type dropError struct{ cause error }

func (e *dropError) Error() string { return "dropped: " + e.cause.Error() }

// decide consults the policy. It returns a dropError for Skip, nil for Fix
// and Warn, and cause for Fail.
func (c *Compositor) decide(ctx context.Context, cause error, loc recovery.Location) (recovery.Action, error) {
	action := c.policy.OnError(ctx, cause, loc)
	switch action {
	case recovery.ActionSkip:
		return action, &dropError{cause: cause}
	case recovery.ActionFix, recovery.ActionWarn:
		c.log.Warn("overlay adjusted", observability.String("location", loc.String()), observability.Error("error", cause))
		return action, nil
	}
	return action, cause
}

func (c *Compositor) apply(ctx context.Context, r *run, i int, o overlay.Overlay, sizes []coords.Size, in, out string) (bool, error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanApply)
	defer span.Finish()
	span.SetTag("index", i)
	span.SetTag("kind", string(o.Kind))

	loc := recovery.Location{OverlayIndex: i, Kind: string(o.Kind), Page: o.PageIndex + 1}
	if o.PageIndex < 0 || o.PageIndex >= len(sizes) {
		loc.Stage = recovery.StagePageRange
		cause := fmt.Errorf("%w: page %d of %d", ErrPagesOutOfRange, o.PageIndex+1, len(sizes))
		if _, err := c.decide(ctx, cause, loc); err != nil {
			return false, err
		}
		return false, &dropError{cause: cause}
	}
	if err := o.Validate(); err != nil {
		return false, err
	}
	page := sizes[o.PageIndex]

	p, err := c.placement(ctx, o, page, loc)
	if err != nil {
		return false, err
	}

	switch {
	case o.Kind.TextLike():
		style, err := textStyle(o, page)
		if err != nil {
			return false, err
		}
		err = c.engine.DrawText(ctx, in, out, p, o.Text.Content, style)
		if err != nil {
			span.SetError(err)
		}
		return err == nil, err
	case o.Kind.ImageLike():
		path, err := c.materialize(ctx, r, o, p.Rect)
		if err != nil {
			loc.Stage = recovery.StagePayload
			if _, derr := c.decide(ctx, err, loc); derr != nil {
				return false, derr
			}
			return false, &dropError{cause: err}
		}
		err = c.engine.DrawImage(ctx, in, out, p, path)
		if err != nil {
			span.SetError(err)
		}
		return err == nil, err
	case o.Kind == overlay.KindRectangle:
		style, err := rectStyle(o, page)
		if err != nil {
			return false, err
		}
		err = c.engine.DrawRectangle(ctx, in, out, p, style)
		if err != nil {
			span.SetError(err)
		}
		return err == nil, err
	}
	return false, fmt.Errorf("%w: %q", overlay.ErrUnknownKind, o.Kind)
}
