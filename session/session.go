// Package session wires the client-side editing model for one document: the
// overlay store, the gizmo controller, the page list and the preview
// scheduler. Everything is passed in explicitly; nothing is global.
package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/gizmo"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
	"github.com/wudi/pdfoverlay/pagemap"
	"github.com/wudi/pdfoverlay/preview"
	"github.com/wudi/pdfoverlay/store"
)

type config struct {
	log          observability.Logger
	historyLimit int
	confirm      gizmo.Confirmer
	render       preview.RenderFunc
}

type Option func(*config)

func WithLogger(l observability.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(c *config) { c.historyLimit = n }
}

func WithConfirmer(cf gizmo.Confirmer) Option {
	return func(c *config) { c.confirm = cf }
}

// WithRenderer enables page previews through a preview.Scheduler.
func WithRenderer(fn preview.RenderFunc) Option {
	return func(c *config) { c.render = fn }
}

// Session is single-threaded. Only the preview scheduler runs in the
// background.
type Session struct {
	DocumentID string
	Store      *store.Store
	Gizmo      *gizmo.Controller
	Preview    *preview.Scheduler

	pages []pagemap.Entry
	log   observability.Logger
}

// New opens a session on a document of pageCount pages shown on a canvas of
// the given size.
func New(ctx context.Context, documentID string, pageCount int, canvas coords.Size, opts ...Option) *Session {
	cfg := config{log: observability.NopLogger{}, historyLimit: store.DefaultHistoryLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.With(observability.String("document", documentID))
	st := store.New(store.WithHistoryLimit(cfg.historyLimit), store.WithLogger(log))

	gopts := []gizmo.Option{gizmo.WithLogger(log)}
	if cfg.confirm != nil {
		gopts = append(gopts, gizmo.WithConfirmer(cfg.confirm))
	}
	s := &Session{
		DocumentID: documentID,
		Store:      st,
		Gizmo:      gizmo.New(st, canvas, gopts...),
		pages:      pagemap.Identity(pageCount),
		log:        log,
	}
	if cfg.render != nil {
		s.Preview = preview.New(ctx, cfg.render, preview.WithLogger(log))
	}
	return s
}

// Pages returns the current page order.
func (s *Session) Pages() []pagemap.Entry { return slices.Clone(s.pages) }

// PageOrder returns the page list for a compose request and whether it
// differs from the document's own order.
func (s *Session) PageOrder() ([]pagemap.Entry, bool) {
	reordered := false
	for i, e := range s.pages {
		if e.Source != "" || e.Original != i+1 {
			reordered = true
			break
		}
	}
	return s.Pages(), reordered
}

// ShowPage switches the canvas to page and requests its preview.
func (s *Session) ShowPage(page int) error {
	if page < 0 || page >= len(s.pages) {
		return fmt.Errorf("show page %d of %d: %w", page+1, len(s.pages), store.ErrIndexOutOfRange)
	}
	s.Gizmo.SetPage(page)
	if s.Preview != nil {
		s.Preview.Request(page)
	}
	return nil
}

// Resize changes the canvas size. Overlays keep their stored geometry.
func (s *Session) Resize(canvas coords.Size) {
	s.Gizmo.SetCanvasSize(canvas)
	if s.Preview != nil {
		s.Preview.Request(s.Gizmo.Page())
	}
}

// Place adds an overlay on the current page at its stored position, stamped
// with the current canvas size when it carries no reference, and selects it.
func (s *Session) Place(o overlay.Overlay) int {
	if !o.ReferenceCanvasSize.Valid() {
		o.ReferenceCanvasSize = s.Gizmo.Canvas()
	}
	o.PageIndex = s.Gizmo.Page()
	if o.Kind.ImageLike() && o.AspectRatio == nil && o.Size != nil && o.Size.Height > 0 {
		ar := o.Size.Width / o.Size.Height
		o.AspectRatio = &ar
	}
	i := s.Store.Add(o)
	s.Store.Select(i)
	return i
}

// MovePages moves count pages starting at from so they start at to, and
// remaps every overlay to follow its page. Indexes are 0-based.
func (s *Session) MovePages(from, to, count int) ([]int, error) {
	next, err := pagemap.Move(s.pages, from, to, count)
	if err != nil {
		return nil, err
	}
	rel, err := pagemap.Move(pagemap.Identity(len(s.pages)), from, to, count)
	if err != nil {
		return nil, err
	}
	return s.remap(next, rel)
}

// DeletePages removes count pages at index. Overlays on removed pages are
// dropped in the same history step and their former indexes returned.
func (s *Session) DeletePages(index, count int) ([]int, error) {
	next, err := pagemap.Delete(s.pages, index, count)
	if err != nil {
		return nil, err
	}
	rel, err := pagemap.Delete(pagemap.Identity(len(s.pages)), index, count)
	if err != nil {
		return nil, err
	}
	return s.remap(next, rel)
}

// InsertPages inserts pages of another document before index.
func (s *Session) InsertPages(index int, source string, pages ...int) ([]int, error) {
	if index < 0 || index > len(s.pages) || source == "" {
		return nil, fmt.Errorf("insert at %d from %q: %w", index, source, pagemap.ErrBadOrder)
	}
	added := make([]pagemap.Entry, len(pages))
	for i, p := range pages {
		added[i] = pagemap.Entry{Original: p, Source: source}
	}
	next := slices.Insert(slices.Clone(s.pages), index, added...)
	rel := slices.Insert(pagemap.Identity(len(s.pages)), index, added...)
	return s.remap(next, rel)
}

// remap applies the positional map described by rel to the overlays in one
// history step and installs next as the page list.
func (s *Session) remap(next, rel []pagemap.Entry) ([]int, error) {
	m := pagemap.Build(rel)
	if m.Identity(len(s.pages)) {
		s.pages = next
		return nil, nil
	}
	s.Gizmo.Cancel()
	plan := pagemap.NewPlan(m)
	list := s.Store.List()
	orphans, err := plan.Apply(list)
	if err != nil {
		return nil, err
	}
	// An orphan still carries the index of its removed page, which now
	// names a different page; it is dropped.
	if len(orphans) > 0 {
		kept := make([]overlay.Overlay, 0, len(list)-len(orphans))
		for i, o := range list {
			if !slices.Contains(orphans, i) {
				kept = append(kept, o)
			}
		}
		list = kept
		s.log.Warn("overlays on removed pages dropped", observability.Any("indexes", orphans))
	}
	s.pages = next
	s.Store.Replace(list)
	if p := s.Gizmo.Page(); p >= len(next) && len(next) > 0 {
		s.Gizmo.SetPage(len(next) - 1)
	}
	s.log.Debug("pages remapped", observability.String("map", m.String()))
	return orphans, nil
}

// Close stops background previews.
func (s *Session) Close() {
	if s.Preview != nil {
		s.Preview.Close()
	}
}
