// Package preview schedules page renders for the editing canvas. At most one
// render runs at a time; requests that arrive meanwhile collapse into a single
// pending request for the latest page.
package preview

import (
	"context"
	"sync"

	"github.com/wudi/pdfoverlay/observability"
)

// RenderFunc draws one page (0-based) onto the canvas.
type RenderFunc func(ctx context.Context, page int) error

type Option func(*Scheduler)

func WithLogger(l observability.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithErrorHandler receives render failures. They are logged otherwise.
func WithErrorHandler(fn func(page int, err error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

type Scheduler struct {
	ctx     context.Context
	render  RenderFunc
	log     observability.Logger
	onError func(int, error)

	mu         sync.Mutex
	busy       bool
	pending    int
	hasPending bool
	closed     bool
	rendered   int
	wg         sync.WaitGroup
}

// New returns a scheduler whose renders run with ctx.
func New(ctx context.Context, render RenderFunc, opts ...Option) *Scheduler {
	s := &Scheduler{ctx: ctx, render: render, log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request asks for page to be rendered. It returns false once the scheduler
// is closed.
func (s *Scheduler) Request(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.busy {
		if s.hasPending && s.pending != page {
			s.log.Debug("render request superseded", observability.Int("page", s.pending), observability.Int("latest", page))
		}
		s.pending, s.hasPending = page, true
		return true
	}
	s.busy = true
	s.wg.Add(1)
	go s.loop(page)
	return true
}

func (s *Scheduler) loop(page int) {
	defer s.wg.Done()
	for {
		if err := s.render(s.ctx, page); err != nil {
			if s.onError != nil {
				s.onError(page, err)
			} else {
				s.log.Warn("render failed", observability.Int("page", page), observability.Error("error", err))
			}
		}

		s.mu.Lock()
		s.rendered++
		if !s.hasPending || s.closed {
			s.busy = false
			s.mu.Unlock()
			return
		}
		page, s.hasPending = s.pending, false
		s.mu.Unlock()
	}
}

// Busy reports whether a render is in flight.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Rendered counts finished renders, failed ones included.
func (s *Scheduler) Rendered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

// Close drops any pending request and waits for the in-flight render.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.hasPending = false
	s.mu.Unlock()
	s.wg.Wait()
}
