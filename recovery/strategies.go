package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy fails the whole compose on the first problem.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy drops overlays aimed at missing pages, clamps degenerate
// geometry to the minimum extent and fails on anything else. Every decision
// other than a failure is recorded in Errors.
type LenientStrategy struct {
	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	var action Action
	switch location.Stage {
	case StagePageRange:
		action = ActionSkip
	case StageGeometry:
		action = ActionFix
	default:
		return ActionFail
	}
	s.mu.Lock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s] %s: %w", action, location, err))
	s.mu.Unlock()
	return action
}

// Recorded returns a copy of the errors handled so far.
func (s *LenientStrategy) Recorded() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.Errors...)
}

// Default is the policy used when a compositor is built without one.
func Default() Strategy { return NewLenientStrategy() }

// Strict turns every recoverable problem into a failure.
func Strict() Strategy { return NewStrictStrategy() }
