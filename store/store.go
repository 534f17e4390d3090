// Package store holds the ordered overlay list of one editing session
// together with the selection cursor and a bounded undo/redo history.
package store

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/overlay"
)

// DefaultHistoryLimit bounds the number of snapshots kept.
const DefaultHistoryLimit = 50

var ErrIndexOutOfRange = errors.New("overlay index out of range")

// Op identifies the mutation reported to listeners.
type Op int

const (
	OpAdd Op = iota
	OpUpdate
	OpRemove
	OpClear
	OpSelect
	OpUndo
	OpRedo
	OpReplace
)

func (o Op) String() string {
	return [...]string{"add", "update", "remove", "clear", "select", "undo", "redo", "replace"}[o]
}

// Event describes one mutation. Index is -1 when the mutation is not tied to
// a single overlay.
type Event struct {
	Op    Op
	Index int
}

// Listener is invoked synchronously after each mutation.
type Listener func(Event)

// Snapshot is a deep, reference-free copy of the overlay list.
type Snapshot []overlay.Overlay

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit overrides DefaultHistoryLimit; values < 1 are ignored.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger used for history diagnostics.
func WithLogger(l observability.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store is not safe for concurrent use; a session owns it exclusively.
type Store struct {
	items     []overlay.Overlay
	selected  int
	history   []Snapshot
	cursor    int
	limit     int
	listeners []Listener
	log       observability.Logger
}

// New returns an empty store whose history starts at the empty list.
func New(opts ...Option) *Store {
	s := &Store{selected: -1, limit: DefaultHistoryLimit, log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	s.history = []Snapshot{{}}
	return s
}

// Subscribe registers a listener and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.listeners = append(s.listeners, l)
	idx := len(s.listeners) - 1
	return func() {
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

func (s *Store) emit(op Op, index int) {
	for _, l := range s.listeners {
		if l != nil {
			l(Event{Op: op, Index: index})
		}
	}
}

func (s *Store) Len() int { return len(s.items) }

// Add appends o and returns its index. A snapshot is pushed.
func (s *Store) Add(o overlay.Overlay) int {
	s.items = append(s.items, o.Clone())
	idx := len(s.items) - 1
	s.push()
	s.emit(OpAdd, idx)
	return idx
}

// Get returns a copy of the overlay at index.
func (s *Store) Get(index int) (overlay.Overlay, bool) {
	if index < 0 || index >= len(s.items) {
		return overlay.Overlay{}, false
	}
	return s.items[index].Clone(), true
}

// Preview returns the transient preview cache of an overlay.
func (s *Store) Preview(index int) []byte {
	if index < 0 || index >= len(s.items) {
		return nil
	}
	return s.items[index].Preview
}

// SetPreview stores a transient preview. It never reaches history.
func (s *Store) SetPreview(index int, data []byte) {
	if index >= 0 && index < len(s.items) {
		s.items[index].Preview = data
	}
}

// Update edits the overlay at index in place. No snapshot is pushed; callers
// doing continuous edits call Commit once when the gesture ends.
func (s *Store) Update(index int, fn func(*overlay.Overlay)) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.items))
	}
	fn(&s.items[index])
	s.emit(OpUpdate, index)
	return nil
}

// Remove compacts the list. The selection is cleared when it pointed at the
// removed overlay and shifted down when it pointed past it.
func (s *Store) Remove(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.items))
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	switch {
	case s.selected == index:
		s.selected = -1
	case s.selected > index:
		s.selected--
	}
	s.push()
	s.emit(OpRemove, index)
	return nil
}

// Clear removes every overlay and pushes a snapshot.
func (s *Store) Clear() {
	s.items = nil
	s.selected = -1
	s.push()
	s.emit(OpClear, -1)
}

// Replace swaps the whole list, e.g. after loading a saved session. It is a
// structural mutation and pushes a snapshot.
func (s *Store) Replace(list []overlay.Overlay) {
	s.items = overlay.CloneAll(list)
	s.selected = -1
	s.push()
	s.emit(OpReplace, -1)
}

// Select makes index the single selected overlay. Out-of-range indexes clear
// the selection.
func (s *Store) Select(index int) {
	if index < 0 || index >= len(s.items) {
		index = -1
	}
	if index == s.selected {
		return
	}
	s.selected = index
	s.emit(OpSelect, index)
}

func (s *Store) Deselect() { s.Select(-1) }

// Selected returns the selected index, if any.
func (s *Store) Selected() (int, bool) {
	if s.selected < 0 || s.selected >= len(s.items) {
		return -1, false
	}
	return s.selected, true
}

// List returns a deep copy of all overlays in z-order.
func (s *Store) List() []overlay.Overlay { return overlay.CloneAll(s.items) }

// Snapshot returns the current list as a history-grade snapshot.
func (s *Store) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.items))
	for i := range s.items {
		snap[i] = s.items[i].Clone()
	}
	return snap
}

// Commit records the current state at the end of a gesture. It does nothing
// when the state equals the latest snapshot.
func (s *Store) Commit() bool {
	if reflect.DeepEqual(s.history[s.cursor], s.Snapshot()) {
		return false
	}
	s.push()
	return true
}

// CanUndo and CanRedo report whether a history step exists.
func (s *Store) CanUndo() bool { return s.cursor > 0 }
func (s *Store) CanRedo() bool { return s.cursor < len(s.history)-1 }

// Undo restores the previous snapshot and clears the selection.
func (s *Store) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.cursor--
	s.restore()
	s.emit(OpUndo, -1)
	return true
}

// Redo re-applies the next snapshot and clears the selection.
func (s *Store) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	s.cursor++
	s.restore()
	s.emit(OpRedo, -1)
	return true
}

func (s *Store) restore() {
	s.items = overlay.CloneAll(s.history[s.cursor])
	s.selected = -1
}

// push drops any redo entries, appends the current state and evicts the
// oldest entries beyond the limit.
func (s *Store) push() {
	s.history = append(s.history[:s.cursor+1], s.Snapshot())
	if over := len(s.history) - s.limit; over > 0 {
		s.log.Debug("history limit reached", observability.Int("evicted", over))
		s.history = append([]Snapshot(nil), s.history[over:]...)
	}
	s.cursor = len(s.history) - 1
}
