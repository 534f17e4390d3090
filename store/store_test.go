package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/overlay"
)

func textOverlay(content string) overlay.Overlay {
	o := overlay.New(overlay.KindText)
	o.ID = content
	o.Text.Content = content
	o.ReferenceCanvasSize = coords.Size{W: 800, H: 1000}
	return o
}

func contents(s *Store) []string {
	var out []string
	for _, o := range s.List() {
		out = append(out, o.Text.Content)
	}
	return out
}

func TestUndoAfterNAddsRestoresNMinusOne(t *testing.T) {
	s := New()
	for i := 0; i < 4; i++ {
		s.Add(textOverlay(fmt.Sprint(i)))
	}
	if !s.Undo() {
		t.Fatalf("undo failed")
	}
	if diff := cmp.Diff([]string{"0", "1", "2"}, contents(s)); diff != "" {
		t.Fatalf("after undo (-want +got):\n%s", diff)
	}
	if !s.Redo() {
		t.Fatalf("redo failed")
	}
	if diff := cmp.Diff([]string{"0", "1", "2", "3"}, contents(s)); diff != "" {
		t.Fatalf("after redo (-want +got):\n%s", diff)
	}
}

func TestUndoRedoBoundaries(t *testing.T) {
	s := New()
	if s.Undo() || s.Redo() {
		t.Fatalf("empty history must not undo or redo")
	}
	s.Add(textOverlay("a"))
	if !s.Undo() {
		t.Fatalf("undo of single add failed")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty list, got %d", s.Len())
	}
	if s.Undo() {
		t.Fatalf("undo past the beginning")
	}
	if !s.Redo() || s.Redo() {
		t.Fatalf("redo should succeed exactly once")
	}
}

func TestStructuralMutationDiscardsRedo(t *testing.T) {
	s := New()
	s.Add(textOverlay("a"))
	s.Add(textOverlay("b"))
	s.Undo()
	s.Add(textOverlay("c"))
	if s.CanRedo() || s.Redo() {
		t.Fatalf("redo survived a new structural mutation")
	}
	if diff := cmp.Diff([]string{"a", "c"}, contents(s)); diff != "" {
		t.Fatalf("list (-want +got):\n%s", diff)
	}
}

func TestUpdateDoesNotSnapshotButCommitDoes(t *testing.T) {
	s := New()
	idx := s.Add(textOverlay("a"))
	for i := 0; i < 10; i++ {
		if err := s.Update(idx, func(o *overlay.Overlay) { o.Position.X += 1 }); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if !s.Commit() {
		t.Fatalf("commit after edits should push")
	}
	if s.Commit() {
		t.Fatalf("second commit without changes should be a no-op")
	}
	if !s.Undo() {
		t.Fatalf("undo failed")
	}
	o, _ := s.Get(0)
	if o.Position.X != 0 {
		t.Fatalf("undo should return to pre-gesture position, got %v", o.Position.X)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	s := New(WithHistoryLimit(3))
	for i := 0; i < 6; i++ {
		s.Add(textOverlay(fmt.Sprint(i)))
	}
	undos := 0
	for s.Undo() {
		undos++
	}
	if undos != 2 {
		t.Fatalf("expected 2 undo steps with limit 3, got %d", undos)
	}
	if diff := cmp.Diff([]string{"0", "1", "2", "3"}, contents(s)); diff != "" {
		t.Fatalf("oldest reachable state (-want +got):\n%s", diff)
	}
}

func TestSelectionTracksRemoval(t *testing.T) {
	s := New()
	for _, c := range []string{"a", "b", "c"} {
		s.Add(textOverlay(c))
	}
	s.Select(2)
	if err := s.Remove(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	idx, ok := s.Selected()
	if !ok || idx != 1 {
		t.Fatalf("selection = %d,%v want 1,true", idx, ok)
	}
	if o, _ := s.Get(idx); o.Text.Content != "c" {
		t.Fatalf("selection lost its overlay: %q", o.Text.Content)
	}
	if err := s.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("removing the selected overlay must clear selection")
	}
	if err := s.Remove(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestUndoClearsSelection(t *testing.T) {
	s := New()
	s.Add(textOverlay("a"))
	s.Add(textOverlay("b"))
	s.Select(1)
	s.Undo()
	if _, ok := s.Selected(); ok {
		t.Fatalf("undo must clear selection")
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := New()
	o := textOverlay("a")
	o.Size = &overlay.Size{Width: 10, Height: 10}
	s.Add(o)
	s.SetPreview(0, []byte{1})
	if err := s.Update(0, func(o *overlay.Overlay) { o.Size.Width = 99 }); err != nil {
		t.Fatalf("update: %v", err)
	}
	snap := s.Snapshot()
	if snap[0].Preview != nil {
		t.Fatalf("snapshot carries transient preview")
	}
	snap[0].Size.Width = 1
	if got, _ := s.Get(0); got.Size.Width != 99 {
		t.Fatalf("snapshot aliases live state")
	}
	s.Undo()
	s.Redo()
	if got, _ := s.Get(0); got.Size.Width != 10 {
		t.Fatalf("history entry was mutated in place: %v", got.Size.Width)
	}
}

func TestListenersReceiveEvents(t *testing.T) {
	s := New()
	var got []Event
	unsubscribe := s.Subscribe(func(e Event) { got = append(got, e) })
	s.Add(textOverlay("a"))
	s.Select(0)
	_ = s.Update(0, func(*overlay.Overlay) {})
	s.Clear()
	unsubscribe()
	s.Add(textOverlay("b"))

	want := []Event{{OpAdd, 0}, {OpSelect, 0}, {OpUpdate, 0}, {OpClear, -1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestClearAndReplace(t *testing.T) {
	s := New()
	s.Add(textOverlay("a"))
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("clear left %d overlays", s.Len())
	}
	s.Undo()
	if s.Len() != 1 {
		t.Fatalf("undo of clear should restore, got %d", s.Len())
	}
	s.Replace([]overlay.Overlay{textOverlay("x"), textOverlay("y")})
	if diff := cmp.Diff([]string{"x", "y"}, contents(s)); diff != "" {
		t.Fatalf("replace (-want +got):\n%s", diff)
	}
}
