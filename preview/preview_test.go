package preview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type blockingRenderer struct {
	started chan int
	release chan struct{}
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{started: make(chan int, 8), release: make(chan struct{})}
}

func (b *blockingRenderer) render(ctx context.Context, page int) error {
	b.started <- page
	<-b.release
	return nil
}

func (b *blockingRenderer) next(t *testing.T) int {
	t.Helper()
	select {
	case p := <-b.started:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("render did not start")
	}
	return -1
}

func TestCoalescesToLatest(t *testing.T) {
	b := newBlockingRenderer()
	s := New(context.Background(), b.render)

	s.Request(0)
	var got []int
	got = append(got, b.next(t))
	for _, p := range []int{1, 2, 3} {
		if !s.Request(p) {
			t.Fatalf("request %d rejected", p)
		}
	}
	b.release <- struct{}{}
	got = append(got, b.next(t))
	b.release <- struct{}{}
	s.Close()

	if diff := cmp.Diff([]int{0, 3}, got); diff != "" {
		t.Fatalf("rendered pages (-want +got):\n%s", diff)
	}
	if s.Rendered() != 2 || s.Busy() {
		t.Fatalf("rendered=%d busy=%v", s.Rendered(), s.Busy())
	}
	if s.Request(4) {
		t.Fatalf("request accepted after close")
	}
}

func TestCloseWaitsAndDropsPending(t *testing.T) {
	b := newBlockingRenderer()
	s := New(context.Background(), b.render)
	s.Request(0)
	b.next(t)
	s.Request(5)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatalf("close returned while a render was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	b.release <- struct{}{}
	<-closed

	select {
	case p := <-b.started:
		t.Fatalf("pending page %d rendered after close", p)
	default:
	}
}

func TestRenderErrors(t *testing.T) {
	boom := errors.New("boom")
	var failed []int
	s := New(context.Background(), func(ctx context.Context, page int) error { return boom },
		WithErrorHandler(func(page int, err error) {
			if errors.Is(err, boom) {
				failed = append(failed, page)
			}
		}))
	s.Request(7)
	s.Close()
	if diff := cmp.Diff([]int{7}, failed); diff != "" {
		t.Fatalf("failures (-want +got):\n%s", diff)
	}
}
