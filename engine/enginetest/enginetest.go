// Package enginetest provides a file-copying stand-in for engine.Engine.
// Every draw copies its input to its output and appends one line naming the
// stamp, so tests can read back what was applied and in which order.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/engine"
)

var ErrInjected = errors.New("injected engine failure")

// Call records one engine invocation.
type Call struct {
	Op        string
	In, Out   string
	Placement engine.Placement
	Content   string
	TextStyle engine.TextStyle
	ImagePath string
	ImageSize int64
	RectStyle engine.RectStyle
}

// Fake is safe for concurrent use.
type Fake struct {
	Sizes []coords.Size
	// FailAt makes the n-th draw call (0-based) fail; negative disables.
	FailAt int

	mu    sync.Mutex
	calls []Call
	parts [][]engine.Part
}

// New returns a fake whose documents have the given page sizes.
func New(sizes ...coords.Size) *Fake {
	return &Fake{Sizes: sizes, FailAt: -1}
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Assembled returns the part lists passed to Assemble.
func (f *Fake) Assembled() [][]engine.Part {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]engine.Part(nil), f.parts...)
}

func (f *Fake) PageSizes(ctx context.Context, path string) ([]coords.Size, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return append([]coords.Size(nil), f.Sizes...), nil
}

func (f *Fake) DrawText(ctx context.Context, in, out string, p engine.Placement, text string, style engine.TextStyle) error {
	return f.draw(Call{Op: "text", In: in, Out: out, Placement: p, Content: text, TextStyle: style})
}

func (f *Fake) DrawImage(ctx context.Context, in, out string, p engine.Placement, imagePath string) error {
	st, err := os.Stat(imagePath)
	if err != nil {
		return err
	}
	return f.draw(Call{Op: "image", In: in, Out: out, Placement: p, ImagePath: imagePath, ImageSize: st.Size()})
}

func (f *Fake) DrawRectangle(ctx context.Context, in, out string, p engine.Placement, style engine.RectStyle) error {
	return f.draw(Call{Op: "rect", In: in, Out: out, Placement: p, RectStyle: style})
}

func (f *Fake) draw(c Call) error {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if n == f.FailAt {
		return fmt.Errorf("%w: call %d (%s)", ErrInjected, n, c.Op)
	}
	data, err := os.ReadFile(c.In)
	if err != nil {
		return err
	}
	data = append(data, fmt.Sprintf("%s page=%d\n", c.Op, c.Placement.Page)...)
	return os.WriteFile(c.Out, data, 0o600)
}

// Assemble concatenates the selected parts' contents with a header line per
// part.
func (f *Fake) Assemble(ctx context.Context, parts []engine.Part, out string) error {
	f.mu.Lock()
	f.parts = append(f.parts, parts)
	f.mu.Unlock()

	var data []byte
	for _, p := range parts {
		b, err := os.ReadFile(p.Path)
		if err != nil {
			return err
		}
		data = append(data, fmt.Sprintf("part %v\n", p.Pages)...)
		data = append(data, b...)
	}
	return os.WriteFile(out, data, 0o600)
}
