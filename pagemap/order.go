package pagemap

import "fmt"

// FromOrder turns a list of 1-based original page numbers into entries of
// the edited document.
func FromOrder(order []int) []Entry {
	out := make([]Entry, len(order))
	for i, p := range order {
		out[i] = Entry{Original: p}
	}
	return out
}

// Identity returns the unchanged order of n pages.
func Identity(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{Original: i + 1}
	}
	return out
}

// Move relocates count pages starting at index from (0-based) so that the
// first of them lands at index to of the resulting list.
func Move(entries []Entry, from, to, count int) ([]Entry, error) {
	n := len(entries)
	if count < 1 || from < 0 || from+count > n || to < 0 || to > n-count {
		return nil, fmt.Errorf("%w: move %d pages from %d to %d of %d", ErrBadOrder, count, from, to, n)
	}
	moved := append([]Entry(nil), entries[from:from+count]...)
	rest := make([]Entry, 0, n-count)
	rest = append(rest, entries[:from]...)
	rest = append(rest, entries[from+count:]...)

	out := make([]Entry, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, moved...)
	out = append(out, rest[to:]...)
	return out, nil
}

// Delete removes count pages starting at index (0-based).
func Delete(entries []Entry, index, count int) ([]Entry, error) {
	n := len(entries)
	if count < 1 || index < 0 || index+count > n {
		return nil, fmt.Errorf("%w: delete %d pages at %d of %d", ErrBadOrder, count, index, n)
	}
	out := make([]Entry, 0, n-count)
	out = append(out, entries[:index]...)
	return append(out, entries[index+count:]...), nil
}

// Group is a run of consecutive output pages taken from one source.
type Group struct {
	Source string
	Pages  []int
}

// Layout groups consecutive entries sharing a source. Empty sources are
// reported as def. An empty order is rejected: it would assemble no pages.
func Layout(entries []Entry, def string) ([]Group, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty page order", ErrBadOrder)
	}
	var out []Group
	for i, e := range entries {
		if e.Original < 1 {
			return nil, fmt.Errorf("%w: entry %d has page %d", ErrBadOrder, i, e.Original)
		}
		src := e.Source
		if src == "" {
			src = def
		}
		if n := len(out); n > 0 && out[n-1].Source == src {
			out[n-1].Pages = append(out[n-1].Pages, e.Original)
			continue
		}
		out = append(out, Group{Source: src, Pages: []int{e.Original}})
	}
	return out, nil
}
