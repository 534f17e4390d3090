// Package pagemap rewrites overlay page indexes after the page list of a
// document is reordered or pages are removed.
package pagemap

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfoverlay/overlay"
)

var (
	ErrPlanConsumed = errors.New("page order plan already applied")
	ErrBadOrder     = errors.New("invalid page order")
)

// Entry is one page of the current list. Original is the 1-based page number
// the page had before the change; Source names the document it comes from
// and is empty for the document being edited.
type Entry struct {
	Original int    `json:"pageNum"`
	Source   string `json:"source,omitempty"`
}

// OrderMap maps an old 1-based page number to its new 1-based number.
// Pages that were removed are absent.
type OrderMap map[int]int

// Build derives the map from the current page list. Only entries of the
// edited document (empty Source) take part; a page listed twice keeps its
// first position.
func Build(entries []Entry) OrderMap {
	m := make(OrderMap, len(entries))
	for i, e := range entries {
		if e.Source != "" || e.Original < 1 {
			continue
		}
		if _, dup := m[e.Original]; !dup {
			m[e.Original] = i + 1
		}
	}
	return m
}

// Identity reports whether applying m would change nothing for a document
// of n pages.
func (m OrderMap) Identity(n int) bool {
	if len(m) != n {
		return false
	}
	for old, nw := range m {
		if old != nw {
			return false
		}
	}
	return true
}

// Apply rewrites PageIndex of every overlay whose page is in the map.
// Overlays whose page is absent are left unchanged and their indexes are
// returned as orphans.
func (m OrderMap) Apply(list []overlay.Overlay) (orphans []int) {
	for i := range list {
		nw, ok := m[list[i].PageIndex+1]
		if !ok {
			orphans = append(orphans, i)
			continue
		}
		list[i].PageIndex = nw - 1
	}
	return orphans
}

func (m OrderMap) String() string {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d→%d", k, m[k])
	}
	return s + "}"
}

// Plan is an OrderMap that can be applied exactly once.
type Plan struct {
	m    OrderMap
	used bool
}

func NewPlan(m OrderMap) *Plan { return &Plan{m: m} }

// Apply rewrites list and marks the plan consumed. A second call returns
// ErrPlanConsumed and leaves list untouched.
func (p *Plan) Apply(list []overlay.Overlay) ([]int, error) {
	if p.used {
		return nil, ErrPlanConsumed
	}
	p.used = true
	return p.m.Apply(list), nil
}

func (p *Plan) Consumed() bool { return p.used }
