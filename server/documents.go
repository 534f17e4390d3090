package server

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/wudi/pdfoverlay/coords"
)

var (
	ErrNoDocument   = errors.New("document not found")
	ErrTooManyFiles = errors.New("document store full")
)

type document struct {
	ID    string
	Path  string
	Sizes []coords.Size
}

// documents holds uploaded PDFs on disk, keyed by id.
type documents struct {
	mu   sync.RWMutex
	max  int
	docs map[string]document
}

func newDocuments(max int) *documents {
	return &documents{max: max, docs: make(map[string]document)}
}

func (d *documents) put(doc document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.max > 0 && len(d.docs) >= d.max {
		return fmt.Errorf("%w: %d documents", ErrTooManyFiles, len(d.docs))
	}
	d.docs[doc.ID] = doc
	return nil
}

func (d *documents) get(id string) (document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[id]
	if !ok {
		return document{}, fmt.Errorf("%w: %q", ErrNoDocument, id)
	}
	return doc, nil
}

func (d *documents) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// removeAll deletes every stored file.
func (d *documents) removeAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for id, doc := range d.docs {
		if err := os.Remove(doc.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		delete(d.docs, id)
	}
	return errors.Join(errs...)
}
