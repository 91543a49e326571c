// Package testextractor provides an in-memory extractor.Extractor for
// tests. Trees and failures are scripted per file, calls are logged, and
// the double records any attempt to open a second document while one is
// still open.
package testextractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/catminer/internal/document"
	"git.home.luguber.info/inful/catminer/internal/extractor"
)

// Op names recorded in the call log.
const (
	OpOpen    = "open"
	OpExtract = "extract"
	OpClose   = "close"
)

// Call is one logged invocation.
type Call struct {
	Op     string
	Path   string
	Active bool
}

// Extractor is the scripted double. Keys are matched against the full path
// first and then against the file name.
type Extractor struct {
	mu         sync.Mutex
	trees      map[string]*document.Tree
	fail       map[string]map[string]error
	onExtract  func(ctx context.Context, path string) error
	calls      []Call
	open       map[string]extractor.Handle
	violations int
	seq        int
}

var _ extractor.Extractor = (*Extractor)(nil)

// New creates a double that returns a small default tree for every file.
func New() *Extractor {
	return &Extractor{
		trees: map[string]*document.Tree{},
		fail:  map[string]map[string]error{},
		open:  map[string]extractor.Handle{},
	}
}

// WithTree scripts the tree returned for key.
func (e *Extractor) WithTree(key string, tree *document.Tree) *Extractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trees[key] = tree
	return e
}

// Fail scripts err for op on key.
func (e *Extractor) Fail(op, key string, err error) *Extractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail[op] == nil {
		e.fail[op] = map[string]error{}
	}
	e.fail[op][key] = err
	return e
}

// OnExtract installs a hook run at the start of every Extract. Returning an
// error fails the extraction; the hook may block on ctx.
func (e *Extractor) OnExtract(fn func(ctx context.Context, path string) error) *Extractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onExtract = fn
	return e
}

// DefaultTree is the tree returned for unscripted files.
func DefaultTree(path string) *document.Tree {
	return document.New(document.NewNode("Document").
		Set("Source", document.String(filepath.Base(path))))
}

func (e *Extractor) lookupErr(op, path string) error {
	m := e.fail[op]
	if err, ok := m[path]; ok {
		return err
	}
	return m[filepath.Base(path)]
}

// Open implements extractor.Extractor.
func (e *Extractor) Open(ctx context.Context, path string) (extractor.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpOpen, Path: path})
	if len(e.open) > 0 {
		e.violations++
	}
	if err := ctx.Err(); err != nil {
		return extractor.Handle{}, extractor.Wrap(err, OpOpen, path)
	}
	if err := e.lookupErr(OpOpen, path); err != nil {
		return extractor.Handle{}, extractor.Wrap(err, OpOpen, path)
	}
	e.seq++
	h := extractor.Handle{ID: fmt.Sprintf("doc-%d", e.seq), Path: path}
	e.open[h.ID] = h
	return h, nil
}

// Extract implements extractor.Extractor.
func (e *Extractor) Extract(ctx context.Context, h extractor.Handle, activeDocumentOnly bool) (*document.Tree, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Op: OpExtract, Path: h.Path, Active: activeDocumentOnly})
	_, isOpen := e.open[h.ID]
	hook := e.onExtract
	e.mu.Unlock()

	if !isOpen {
		return nil, extractor.Wrap(fmt.Errorf("handle %s is not open", h.ID), OpExtract, h.Path)
	}
	if hook != nil {
		if err := hook(ctx, h.Path); err != nil {
			return nil, extractor.Wrap(err, OpExtract, h.Path)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, extractor.Wrap(err, OpExtract, h.Path)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.lookupErr(OpExtract, h.Path); err != nil {
		return nil, extractor.Wrap(err, OpExtract, h.Path)
	}
	if t, ok := e.trees[h.Path]; ok {
		return t, nil
	}
	if t, ok := e.trees[filepath.Base(h.Path)]; ok {
		return t, nil
	}
	return DefaultTree(h.Path), nil
}

// Close implements extractor.Extractor.
func (e *Extractor) Close(_ context.Context, h extractor.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpClose, Path: h.Path})
	delete(e.open, h.ID)
	if err := e.lookupErr(OpClose, h.Path); err != nil {
		return extractor.Wrap(err, OpClose, h.Path)
	}
	return nil
}

// Calls returns a copy of the call log.
func (e *Extractor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallsFor returns the paths passed to op, in order.
func (e *Extractor) CallsFor(op string) []string {
	var paths []string
	for _, c := range e.Calls() {
		if c.Op == op {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// OpenCount is the number of handles currently open.
func (e *Extractor) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// Violations counts Open calls made while another document was open.
func (e *Extractor) Violations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violations
}
