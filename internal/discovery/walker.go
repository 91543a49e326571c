package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/workspace"
)

// Options controls which files the walker yields.
type Options struct {
	SkipExtensions []string // lower-case, with leading dot
	SkipKeywords   []string // matched case-insensitively against the relative path
	OpenArchives   bool     // look inside .zip files
	WorkspaceDir   string   // base for the archive extraction workspace; os.TempDir when empty
}

// Walker discovers candidate files. It owns the workspace used for archive
// members, so callers must Close it once the candidates are no longer needed.
type Walker struct {
	opts     Options
	keywords []string
	ws       *workspace.Manager
	archives int
}

// NewWalker creates a walker.
func NewWalker(opts Options) *Walker {
	keywords := make([]string, 0, len(opts.SkipKeywords))
	for _, k := range opts.SkipKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	exts := make([]string, 0, len(opts.SkipExtensions))
	for _, e := range opts.SkipExtensions {
		exts = append(exts, strings.ToLower(e))
	}
	opts.SkipExtensions = exts
	return &Walker{opts: opts, keywords: keywords}
}

// Close removes any extracted archive members.
func (w *Walker) Close() error {
	if w.ws == nil {
		return nil
	}
	err := w.ws.Cleanup()
	w.ws = nil
	return err
}

// walk holds the per-call state of one traversal.
type walk struct {
	*Walker
	ctx     context.Context
	root    string
	visited map[string]struct{}
	yield   func(*CandidateFile, error) bool
}

// Walk yields candidates under root in lexicographic order of their path
// relative to root, compared as whole strings with "/" separators.
// Parts of the tree that cannot be read are yielded as *WalkError and the
// walk continues. Cancelling ctx stops the walk.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq2[*CandidateFile, error] {
	return func(yield func(*CandidateFile, error) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			yield(nil, &WalkError{Path: root, Err: err})
			return
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			cause := ErrRootNotFound
			if err != nil {
				cause = fmt.Errorf("%w: %w", ErrRootNotFound, err)
			}
			yield(nil, &WalkError{Path: abs, Err: cause})
			return
		}
		st := &walk{Walker: w, ctx: ctx, root: abs, visited: map[string]struct{}{}, yield: yield}
		st.dir(abs)
	}
}

// dir walks one directory; it returns false once the consumer stopped.
func (s *walk) dir(dir string) bool {
	realPath, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return s.yield(nil, &WalkError{Path: dir, Err: fmt.Errorf("%w: %w", ErrDirUnreadable, err)})
	}
	if _, seen := s.visited[realPath]; seen {
		slog.Debug("Skipping already visited directory", logfields.Path(dir))
		return true
	}
	s.visited[realPath] = struct{}{}

	entries, err := s.list(dir)
	if err != nil {
		return s.yield(nil, &WalkError{Path: dir, Err: fmt.Errorf("%w: %w", ErrDirUnreadable, err)})
	}

	for _, e := range entries {
		if s.ctx.Err() != nil {
			return false
		}
		switch {
		case e.mode.IsDir():
			if !s.dir(e.full) {
				return false
			}
		case !e.mode.IsRegular():
			continue
		case s.opts.OpenArchives && strings.EqualFold(filepath.Ext(e.name), ".zip"):
			if !s.archive(e.full) {
				return false
			}
		default:
			c, ok, err := s.file(e.full)
			if err != nil {
				if !s.yield(nil, &WalkError{Path: e.full, Err: err}) {
					return false
				}
				continue
			}
			if ok && !s.yield(c, nil) {
				return false
			}
		}
	}
	return true
}

type dirEntry struct {
	name, full string
	mode       fs.FileMode
}

// key orders siblings so that a depth-first walk visits paths in string
// order: a directory sorts as "name/", which puts "a-b" ahead of "a/b".
func (e dirEntry) key() string {
	if e.mode.IsDir() {
		return e.name + "/"
	}
	return e.name
}

// list reads dir, drops hidden entries and broken symlinks, resolves
// symlink targets and sorts the rest by key.
func (s *walk) list(dir string) ([]dirEntry, error) {
	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]dirEntry, 0, len(raw))
	for _, entry := range raw {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				slog.Debug("Skipping broken symlink", logfields.Path(full), logfields.Error(err))
				continue
			}
			mode = info.Mode().Type()
		}
		entries = append(entries, dirEntry{name: name, full: full, mode: mode})
	}
	slices.SortFunc(entries, func(a, b dirEntry) int { return strings.Compare(a.key(), b.key()) })
	return entries, nil
}

func (s *walk) file(full string) (*CandidateFile, bool, error) {
	ext := filepath.Ext(full)
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return nil, false, err
	}
	if !s.accept(ext, rel) {
		return nil, false, nil
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, false, err
	}
	identity, err := NormalizePath(full)
	if err != nil {
		return nil, false, err
	}
	return &CandidateFile{
		Path:       identity,
		SourcePath: full,
		RelPath:    rel,
		Ext:        ext,
		Kind:       KindOf(ext),
		ModTime:    info.ModTime(),
		Size:       info.Size(),
	}, true, nil
}

// accept applies the candidate filter: .CAT* family, not a skipped
// extension, and no skip keyword in the relative path.
func (w *Walker) accept(ext, rel string) bool {
	if !IsCADExtension(ext) {
		return false
	}
	if slices.Contains(w.opts.SkipExtensions, strings.ToLower(ext)) {
		return false
	}
	lowerRel := strings.ToLower(filepath.ToSlash(rel))
	for _, k := range w.keywords {
		if strings.Contains(lowerRel, k) {
			return false
		}
	}
	return true
}

func (w *Walker) workspace() (*workspace.Manager, error) {
	if w.ws != nil {
		return w.ws, nil
	}
	ws := workspace.NewManager(w.opts.WorkspaceDir)
	if err := ws.Create(); err != nil {
		return nil, err
	}
	w.ws = ws
	return ws, nil
}
