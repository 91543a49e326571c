package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// treeWatcher watches every directory below root. fsnotify is not
// recursive, so directories created later are added as they appear.
type treeWatcher struct {
	w            *fsnotify.Watcher
	root         string
	excludeDirs  []string
	excludeFiles []string
	log          *slog.Logger
}

func newTreeWatcher(root string, excludeDirs, excludeFiles []string, log *slog.Logger) (*treeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	tw := &treeWatcher{w: w, root: root, excludeDirs: excludeDirs, excludeFiles: excludeFiles, log: log}
	if err := tw.addTree(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return tw, nil
}

func (tw *treeWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are reported by the run itself.
			tw.log.Debug("Not watching unreadable directory", logfields.Path(path), logfields.Error(err))
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != tw.root && (hidden(path) || tw.excludedDir(path)) {
			return fs.SkipDir
		}
		if err := tw.w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether ev can change the set or content of candidates.
func (tw *treeWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if hidden(ev.Name) || tw.excludedDir(ev.Name) {
		return false
	}
	for _, f := range tw.excludeFiles {
		if strings.HasPrefix(ev.Name, f) {
			return false
		}
	}
	return true
}

func (tw *treeWatcher) excludedDir(path string) bool {
	for _, d := range tw.excludeDirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// loop forwards relevant events to changed until ctx ends.
func (tw *treeWatcher) loop(ctx context.Context, changed func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-tw.w.Events:
			if !ok {
				return
			}
			if !tw.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if err := tw.addTree(ev.Name); err != nil {
					tw.log.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
				}
			}
			tw.log.Debug("Input change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			changed(ev.Name)
		case err, ok := <-tw.w.Errors:
			if !ok {
				return
			}
			tw.log.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (tw *treeWatcher) close() error { return tw.w.Close() }

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
