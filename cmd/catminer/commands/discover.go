package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disiqueira/gotree/v3"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/discovery"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/skipcache"
)

// Cache status shown by discover.
const (
	statusNew        = "new"
	statusChanged    = "changed"
	statusUnchanged  = "unchanged"
	statusUnreadable = "unreadable"
	statusUnknown    = "unknown"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct {
	ConfigFlags `embed:""`
}

func (d *DiscoverCmd) Run(g *Global, root *CLI) error {
	cfg, err := d.Resolve(root)
	if err != nil {
		return err
	}
	log := g.logger()

	// A running export holds the lock; discovery still works without statuses.
	cache, err := skipcache.Open(cfg.CacheFile(), true, log)
	switch {
	case ferrors.HasCategory(err, ferrors.CategoryLock):
		log.Warn("Skip cache is in use, cache status unavailable", logfields.Path(cfg.CacheFile()))
		cache = nil
	case err != nil:
		return err
	default:
		defer func() { _ = cache.Close() }()
	}

	walker := discovery.NewWalker(discovery.Options{
		SkipExtensions: cfg.SkipExtensions(),
		SkipKeywords:   cfg.SkipKeywords(),
		OpenArchives:   cfg.OpenArchives(),
	})
	defer func() { _ = walker.Close() }()

	tree := gotree.New(cfg.InputDir())
	dirs := map[string]gotree.Tree{"": tree}
	counts := map[string]int{}
	var walkErrors []string

	for cand, err := range walker.Walk(context.Background(), cfg.InputDir()) {
		if err != nil {
			walkErrors = append(walkErrors, err.Error())
			continue
		}
		status := candidateStatus(cache, cand, cfg.Format())
		counts[status]++
		parent := dirNode(dirs, filepath.ToSlash(filepath.Dir(cand.RelPath)))
		parent.Add(fmt.Sprintf("%s [%s, %s]", filepath.Base(cand.RelPath), cand.Kind, status))
	}

	out := g.stdout()
	if _, err := fmt.Fprint(out, tree.Print()); err != nil {
		return err
	}
	total := counts[statusNew] + counts[statusChanged] + counts[statusUnchanged] + counts[statusUnreadable] + counts[statusUnknown]
	if _, err := fmt.Fprintf(out, "%d candidates: %d new, %d changed, %d unchanged\n",
		total, counts[statusNew], counts[statusChanged], counts[statusUnchanged]); err != nil {
		return err
	}
	for _, e := range walkErrors {
		if _, err := fmt.Fprintf(out, "error: %s\n", e); err != nil {
			return err
		}
	}
	return nil
}

// dirNode returns the tree node for a slash separated directory, creating
// the missing ancestors.
func dirNode(dirs map[string]gotree.Tree, dir string) gotree.Tree {
	if dir == "." {
		dir = ""
	}
	if n, ok := dirs[dir]; ok {
		return n
	}
	parent, name := "", dir
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		parent, name = dir[:i], dir[i+1:]
	}
	n := dirNode(dirs, parent).Add(name + "/")
	dirs[dir] = n
	return n
}

func candidateStatus(cache *skipcache.Cache, cand *discovery.CandidateFile, format config.Format) string {
	if cache == nil {
		return statusUnknown
	}
	rec, ok := cache.Lookup(cand, format)
	if !ok {
		return statusNew
	}
	fp, err := cand.Fingerprint()
	if err != nil {
		return statusUnreadable
	}
	if fp == rec.Fingerprint {
		return statusUnchanged
	}
	return statusChanged
}
