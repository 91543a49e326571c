package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"git.home.luguber.info/inful/catminer/internal/interrupt"
	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/metrics"
	"git.home.luguber.info/inful/catminer/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	ConfigFlags `embed:""`

	Interval    time.Duration `help:"Also re-run on this interval (0 disables)" env:"CATMINER_WATCH_INTERVAL"`
	Debounce    time.Duration `help:"Quiet period after the last change before a run" default:"2s"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address, e.g. :9109" env:"CATMINER_METRICS_ADDR"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := w.Resolve(root)
	if err != nil {
		return err
	}
	log := g.logger()

	tok := interrupt.New(context.Background())
	defer tok.Release()
	stop := tok.NotifySignals()
	defer stop()

	// The first stop request ends the watch; the run in progress finishes
	// (or is forced) through the same token.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-tok.StopRequestedChan():
			cancel()
		case <-ctx.Done():
		}
	}()

	rec := metrics.NewPrometheusRecorder(nil)
	if w.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              w.MetricsAddr,
			Handler:           rec.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info("Serving metrics", "addr", w.MetricsAddr)
	}

	p := pipeline{cfg: cfg, log: log, out: g.stdout(), metrics: rec, extractor: g.extractors()}
	excludeFiles := []string{cfg.CacheFile()}
	if db := cfg.HistoryDB(); db != "" {
		excludeFiles = append(excludeFiles, db)
	}
	loop, err := watch.New(func(context.Context, string) error {
		report, err := p.run(tok)
		if err != nil {
			return err
		}
		return outcomeError(report)
	}, watch.Options{
		Root:         cfg.InputDir(),
		ExcludeDirs:  []string{cfg.OutputDir()},
		ExcludeFiles: excludeFiles,
		Debounce:     w.Debounce,
		Interval:     w.Interval,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	return loop.Serve(ctx)
}
