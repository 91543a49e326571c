package commands

import (
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/export"
	"git.home.luguber.info/inful/catminer/internal/extractor"
	"git.home.luguber.info/inful/catminer/internal/extractor/execx"
	"git.home.luguber.info/inful/catminer/internal/extractor/natsx"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/history"
	"git.home.luguber.info/inful/catminer/internal/interrupt"
	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/metrics"
	"git.home.luguber.info/inful/catminer/internal/skipcache"
)

// ExtractorFactory connects to the Document Extractor described by cfg. The
// returned function releases the connection.
type ExtractorFactory func(cfg config.EffectiveConfig) (extractor.Extractor, func(), error)

// DefaultExtractor builds the exec or NATS adapter.
func DefaultExtractor(cfg config.EffectiveConfig) (extractor.Extractor, func(), error) {
	ec := cfg.Extractor()
	switch ec.Kind {
	case config.ExtractorNATS:
		client, err := natsx.Connect(ec.NATSURL, ec.Subject, ec.Timeout)
		if err != nil {
			return nil, nil, ferrors.RuntimeError("cannot reach the extraction worker").
				WithCause(err).
				WithContext("url", ec.NATSURL).
				Build()
		}
		return client, func() {
			if err := client.Disconnect(); err != nil {
				slog.Warn("Failed to disconnect from NATS", logfields.Error(err))
			}
		}, nil
	default:
		return execx.New(ec.Command, ec.Args, ec.Timeout), func() {}, nil
	}
}

// pipeline wires one export run from an effective config.
type pipeline struct {
	cfg       config.EffectiveConfig
	log       *slog.Logger
	out       io.Writer
	metrics   metrics.Recorder
	extractor ExtractorFactory
}

// run performs a single export run and renders its report to out.
func (p pipeline) run(tok *interrupt.Token) (*export.Report, error) {
	factory := p.extractor
	if factory == nil {
		factory = DefaultExtractor
	}
	ex, release, err := factory(p.cfg)
	if err != nil {
		return nil, err
	}
	defer release()

	cache, err := skipcache.Open(p.cfg.CacheFile(), p.cfg.SkipOptimization(), p.log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			p.log.Warn("Failed to release skip cache", logfields.Error(err))
		}
	}()
	var warnings []string
	if w := cache.LoadWarning(); w != nil {
		p.log.Warn("Skip cache not usable, exporting everything", logfields.Path(cache.Path()), logfields.Error(w))
		warnings = append(warnings, w.Reason())
	}

	deps := export.Deps{Extractor: ex, Cache: cache, Metrics: p.metrics, Logger: p.log}
	if db := p.cfg.HistoryDB(); db != "" {
		store, err := history.NewSQLiteStore(db)
		if err != nil {
			p.log.Warn("Run history unavailable", logfields.Path(db), logfields.Error(err))
			warnings = append(warnings, fmt.Sprintf("run history unavailable: %v", err))
		} else {
			defer func() { _ = store.Close() }()
			deps.History = store
		}
	}

	coord, err := export.NewCoordinator(p.cfg, deps)
	if err != nil {
		return nil, err
	}
	report, err := coord.Run(tok)
	if err != nil {
		return nil, err
	}
	report.Warnings = append(warnings, report.Warnings...)
	if p.out != nil {
		if err := report.Render(p.out); err != nil {
			return report, fmt.Errorf("render report: %w", err)
		}
	}
	return report, nil
}

// outcomeError turns a finished report into the command result: nil when
// nothing failed.
func outcomeError(report *export.Report) error {
	if report == nil || !report.HasFailures() {
		return nil
	}
	if report.Interrupted != interrupt.None {
		return ferrors.Interrupted("export run interrupted").
			WithContext("failed", report.Failed()).
			WithContext("run_id", report.RunID).
			Build()
	}
	return ferrors.NewError(ferrors.CategoryExport, fmt.Sprintf("%d of %d candidates failed", report.Failed(), len(report.Results))).
		WithContext("run_id", report.RunID).
		Build()
}
