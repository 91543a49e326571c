package commands

import (
	"context"

	"git.home.luguber.info/inful/catminer/internal/interrupt"
	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/metrics"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	ConfigFlags `embed:""`

	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics for node-exporter's textfile collector" env:"CATMINER_METRICS_FILE"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := r.Resolve(root)
	if err != nil {
		return err
	}

	tok := interrupt.New(context.Background())
	defer tok.Release()
	stop := tok.NotifySignals()
	defer stop()

	p := pipeline{cfg: cfg, log: g.logger(), out: g.stdout(), extractor: g.extractors()}
	var rec *metrics.PrometheusRecorder
	if r.MetricsFile != "" {
		rec = metrics.NewPrometheusRecorder(nil)
		p.metrics = rec
	}

	report, err := p.run(tok)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := rec.WriteTextfile(r.MetricsFile); err != nil {
			p.log.Warn("Failed to write metrics file", logfields.Path(r.MetricsFile), logfields.Error(err))
		}
	}
	return outcomeError(report)
}
