package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/extractor/execx"
	"git.home.luguber.info/inful/catminer/internal/extractor/natsx"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
)

// WorkerCmd implements the 'worker' command: it runs next to the CAD host
// and serves the local extractor command to pipelines using the nats adapter.
type WorkerCmd struct {
	NATSURL string        `name:"nats-url" help:"NATS server URL" default:"nats://127.0.0.1:4222" env:"CATMINER_NATS_URL"`
	Subject string        `name:"nats-subject" help:"Subject prefix to serve" default:"${nats_subject}" env:"CATMINER_NATS_SUBJECT"`
	Command string        `name:"extractor-cmd" help:"Local extractor command" default:"catminer-extract" env:"CATMINER_EXTRACTOR_CMD"`
	Args    []string      `name:"extractor-arg" help:"Extra extractor argument (repeatable)"`
	Timeout time.Duration `name:"extractor-timeout" help:"Timeout per extractor call" default:"5m"`
}

func (w *WorkerCmd) Run(g *Global, _ *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := nats.Connect(w.NATSURL, nats.Name("catminer-worker"))
	if err != nil {
		return ferrors.RuntimeError("cannot connect to NATS").WithCause(err).WithContext("url", w.NATSURL).Build()
	}
	defer func() { _ = conn.Drain() }()

	worker := natsx.NewWorker(execx.New(w.Command, w.Args, w.Timeout), w.Subject)
	if err := worker.Serve(ctx, conn); err != nil {
		return ferrors.RuntimeError("cannot serve extraction requests").WithCause(err).Build()
	}
	<-ctx.Done()
	g.logger().Info("Extraction worker stopping", slog.Int("open_handles", worker.OpenHandles()))
	worker.Stop()
	return nil
}

// Vars are the kong interpolation variables.
func Vars() map[string]string {
	return map[string]string{"nats_subject": config.DefaultNATSSubject}
}
