package export

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/discovery"
	"git.home.luguber.info/inful/catminer/internal/document"
	"git.home.luguber.info/inful/catminer/internal/extractor"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/history"
	"git.home.luguber.info/inful/catminer/internal/interrupt"
	"git.home.luguber.info/inful/catminer/internal/logfields"
	"git.home.luguber.info/inful/catminer/internal/metrics"
	"git.home.luguber.info/inful/catminer/internal/serialize"
)

// closeTimeout bounds Close and history writes, which run even after a
// forced stop cancelled the run context.
const closeTimeout = 30 * time.Second

// Source yields candidates under a root.
type Source interface {
	Walk(ctx context.Context, root string) iter.Seq2[*discovery.CandidateFile, error]
}

// SkipCache is the part of the skip cache a run uses.
type SkipCache interface {
	ShouldSkip(c *discovery.CandidateFile, format config.Format, force bool) (bool, error)
	RecordExport(c *discovery.CandidateFile, format config.Format) error
	RecordFailure(c *discovery.CandidateFile)
}

// Deps are the collaborators of a Coordinator. Extractor and Cache are
// required; the rest default sensibly.
type Deps struct {
	Extractor extractor.Extractor
	Cache     SkipCache
	Source    Source           // default: a discovery.Walker built from the config
	Metrics   metrics.Recorder // default: NoopRecorder
	History   history.Store    // optional
	Logger    *slog.Logger     // default: slog.Default()
	Clock     func() time.Time // default: time.Now
	NewRunID  func() string    // default: random UUID
}

// Coordinator runs exports for one effective configuration.
type Coordinator struct {
	cfg        config.EffectiveConfig
	deps       Deps
	ownsSource bool
	stage      Stage
}

// NewCoordinator validates deps and fills in defaults.
func NewCoordinator(cfg config.EffectiveConfig, deps Deps) (*Coordinator, error) {
	if deps.Extractor == nil {
		return nil, ferrors.InternalError("export coordinator requires an extractor").Build()
	}
	if deps.Cache == nil {
		return nil, ferrors.InternalError("export coordinator requires a skip cache").Build()
	}
	c := &Coordinator{cfg: cfg, deps: deps, stage: StageIdle}
	if c.deps.Source == nil {
		c.deps.Source = discovery.NewWalker(discovery.Options{
			SkipExtensions: cfg.SkipExtensions(),
			SkipKeywords:   cfg.SkipKeywords(),
			OpenArchives:   cfg.OpenArchives(),
		})
		c.ownsSource = true
	}
	if c.deps.Metrics == nil {
		c.deps.Metrics = metrics.NoopRecorder{}
	}
	if c.deps.Logger == nil {
		c.deps.Logger = slog.Default()
	}
	if c.deps.Clock == nil {
		c.deps.Clock = time.Now
	}
	if c.deps.NewRunID == nil {
		c.deps.NewRunID = uuid.NewString
	}
	return c, nil
}

// Stage is the current state of the run state machine.
func (c *Coordinator) Stage() Stage { return c.stage }

func (c *Coordinator) enter(s Stage, attrs ...any) {
	c.stage = s
	c.deps.Logger.Debug("Stage transition", append([]any{logfields.Stage(string(s))}, attrs...)...)
}

// Run exports every candidate under the input root. Per-candidate errors
// end up in the report; the returned error is reserved for problems that
// prevent a run altogether.
func (c *Coordinator) Run(tok *interrupt.Token) (*Report, error) {
	if tok == nil {
		return nil, ferrors.InternalError("export run requires an interrupt token").Build()
	}
	if c.ownsSource {
		if closer, ok := c.deps.Source.(interface{ Close() error }); ok {
			defer func() {
				if err := closer.Close(); err != nil {
					c.deps.Logger.Warn("Failed to clean up archive workspace", logfields.Error(err))
				}
			}()
		}
	}

	ctx := tok.Context()
	report := &Report{
		RunID:   c.deps.NewRunID(),
		Profile: c.cfg.Profile(),
		Format:  c.cfg.Format(),
		Input:   c.cfg.InputDir(),
		Output:  c.cfg.OutputDir(),
		Started: c.deps.Clock(),
	}
	log := c.deps.Logger.With(logfields.RunID(report.RunID))
	log.Info("Export run started",
		logfields.Path(report.Input),
		logfields.Output(report.Output),
		logfields.Format(string(report.Format)),
		logfields.Profile(report.Profile))

	claimed := map[string]string{}
	c.enter(StageWalking, logfields.Path(report.Input))
	for cand, walkErr := range c.deps.Source.Walk(ctx, c.cfg.InputDir()) {
		path, rel := "", ""
		if cand != nil {
			path, rel = cand.Path, cand.RelPath
			report.Candidates++
		}

		if tok.StopRequested() {
			if walkErr != nil {
				path = walkErrorPath(walkErr)
			}
			res := failed(path, rel, ferrors.Interrupted("interrupted before processing").Build())
			c.finish(log, report, cand, res)
			break
		}

		if walkErr != nil {
			c.finish(log, report, nil, walkFailure(walkErr))
			continue
		}

		c.finish(log, report, cand, c.process(ctx, tok, log, cand, claimed))
		if tok.Forced() {
			break
		}
	}

	c.enter(StageReporting)
	report.Interrupted = tok.Level()
	report.Finished = c.deps.Clock()
	c.deps.Metrics.SetCandidates(report.Candidates)
	c.deps.Metrics.ObserveRunDuration(report.Duration())
	c.deps.Metrics.IncRunOutcome(report.Outcome())

	if c.deps.History != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		if err := c.deps.History.Append(hctx, report.History()); err != nil {
			log.Warn("Failed to append run history", logfields.Error(err))
			report.Warnings = append(report.Warnings, fmt.Sprintf("run history not updated: %v", err))
		}
		cancel()
	}

	log.Info("Export run finished",
		slog.Int("exported", report.Exported()),
		slog.Int("skipped", report.Skipped()),
		slog.Int("failed", report.Failed()),
		logfields.Duration(report.Duration()))
	c.enter(StageDone)
	return report, nil
}

// finish records a result in the report, the cache and metrics.
func (c *Coordinator) finish(log *slog.Logger, report *Report, cand *discovery.CandidateFile, res Result) {
	if res.Failed() && cand != nil {
		c.deps.Cache.RecordFailure(cand)
	}
	report.add(res)
	c.deps.Metrics.IncResult(res.metricsStatus(), string(res.Category))

	attrs := []any{logfields.Path(res.Path), logfields.Result(string(res.Status))}
	switch {
	case res.Failed():
		log.Warn("Candidate failed", append(attrs, logfields.Kind(string(res.Category)), slog.String("reason", res.Reason))...)
	case res.Warning != "":
		log.Warn("Candidate exported with warning", append(attrs, slog.String("warning", res.Warning))...)
	default:
		log.Info("Candidate processed", append(attrs, logfields.Output(res.OutputPath))...)
	}
}

// process runs one candidate through Deciding, Extracting, Serializing,
// Writing and Recording.
func (c *Coordinator) process(ctx context.Context, tok *interrupt.Token, log *slog.Logger, cand *discovery.CandidateFile, claimed map[string]string) Result {
	format := c.cfg.Format()
	outPath := filepath.Join(c.cfg.OutputDir(), cand.OutputRel(string(format)))
	res := Result{Path: cand.Path, RelPath: cand.RelPath, OutputPath: outPath}

	c.enter(StageDeciding, logfields.Path(cand.Path))
	key, err := discovery.NormalizePath(outPath)
	if err != nil {
		key = outPath
	}
	if other, taken := claimed[key]; taken {
		return failed(cand.Path, cand.RelPath, ferrors.WriteError("output path collision").
			WithContext("output", outPath).
			WithCause(fmt.Errorf("%s already maps to %s", other, outPath)).
			Build())
	}
	claimed[key] = cand.Path

	skip, err := c.deps.Cache.ShouldSkip(cand, format, c.cfg.ForceExport())
	if err != nil {
		return failed(cand.Path, cand.RelPath, ferrors.FileSystemError("cannot read candidate").WithCause(err).Build())
	}
	if skip {
		c.enter(StageSkipping, logfields.Path(cand.Path))
		res.Status = StatusSkipped
		return res
	}

	c.enter(StageExtracting, logfields.Path(cand.Path))
	start := time.Now()
	tree, err := c.extract(ctx, cand)
	c.deps.Metrics.ObserveStageDuration(string(StageExtracting), time.Since(start))
	if err != nil {
		return c.failure(tok, cand, StageExtracting, err)
	}

	c.enter(StageSerializing, logfields.Path(cand.Path))
	start = time.Now()
	data, err := serialize.Serialize(tree, format)
	c.deps.Metrics.ObserveStageDuration(string(StageSerializing), time.Since(start))
	if err != nil {
		return failed(cand.Path, cand.RelPath, ferrors.ExtractionError("document cannot be serialized").
			WithCause(err).WithContext("format", string(format)).Build())
	}

	if tok.Forced() {
		return c.failure(tok, cand, StageSerializing, ctx.Err())
	}

	c.enter(StageWriting, logfields.Output(outPath))
	start = time.Now()
	err = writeOutput(outPath, data)
	c.deps.Metrics.ObserveStageDuration(string(StageWriting), time.Since(start))
	if err != nil {
		return failed(cand.Path, cand.RelPath, ferrors.WriteError("cannot write output").
			WithCause(err).WithContext("output", outPath).Build())
	}

	c.enter(StageRecording, logfields.Path(cand.Path))
	res.Status = StatusExported
	if err := c.deps.Cache.RecordExport(cand, format); err != nil {
		res.Warning = fmt.Sprintf("skip cache not updated: %v", err)
		log.Debug("Skip cache record failed", logfields.Path(cand.Path), logfields.Error(err))
	}
	return res
}

// extract opens, extracts and always closes the document.
func (c *Coordinator) extract(ctx context.Context, cand *discovery.CandidateFile) (tree *document.Tree, err error) {
	h, err := c.deps.Extractor.Open(ctx, cand.SourcePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := c.deps.Extractor.Close(cctx, h); cerr != nil {
			c.deps.Logger.Warn("Failed to close document", logfields.Path(cand.Path), logfields.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()
	return c.deps.Extractor.Extract(ctx, h, c.cfg.ActiveDocumentOnly())
}

// failure classifies an error from a blocking stage. After a forced stop
// the candidate is reported as interrupted with an indeterminate output.
func (c *Coordinator) failure(tok *interrupt.Token, cand *discovery.CandidateFile, stage Stage, err error) Result {
	if tok.Forced() || (errors.Is(err, context.Canceled) && tok.Context().Err() != nil) {
		b := ferrors.Interrupted(fmt.Sprintf("forced stop during %s; output state indeterminate", stage)).
			WithContext("stage", string(stage))
		if err != nil {
			b = b.WithCause(err)
		}
		return failed(cand.Path, cand.RelPath, b.Build())
	}
	return failed(cand.Path, cand.RelPath, err)
}

func walkErrorPath(err error) string {
	var we *discovery.WalkError
	if errors.As(err, &we) {
		return we.Path
	}
	return ""
}

func walkFailure(err error) Result {
	b := ferrors.FileSystemError("cannot read input")
	if errors.Is(err, discovery.ErrUnsafeArchiveMember) {
		b = ferrors.ValidationError("unsafe archive member").WithSeverity(ferrors.SeverityError)
	}
	return failed(walkErrorPath(err), "", b.WithCause(err).Build())
}
