package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/discovery"
	"git.home.luguber.info/inful/catminer/internal/document"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/history"
	"git.home.luguber.info/inful/catminer/internal/interrupt"
	"git.home.luguber.info/inful/catminer/internal/metrics"
	"git.home.luguber.info/inful/catminer/internal/serialize"
	"git.home.luguber.info/inful/catminer/internal/skipcache"
	"git.home.luguber.info/inful/catminer/internal/testextractor"
)

type fixture struct {
	in, out, cache string
	fake           *testextractor.Extractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		in:    filepath.Join(root, "in"),
		out:   filepath.Join(root, "out"),
		cache: filepath.Join(root, "state", "skip-cache.json"),
		fake:  testextractor.New(),
	}
	require.NoError(t, os.MkdirAll(f.in, 0o750))
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(f.in, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func (f *fixture) config(t *testing.T, mod func(*config.Overrides)) config.EffectiveConfig {
	t.Helper()
	ov := config.Overrides{
		InputDirectory:  config.Ptr(f.in),
		OutputDirectory: config.Ptr(f.out),
		CacheFile:       config.Ptr(f.cache),
	}
	if mod != nil {
		mod(&ov)
	}
	cfg, err := config.Resolve(nil, "", ov)
	require.NoError(t, err)
	return cfg
}

// run executes one run with a fresh token; extra deps may be adjusted by mod.
func (f *fixture) run(t *testing.T, cfg config.EffectiveConfig, tok *interrupt.Token, mod func(*Deps)) *Report {
	t.Helper()
	cache, err := skipcache.Open(cfg.CacheFile(), cfg.SkipOptimization(), nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, cache.Close()) }()

	deps := Deps{Extractor: f.fake, Cache: cache}
	if mod != nil {
		mod(&deps)
	}
	coord, err := NewCoordinator(cfg, deps)
	require.NoError(t, err)

	if tok == nil {
		tok = interrupt.New(context.Background())
	}
	defer tok.Release()
	report, err := coord.Run(tok)
	require.NoError(t, err)
	assert.Equal(t, StageDone, coord.Stage())
	assert.Zero(t, f.fake.Violations(), "a second document was opened while one was open")
	assert.Zero(t, f.fake.OpenCount(), "every opened document is closed")
	return report
}

func statuses(r *Report) map[string]Status {
	out := map[string]Status{}
	for _, res := range r.Results {
		out[filepath.ToSlash(res.RelPath)] = res.Status
	}
	return out
}

func TestNewAndUnchangedFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "B.CATProduct", "assembly")
	cfg := f.config(t, nil)

	first := f.run(t, cfg, nil, nil)
	require.Equal(t, 1, first.Exported())

	f.write(t, "A.CATPart", "new part")
	second := f.run(t, cfg, nil, nil)

	assert.Equal(t, 1, second.Exported())
	assert.Equal(t, 1, second.Skipped())
	assert.Equal(t, 0, second.Failed())
	assert.False(t, second.HasFailures())
	assert.Equal(t, map[string]Status{"A.CATPart": StatusExported, "B.CATProduct": StatusSkipped}, statuses(second))
	assert.Equal(t, []string{filepath.Join(f.in, "B.CATProduct"), filepath.Join(f.in, "A.CATPart")},
		f.fake.CallsFor(testextractor.OpExtract), "skipped files are never extracted")
}

func TestChangedFilesAreReexported(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "v1")
	cfg := f.config(t, nil)
	f.run(t, cfg, nil, nil)

	f.write(t, "a.CATPart", "v2")
	r := f.run(t, cfg, nil, nil)
	assert.Equal(t, 1, r.Exported())

	r = f.run(t, cfg, nil, nil)
	assert.Equal(t, 1, r.Skipped())
}

func TestForceExportIgnoresCache(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	f.run(t, f.config(t, nil), nil, nil)

	forced := f.config(t, func(o *config.Overrides) { o.ForceExport = config.Ptr(true) })
	r := f.run(t, forced, nil, nil)
	assert.Equal(t, 2, r.Exported())
	assert.Equal(t, 0, r.Skipped())
}

func TestNoSkipsExportsButStillRecords(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	noSkips := f.config(t, func(o *config.Overrides) { o.NoSkips = config.Ptr(true) })

	assert.Equal(t, 1, f.run(t, noSkips, nil, nil).Exported())
	assert.Equal(t, 1, f.run(t, noSkips, nil, nil).Exported())
	assert.Equal(t, 1, f.run(t, f.config(t, nil), nil, nil).Skipped())
}

func TestOneExtractionFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	f.write(t, "c.CATPart", "c")
	f.fake.Fail(testextractor.OpExtract, "b.CATPart", errors.New("corrupt document"))
	cfg := f.config(t, nil)

	r := f.run(t, cfg, nil, nil)
	assert.Equal(t, 2, r.Exported())
	require.Len(t, r.Failures(), 1)
	fail := r.Failures()[0]
	assert.Equal(t, "b.CATPart", fail.RelPath)
	assert.Equal(t, ferrors.CategoryExtraction, fail.Category)
	assert.Contains(t, fail.Reason, "corrupt document")
	assert.True(t, r.HasFailures())

	// The failure was not recorded, so the next run tries again.
	r = f.run(t, cfg, nil, nil)
	assert.Equal(t, map[string]Status{"a.CATPart": StatusSkipped, "b.CATPart": StatusFailed, "c.CATPart": StatusSkipped}, statuses(r))
}

func TestMalformedTreeFailsOnlyItsCandidate(t *testing.T) {
	for _, format := range []string{"xml", "json"} {
		t.Run(format, func(t *testing.T) {
			f := newFixture(t)
			f.write(t, "a.CATPart", "a")
			f.write(t, "b.CATPart", "b")
			f.write(t, "c.CATPart", "c")
			f.fake.WithTree("a.CATPart", document.New(&document.Node{Name: "Part", Children: []*document.Node{nil}}))
			f.fake.WithTree("c.CATPart", document.New(document.NewNode("Part").Set("Note", document.String("a\x01b"))))
			cfg := f.config(t, func(ov *config.Overrides) { ov.FileType = config.Ptr(format) })

			var r *Report
			require.NotPanics(t, func() { r = f.run(t, cfg, nil, nil) })
			assert.Equal(t, 1, r.Exported())
			assert.Equal(t, 2, r.Failed())
			assert.Equal(t, map[string]Status{"a.CATPart": StatusFailed, "b.CATPart": StatusExported, "c.CATPart": StatusFailed}, statuses(r))
			for _, fail := range r.Failures() {
				assert.Equal(t, ferrors.CategoryExtraction, fail.Category, fail.RelPath)
				assert.Contains(t, fail.Reason, "document cannot be serialized")
				assert.NoFileExists(t, filepath.Join(f.out, strings.TrimSuffix(fail.RelPath, ".CATPart")+"."+format))
			}
			assert.Contains(t, r.Failures()[0].Reason, "nil node")
			assert.Contains(t, r.Failures()[1].Reason, "invalid text")
		})
	}
}

func TestOpenFailureSkipsClose(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.fake.Fail(testextractor.OpOpen, "a.CATPart", errors.New("license busy"))

	r := f.run(t, f.config(t, nil), nil, nil)
	assert.Equal(t, 1, r.Failed())
	assert.Empty(t, f.fake.CallsFor(testextractor.OpExtract))
	assert.Empty(t, f.fake.CallsFor(testextractor.OpClose))
}

func TestCloseFailureFailsCandidate(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.fake.Fail(testextractor.OpClose, "a.CATPart", errors.New("host hung"))

	r := f.run(t, f.config(t, nil), nil, nil)
	require.Equal(t, 1, r.Failed())
	assert.Equal(t, ferrors.CategoryExtraction, r.Failures()[0].Category)
	_, err := os.Stat(filepath.Join(f.out, "a.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestCacheDeletedReexportsEverything(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	cfg := f.config(t, nil)
	f.run(t, cfg, nil, nil)

	require.NoError(t, os.Remove(f.cache))
	r := f.run(t, cfg, nil, nil)
	assert.Equal(t, 2, r.Exported())
	assert.Equal(t, 2, f.run(t, cfg, nil, nil).Skipped(), "cache repopulated")
}

func TestCorruptCacheExportsEverything(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	require.NoError(t, os.MkdirAll(filepath.Dir(f.cache), 0o750))
	require.NoError(t, os.WriteFile(f.cache, []byte("{{{"), 0o600))

	r := f.run(t, f.config(t, nil), nil, nil)
	assert.Equal(t, 1, r.Exported())
	assert.False(t, r.HasFailures())
}

func TestUnwritableOutputFailsEveryCandidate(t *testing.T) {
	f := newFixture(t)
	f.write(t, "sub/a.CATPart", "a")
	f.write(t, "sub/b.CATDrawing", "b")
	// A file where the output subdirectory must go blocks every write.
	require.NoError(t, os.MkdirAll(f.out, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "sub"), []byte("in the way"), 0o600))
	cfg := f.config(t, nil)

	r := f.run(t, cfg, nil, nil)
	assert.Equal(t, 2, r.Failed())
	for _, res := range r.Failures() {
		assert.Equal(t, ferrors.CategoryWrite, res.Category)
	}

	// Nothing was recorded, so fixing the output exports both.
	require.NoError(t, os.Remove(filepath.Join(f.out, "sub")))
	assert.Equal(t, 2, f.run(t, cfg, nil, nil).Exported())
}

func TestOutputLayoutAndContent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "assy/parts/Bracket.CATPart", "bracket")
	tree := document.New(document.NewNode("Part").Set("Mass", document.Number(1.25)))
	f.fake.WithTree("Bracket.CATPart", tree)

	for _, format := range []config.Format{config.FormatXML, config.FormatJSON} {
		cfg := f.config(t, func(o *config.Overrides) { o.FileType = config.Ptr(string(format)) })
		r := f.run(t, cfg, nil, nil)
		require.Equal(t, 1, r.Exported(), format)

		want := filepath.Join(f.out, "assy", "parts", "Bracket."+string(format))
		assert.Equal(t, want, r.Results[0].OutputPath)
		got, err := os.ReadFile(want)
		require.NoError(t, err)
		expected, err := serialize.Serialize(tree, format)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}

	// Formats are tracked independently: both are now current.
	assert.Equal(t, 1, f.run(t, f.config(t, nil), nil, nil).Skipped())
}

func TestOutputPathCollision(t *testing.T) {
	f := newFixture(t)
	f.write(t, "widget.CATPart", "part")
	f.write(t, "widget.CATProduct", "product")

	r := f.run(t, f.config(t, nil), nil, nil)
	assert.Equal(t, 1, r.Exported())
	require.Len(t, r.Failures(), 1)
	fail := r.Failures()[0]
	assert.Equal(t, "widget.CATProduct", fail.RelPath)
	assert.Equal(t, ferrors.CategoryWrite, fail.Category)
	assert.Contains(t, fail.Reason, "collision")
}

func TestActiveDocumentFlagIsPassed(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATProduct", "a")
	cfg := f.config(t, func(o *config.Overrides) { o.ActiveDocument = config.Ptr(true) })

	f.run(t, cfg, nil, nil)
	calls := f.fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, testextractor.OpExtract, calls[1].Op)
	assert.True(t, calls[1].Active)
}

func TestGracefulInterrupt(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	f.write(t, "c.CATPart", "c")
	tok := interrupt.New(context.Background())
	f.fake.OnExtract(func(_ context.Context, path string) error {
		if filepath.Base(path) == "a.CATPart" {
			tok.Stop()
		}
		return nil
	})
	cfg := f.config(t, nil)

	r := f.run(t, cfg, tok, nil)
	assert.Equal(t, interrupt.Graceful, r.Interrupted)
	require.Len(t, r.Results, 2, "the walk halts after the interrupted candidate")
	assert.Equal(t, StatusExported, r.Results[0].Status, "in-flight work finishes")
	assert.Equal(t, StatusFailed, r.Results[1].Status)
	assert.Equal(t, ferrors.CategoryInterrupted, r.Results[1].Category)
	assert.Equal(t, []string{filepath.Join(f.in, "a.CATPart")}, f.fake.CallsFor(testextractor.OpExtract))

	// The finished export was recorded and survives.
	f.fake.OnExtract(nil)
	next := f.run(t, cfg, nil, nil)
	assert.Equal(t, map[string]Status{"a.CATPart": StatusSkipped, "b.CATPart": StatusExported, "c.CATPart": StatusExported}, statuses(next))
}

func TestForcedInterrupt(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	f.write(t, "c.CATPart", "c")
	tok := interrupt.New(context.Background())
	f.fake.OnExtract(func(ctx context.Context, path string) error {
		if filepath.Base(path) != "b.CATPart" {
			return nil
		}
		tok.Stop()
		tok.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("context was not cancelled")
		}
	})
	cfg := f.config(t, nil)

	r := f.run(t, cfg, tok, nil)
	assert.Equal(t, interrupt.Forced, r.Interrupted)
	require.Len(t, r.Results, 2)
	assert.Equal(t, StatusExported, r.Results[0].Status)
	interrupted := r.Results[1]
	assert.Equal(t, ferrors.CategoryInterrupted, interrupted.Category)
	assert.Contains(t, interrupted.Reason, "indeterminate")
	assert.Equal(t, 2, len(f.fake.CallsFor(testextractor.OpClose)), "the in-flight document is still closed")

	f.fake.OnExtract(nil)
	next := f.run(t, cfg, nil, nil)
	assert.Equal(t, map[string]Status{"a.CATPart": StatusSkipped, "b.CATPart": StatusExported, "c.CATPart": StatusExported}, statuses(next))
}

func TestUnreadableDirectoryIsAFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "locked/b.CATPart", "b")
	locked := filepath.Join(f.in, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o750) })

	r := f.run(t, f.config(t, nil), nil, nil)
	assert.Equal(t, 1, r.Exported())
	require.Len(t, r.Failures(), 1)
	assert.Equal(t, locked, r.Failures()[0].Path)
	assert.Equal(t, ferrors.CategoryFileSystem, r.Failures()[0].Category)
}

func TestArchiveMembersExportUnderStem(t *testing.T) {
	f := newFixture(t)
	zipPath := filepath.Join(f.in, "lib", "fasteners.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(zipPath), 0o750))
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("bolts/M6.CATPart")
	require.NoError(t, err)
	_, err = w.Write([]byte("bolt"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0o600))
	cfg := f.config(t, nil)

	r := f.run(t, cfg, nil, nil)
	require.Equal(t, 1, r.Exported())
	_, err = os.Stat(filepath.Join(f.out, "lib", "fasteners", "bolts", "M6.xml"))
	assert.NoError(t, err)

	assert.Equal(t, 1, f.run(t, cfg, nil, nil).Skipped(), "archive members are cached by archive path")

	noArchives := f.config(t, func(o *config.Overrides) { o.OpenArchives = config.Ptr(false) })
	assert.Empty(t, f.run(t, noArchives, nil, nil).Results)
}

// failingCache wraps a real cache and fails selected operations.
type failingCache struct {
	SkipCache
	skipErr   error
	recordErr error
}

func (c failingCache) ShouldSkip(cand *discovery.CandidateFile, format config.Format, force bool) (bool, error) {
	if c.skipErr != nil {
		return false, c.skipErr
	}
	return c.SkipCache.ShouldSkip(cand, format, force)
}

func (c failingCache) RecordExport(cand *discovery.CandidateFile, format config.Format) error {
	if c.recordErr != nil {
		return c.recordErr
	}
	return c.SkipCache.RecordExport(cand, format)
}

func TestCacheRecordFailureStillExports(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")

	r := f.run(t, f.config(t, nil), nil, func(d *Deps) {
		d.Cache = failingCache{SkipCache: d.Cache, recordErr: errors.New("disk full")}
	})
	require.Equal(t, 1, r.Exported())
	assert.Contains(t, r.Results[0].Warning, "disk full")
	assert.False(t, r.HasFailures())

	var out bytes.Buffer
	require.NoError(t, r.Render(&out))
	assert.Contains(t, out.String(), "Warnings:")
}

func TestFingerprintFailureFailsCandidate(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")

	r := f.run(t, f.config(t, nil), nil, func(d *Deps) {
		d.Cache = failingCache{SkipCache: d.Cache, skipErr: discovery.ErrFingerprint}
	})
	require.Equal(t, 1, r.Failed())
	assert.Equal(t, ferrors.CategoryFileSystem, r.Failures()[0].Category)
	assert.Empty(t, f.fake.CallsFor(testextractor.OpOpen))
}

type countingRecorder struct {
	metrics.NoopRecorder
	results  map[metrics.StatusLabel]int
	outcomes []metrics.RunOutcomeLabel
	cands    int
}

func (c *countingRecorder) IncResult(s metrics.StatusLabel, _ string) { c.results[s]++ }
func (c *countingRecorder) IncRunOutcome(o metrics.RunOutcomeLabel) { c.outcomes = append(c.outcomes, o) }
func (c *countingRecorder) SetCandidates(n int) { c.cands = n }

func TestMetricsAndHistory(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	f.fake.Fail(testextractor.OpExtract, "b.CATPart", errors.New("boom"))

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	rec := &countingRecorder{results: map[metrics.StatusLabel]int{}}

	r := f.run(t, f.config(t, nil), nil, func(d *Deps) {
		d.Metrics = rec
		d.History = store
		d.NewRunID = func() string { return "run-fixed" }
	})

	assert.Equal(t, "run-fixed", r.RunID)
	assert.Equal(t, 1, rec.results[metrics.StatusExported])
	assert.Equal(t, 1, rec.results[metrics.StatusFailed])
	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunFailed}, rec.outcomes)
	assert.Equal(t, 2, rec.cands)

	runs, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-fixed", runs[0].RunID)
	assert.Equal(t, 1, runs[0].Exported)
	assert.Equal(t, "failed", runs[0].Outcome)
	failures, err := store.Failures(context.Background(), "run-fixed")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "extraction", failures[0].Category)
}

func TestRenderReport(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.CATPart", "a")
	f.write(t, "b.CATPart", "b")
	f.fake.Fail(testextractor.OpExtract, "b.CATPart", errors.New("boom"))

	r := f.run(t, f.config(t, nil), nil, nil)
	var out bytes.Buffer
	require.NoError(t, r.Render(&out))
	text := out.String()

	assert.Contains(t, text, "exported: 1")
	assert.Contains(t, text, "skipped:  0")
	assert.Contains(t, text, "failed:   1")
	assert.Contains(t, text, "Failures:")
	assert.True(t, strings.Contains(text, filepath.Join(f.in, "b.CATPart")+": [extraction]"), text)
	assert.Contains(t, text, "profile: default")
}

func TestNewCoordinatorRequiresDeps(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(t, nil)

	_, err := NewCoordinator(cfg, Deps{})
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInternal))

	cache, err := skipcache.Open(cfg.CacheFile(), true, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()
	coord, err := NewCoordinator(cfg, Deps{Extractor: f.fake, Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, StageIdle, coord.Stage())
	_, err = coord.Run(nil)
	assert.Error(t, err)
}
