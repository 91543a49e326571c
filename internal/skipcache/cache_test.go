package skipcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/discovery"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
)

func candidate(t *testing.T, dir, name, content string) *discovery.CandidateFile {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	id, err := discovery.NormalizePath(p)
	require.NoError(t, err)
	return &discovery.CandidateFile{Path: id, SourcePath: p, RelPath: name, Size: int64(len(content))}
}

func openCache(t *testing.T, path string, enabled bool) *Cache {
	t.Helper()
	c, err := Open(path, enabled, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestShouldSkipAfterRecord(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")
	cand := candidate(t, dir, "a.CATPart", "v1")

	c := openCache(t, store, true)
	skip, err := c.ShouldSkip(cand, config.FormatXML, false)
	require.NoError(t, err)
	assert.False(t, skip, "unknown file is never skipped")

	require.NoError(t, c.RecordExport(cand, config.FormatXML))

	skip, err = c.ShouldSkip(cand, config.FormatXML, false)
	require.NoError(t, err)
	assert.True(t, skip)

	skip, _ = c.ShouldSkip(cand, config.FormatJSON, false)
	assert.False(t, skip, "records are per format")

	skip, _ = c.ShouldSkip(cand, config.FormatXML, true)
	assert.False(t, skip, "force never skips")
}

func TestChangedContentIsNotSkipped(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")
	cand := candidate(t, dir, "a.CATPart", "v1")

	c := openCache(t, store, true)
	require.NoError(t, c.RecordExport(cand, config.FormatXML))
	require.NoError(t, c.Close())

	changed := candidate(t, dir, "a.CATPart", "v2")
	c = openCache(t, store, true)
	skip, err := c.ShouldSkip(changed, config.FormatXML, false)
	require.NoError(t, err)
	assert.False(t, skip)

	reverted := candidate(t, dir, "a.CATPart", "v1")
	skip, _ = c.ShouldSkip(reverted, config.FormatXML, false)
	assert.True(t, skip, "content fingerprint ignores edit-and-revert")
}

func TestDisabledCacheStillRecords(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")
	cand := candidate(t, dir, "a.CATPart", "v1")

	c := openCache(t, store, false)
	require.NoError(t, c.RecordExport(cand, config.FormatXML))
	skip, err := c.ShouldSkip(cand, config.FormatXML, false)
	require.NoError(t, err)
	assert.False(t, skip)
	require.NoError(t, c.Close())

	c = openCache(t, store, true)
	skip, _ = c.ShouldSkip(cand, config.FormatXML, false)
	assert.True(t, skip)
}

func TestRecordsPersistImmediately(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")
	a := candidate(t, dir, "a.CATPart", "a")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := openCache(t, store, true).WithClock(func() time.Time { return fixed })
	require.NoError(t, c.RecordExport(a, config.FormatJSON))
	require.NoError(t, c.RecordExport(a, config.FormatJSON), "upsert")

	// Read the file while the cache is still open, as a crash would leave it.
	data, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.Contains(t, string(data), "2026-03-01T12:00:00Z")
	assert.Equal(t, 1, c.Len())

	rec, ok := c.Lookup(a, config.FormatJSON)
	require.True(t, ok)
	assert.Equal(t, int64(1), rec.Size)
	assert.Equal(t, fixed, rec.ExportedAt)
}

func TestLockContention(t *testing.T) {
	store := filepath.Join(t.TempDir(), "cache.json")
	first := openCache(t, store, true)

	_, err := Open(store, true, nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryLock))

	require.NoError(t, first.Close())
	second := openCache(t, store, true)
	assert.NotNil(t, second)
}

func TestCorruptStoreLoadsEmptyWithWarning(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")

	for name, body := range map[string]string{
		"corrupt":       "{not json",
		"wrong version": `{"version": 99, "records": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(store, []byte(body), 0o600))
			c, err := Open(store, true, nil)
			require.NoError(t, err)
			defer func() { _ = c.Close() }()

			require.NotNil(t, c.LoadWarning())
			assert.Equal(t, ferrors.CategoryCache, c.LoadWarning().Category())
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestMissingStoreHasNoWarning(t *testing.T) {
	c := openCache(t, filepath.Join(t.TempDir(), "fresh", "cache.json"), true)
	assert.Nil(t, c.LoadWarning())
	assert.Equal(t, 0, c.Len())
}

func TestUnknownFieldsAreIgnored(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")
	cand := candidate(t, dir, "a.CATPart", "v1")
	fp, err := cand.Fingerprint()
	require.NoError(t, err)

	body := `{"version":1,"written_by":"future","records":{"xml":{"` + filepath.ToSlash(cand.Path) +
		`":{"fingerprint":"` + fp + `","exported_at":"2026-01-01T00:00:00Z","size":2,"extra":true}}}}`
	if filepath.Separator != '/' {
		t.Skip("hand-written store uses slash paths")
	}
	require.NoError(t, os.WriteFile(store, []byte(body), 0o600))

	c := openCache(t, store, true)
	assert.Nil(t, c.LoadWarning())
	skip, err := c.ShouldSkip(cand, config.FormatXML, false)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestShouldSkipFingerprintFailure(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cache.json")
	cand := candidate(t, dir, "a.CATPart", "v1")

	c := openCache(t, store, true)
	require.NoError(t, c.RecordExport(cand, config.FormatXML))

	gone := &discovery.CandidateFile{Path: cand.Path, SourcePath: filepath.Join(dir, "missing")}
	_, err := c.ShouldSkip(gone, config.FormatXML, false)
	assert.ErrorIs(t, err, discovery.ErrFingerprint)
}
