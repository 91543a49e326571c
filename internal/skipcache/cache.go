package skipcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/discovery"
	"git.home.luguber.info/inful/catminer/internal/filelock"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// storeVersion is the persisted schema version.
const storeVersion = 1

// Record is one remembered export.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	ExportedAt  time.Time `json:"exported_at"`
	Size        int64     `json:"size"`
}

// storeFile is the on-disk layout: format -> normalized path -> record.
type storeFile struct {
	Version int                                   `json:"version"`
	Records map[config.Format]map[string]Record `json:"records"`
}

// Cache is an opened skip cache. It is not safe for concurrent use; a run
// uses it from a single goroutine.
type Cache struct {
	path        string
	enabled     bool
	logger      *slog.Logger
	now         func() time.Time
	lock        *filelock.Lock
	records     map[config.Format]map[string]Record
	loadWarning *ferrors.ClassifiedError
}

// Open locks and loads the cache at path. When enabled is false the cache
// still records exports but never reports a skip. A store held by another
// run fails with a StoreLocked error. A store that cannot be read is
// treated as empty and reported through LoadWarning.
func Open(path string, enabled bool, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lock, err := filelock.TryLock(path + ".lock")
	if err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return nil, ferrors.StoreLocked(path).WithCause(err).Build()
		}
		return nil, ferrors.FileSystemError("cannot lock skip cache").
			Fatal().WithCause(err).WithContext("path", path).Build()
	}

	c := &Cache{
		path:    path,
		enabled: enabled,
		logger:  logger,
		now:     time.Now,
		lock:    lock,
		records: map[config.Format]map[string]Record{},
	}
	c.load()
	return c, nil
}

// WithClock replaces the clock used for exported_at timestamps.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Path is the store file.
func (c *Cache) Path() string { return c.path }

// LoadWarning is the warning raised while loading, nil if the store loaded
// cleanly or did not exist.
func (c *Cache) LoadWarning() *ferrors.ClassifiedError { return c.loadWarning }

// Len is the number of records across all formats.
func (c *Cache) Len() int {
	n := 0
	for _, recs := range c.records {
		n += len(recs)
	}
	return n
}

// Lookup returns the record stored for the candidate and format.
func (c *Cache) Lookup(cand *discovery.CandidateFile, format config.Format) (Record, bool) {
	r, ok := c.records[format][cand.Path]
	return r, ok
}

// ShouldSkip reports whether the candidate was already exported in format
// with identical content. It is false whenever force is set or skipping is
// disabled, without touching the file.
func (c *Cache) ShouldSkip(cand *discovery.CandidateFile, format config.Format, force bool) (bool, error) {
	if force || !c.enabled {
		return false, nil
	}
	rec, ok := c.Lookup(cand, format)
	if !ok {
		return false, nil
	}
	fp, err := cand.Fingerprint()
	if err != nil {
		return false, err
	}
	return fp == rec.Fingerprint, nil
}

// RecordExport upserts the record for the candidate and persists the store.
func (c *Cache) RecordExport(cand *discovery.CandidateFile, format config.Format) error {
	fp, err := cand.Fingerprint()
	if err != nil {
		return err
	}
	recs, ok := c.records[format]
	if !ok {
		recs = map[string]Record{}
		c.records[format] = recs
	}
	recs[cand.Path] = Record{Fingerprint: fp, ExportedAt: c.now().UTC(), Size: cand.Size}
	return c.save()
}

// RecordFailure notes a failed export. The store is left untouched so the
// candidate is attempted again next run.
func (c *Cache) RecordFailure(cand *discovery.CandidateFile) {
	c.logger.Debug("Not recording failed export", logfields.Path(cand.Path))
}

// Close releases the lock. Records are already persisted.
func (c *Cache) Close() error {
	if c.lock == nil {
		return nil
	}
	err := c.lock.Unlock()
	c.lock = nil
	return err
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.warn("skip cache unreadable, starting empty", err)
		}
		return
	}
	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		c.warn("skip cache corrupt, starting empty", err)
		return
	}
	if sf.Version != storeVersion {
		c.warn("skip cache version unsupported, starting empty", fmt.Errorf("version %d", sf.Version))
		return
	}
	for format, recs := range sf.Records {
		if recs != nil {
			c.records[format] = recs
		}
	}
	c.logger.Debug("Loaded skip cache", logfields.Path(c.path), logfields.Count(c.Len()))
}

func (c *Cache) warn(message string, cause error) {
	c.loadWarning = ferrors.CacheLoadError(message).WithCause(cause).WithContext("path", c.path).Build()
	c.logger.Warn("Skip cache could not be loaded", logfields.Path(c.path), logfields.Error(c.loadWarning))
}

// save writes the store through a temp file and rename.
func (c *Cache) save() error {
	data, err := json.MarshalIndent(storeFile{Version: storeVersion, Records: c.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal skip cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write temporary skip cache: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary skip cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary skip cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace skip cache: %w", err)
	}
	return nil
}
