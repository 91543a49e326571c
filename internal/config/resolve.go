package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
)

// Resolve merges built-in defaults, the store's default section, the named
// profile and the overrides (lowest to highest precedence) into a validated
// EffectiveConfig. It reads nothing but the filesystem metadata of the
// configured paths and never creates anything.
func Resolve(store *Store, profileName string, overrides Overrides) (EffectiveConfig, error) {
	layers := []Layer{Defaults()}
	if store != nil && store.Default != nil {
		layers = append(layers, *store.Default)
	}
	if profileName != "" {
		key, profile, ok := store.lookup(profileName)
		if !ok {
			return EffectiveConfig{}, ferrors.ProfileNotFound(profileName).
				WithContext("store", store.Path()).
				Build()
		}
		layers = append(layers, profile)
		profileName = key
	}
	layers = append(layers, overrides)

	cfg, err := build(MergeLayers(layers...))
	if err != nil {
		return EffectiveConfig{}, err
	}
	cfg.profile = profileName
	return cfg, nil
}

func build(l Layer) (EffectiveConfig, error) {
	var cfg EffectiveConfig

	format, err := ParseFormat(deref(l.FileType))
	if err != nil {
		return cfg, invalid("unsupported output format", err).WithContext("file_type", deref(l.FileType)).Build()
	}
	style, err := ParsePathStyle(deref(l.PathStyle))
	if err != nil {
		return cfg, invalid("unsupported path style", err).Build()
	}
	kind, err := ParseExtractorKind(deref(l.Extractor.Kind))
	if err != nil {
		return cfg, invalid("unsupported extractor kind", err).Build()
	}
	timeout := DefaultExtractorTimeout
	if raw := deref(l.Extractor.Timeout); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return cfg, invalid("invalid extractor timeout", err).WithContext("timeout", raw).Build()
		}
	}

	inputDir, err := filepath.Abs(deref(l.InputDirectory))
	if err != nil {
		return cfg, invalid("input directory cannot be resolved", err).Build()
	}
	if err := requireDir(inputDir); err != nil {
		return cfg, invalid("input directory is not usable", err).WithContext("path", inputDir).Build()
	}

	outputDir, err := filepath.Abs(deref(l.OutputDirectory))
	if err != nil {
		return cfg, invalid("output directory cannot be resolved", err).Build()
	}
	if err := requireCreatableDir(outputDir); err != nil {
		return cfg, invalid("output directory is not usable", err).WithContext("path", outputDir).Build()
	}

	cacheFile := deref(l.CacheFile)
	if cacheFile == "" {
		return cfg, invalid("cache file path is empty", nil).Build()
	}
	if cacheFile, err = filepath.Abs(cacheFile); err != nil {
		return cfg, invalid("cache file cannot be resolved", err).Build()
	}
	if err := requireCreatableDir(filepath.Dir(cacheFile)); err != nil {
		return cfg, invalid("cache file directory is not usable", err).WithContext("path", cacheFile).Build()
	}

	historyDB := deref(l.HistoryDB)
	if historyDB != "" {
		if historyDB, err = filepath.Abs(historyDB); err != nil {
			return cfg, invalid("history database cannot be resolved", err).Build()
		}
	}

	if kind == ExtractorExec && deref(l.Extractor.Command) == "" {
		return cfg, invalid("exec extractor requires a command", nil).Build()
	}
	if kind == ExtractorNATS && (deref(l.Extractor.NATSURL) == "" || deref(l.Extractor.Subject) == "") {
		return cfg, invalid("nats extractor requires a url and subject", nil).Build()
	}

	cfg = EffectiveConfig{
		inputDir:       inputDir,
		outputDir:      outputDir,
		format:         format,
		forceExport:    deref(l.ForceExport),
		noSkips:        deref(l.NoSkips),
		activeDocument: deref(l.ActiveDocument),
		pathStyle:      style,
		skipExtensions: normalizeExtensions(l.SkipExtensions),
		skipKeywords:   normalizeKeywords(l.SkipKeywords),
		openArchives:   deref(l.OpenArchives),
		cacheFile:      cacheFile,
		historyDB:      historyDB,
		extractor: ExtractorConfig{
			Kind:    kind,
			Command: deref(l.Extractor.Command),
			Args:    slices.Clone(l.Extractor.Args),
			NATSURL: deref(l.Extractor.NATSURL),
			Subject: deref(l.Extractor.Subject),
			Timeout: timeout,
		},
	}
	return cfg, nil
}

func invalid(message string, cause error) *ferrors.ErrorBuilder {
	b := ferrors.InvalidConfig(message)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// requireCreatableDir accepts an existing directory, or a missing one whose
// nearest existing ancestor is a directory.
func requireCreatableDir(path string) error {
	for p := path; ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", p)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if parent := filepath.Dir(p); parent == p {
			return fmt.Errorf("no existing ancestor for %s", path)
		}
	}
}

// normalizeExtensions lower-cases extensions and ensures a leading dot, so
// "CATDrawing" and ".catdrawing" are the same filter.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "none" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}

func normalizeKeywords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || strings.EqualFold(w, "none") {
			continue
		}
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
