package config

import (
	"slices"
	"time"
)

// EffectiveConfig is the merged, validated configuration of one run.
// It has no setters; copies share nothing mutable.
type EffectiveConfig struct {
	inputDir       string
	outputDir      string
	format         Format
	forceExport    bool
	noSkips        bool
	activeDocument bool
	pathStyle      PathStyle
	skipExtensions []string
	skipKeywords   []string
	openArchives   bool
	cacheFile      string
	historyDB      string
	profile        string
	extractor      ExtractorConfig
}

// ExtractorConfig describes how to reach the Document Extractor.
type ExtractorConfig struct {
	Kind    ExtractorKind
	Command string
	Args    []string
	NATSURL string
	Subject string
	Timeout time.Duration
}

// InputDir is the absolute input root.
func (c EffectiveConfig) InputDir() string { return c.inputDir }

// OutputDir is the absolute output root.
func (c EffectiveConfig) OutputDir() string { return c.outputDir }

// Format is the output format.
func (c EffectiveConfig) Format() Format { return c.format }

// ForceExport reports whether every candidate is exported regardless of the cache.
func (c EffectiveConfig) ForceExport() bool { return c.forceExport }

// SkipOptimization reports whether the skip cache may skip unchanged files.
func (c EffectiveConfig) SkipOptimization() bool { return !c.noSkips }

// ActiveDocumentOnly reports whether the extractor exports the whole active document.
func (c EffectiveConfig) ActiveDocumentOnly() bool { return c.activeDocument }

// PathStyle is the path rendering used by the automation script.
func (c EffectiveConfig) PathStyle() PathStyle { return c.pathStyle }

// SkipExtensions are lower-cased extensions (with dot) excluded from discovery.
func (c EffectiveConfig) SkipExtensions() []string { return slices.Clone(c.skipExtensions) }

// SkipKeywords exclude any candidate whose relative path contains one of them.
func (c EffectiveConfig) SkipKeywords() []string { return slices.Clone(c.skipKeywords) }

// OpenArchives reports whether zip archives are crawled.
func (c EffectiveConfig) OpenArchives() bool { return c.openArchives }

// CacheFile is the absolute skip cache store path.
func (c EffectiveConfig) CacheFile() string { return c.cacheFile }

// HistoryDB is the run history database path, empty when disabled.
func (c EffectiveConfig) HistoryDB() string { return c.historyDB }

// Profile is the settings profile the config was resolved with, empty for defaults.
func (c EffectiveConfig) Profile() string { return c.profile }

// Extractor returns a copy of the extractor settings.
func (c EffectiveConfig) Extractor() ExtractorConfig {
	e := c.extractor
	e.Args = slices.Clone(e.Args)
	return e
}

// Layer renders the effective config back into a fully populated layer,
// e.g. for `settings show`.
func (c EffectiveConfig) Layer() Layer {
	return Layer{
		InputDirectory:  Ptr(c.inputDir),
		OutputDirectory: Ptr(c.outputDir),
		FileType:        Ptr(string(c.format)),
		ForceExport:     Ptr(c.forceExport),
		NoSkips:         Ptr(c.noSkips),
		ActiveDocument:  Ptr(c.activeDocument),
		PathStyle:       Ptr(string(c.pathStyle)),
		SkipExtensions:  slices.Clone(c.skipExtensions),
		SkipKeywords:    slices.Clone(c.skipKeywords),
		OpenArchives:    Ptr(c.openArchives),
		CacheFile:       Ptr(c.cacheFile),
		HistoryDB:       Ptr(c.historyDB),
		Extractor: ExtractorLayer{
			Kind:    Ptr(string(c.extractor.Kind)),
			Command: Ptr(c.extractor.Command),
			Args:    slices.Clone(c.extractor.Args),
			NATSURL: Ptr(c.extractor.NATSURL),
			Subject: Ptr(c.extractor.Subject),
			Timeout: Ptr(c.extractor.Timeout.String()),
		},
	}
}
