package config

import "slices"

// Layer is one source of settings. A nil field (or nil slice) means "not set
// here" and leaves the value of the layer below untouched.
type Layer struct {
	InputDirectory  *string        `yaml:"input_directory,omitempty" toml:"input_directory,omitempty"`
	OutputDirectory *string        `yaml:"output_directory,omitempty" toml:"output_directory,omitempty"`
	FileType        *string        `yaml:"file_type,omitempty" toml:"file_type,omitempty"`
	ForceExport     *bool          `yaml:"force_export,omitempty" toml:"force_export,omitempty"`
	NoSkips         *bool          `yaml:"no_skips,omitempty" toml:"no_skips,omitempty"`
	ActiveDocument  *bool          `yaml:"active_document,omitempty" toml:"active_document,omitempty"`
	PathStyle       *string        `yaml:"path_style,omitempty" toml:"path_style,omitempty"`
	SkipExtensions  []string       `yaml:"skip_extensions,omitempty" toml:"skip_extensions,omitempty"`
	SkipKeywords    []string       `yaml:"skip_keywords,omitempty" toml:"skip_keywords,omitempty"`
	OpenArchives    *bool          `yaml:"open_archives,omitempty" toml:"open_archives,omitempty"`
	CacheFile       *string        `yaml:"cache_file,omitempty" toml:"cache_file,omitempty"`
	HistoryDB       *string        `yaml:"history_db,omitempty" toml:"history_db,omitempty"`
	Extractor       ExtractorLayer `yaml:"extractor,omitempty" toml:"extractor,omitempty"`
}

// ExtractorLayer holds the Document Extractor connection settings of a layer.
type ExtractorLayer struct {
	Kind    *string  `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Command *string  `yaml:"command,omitempty" toml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" toml:"args,omitempty"`
	NATSURL *string  `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	Subject *string  `yaml:"subject,omitempty" toml:"subject,omitempty"`
	Timeout *string  `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// Overrides are the run-time settings layer (command flags, environment).
type Overrides = Layer

// Merge returns l with every field set in over replacing the value in l.
// Each field is merged independently.
func (l Layer) Merge(over Layer) Layer {
	out := l
	pick(&out.InputDirectory, over.InputDirectory)
	pick(&out.OutputDirectory, over.OutputDirectory)
	pick(&out.FileType, over.FileType)
	pick(&out.ForceExport, over.ForceExport)
	pick(&out.NoSkips, over.NoSkips)
	pick(&out.ActiveDocument, over.ActiveDocument)
	pick(&out.PathStyle, over.PathStyle)
	pickSlice(&out.SkipExtensions, over.SkipExtensions)
	pickSlice(&out.SkipKeywords, over.SkipKeywords)
	pick(&out.OpenArchives, over.OpenArchives)
	pick(&out.CacheFile, over.CacheFile)
	pick(&out.HistoryDB, over.HistoryDB)

	pick(&out.Extractor.Kind, over.Extractor.Kind)
	pick(&out.Extractor.Command, over.Extractor.Command)
	pickSlice(&out.Extractor.Args, over.Extractor.Args)
	pick(&out.Extractor.NATSURL, over.Extractor.NATSURL)
	pick(&out.Extractor.Subject, over.Extractor.Subject)
	pick(&out.Extractor.Timeout, over.Extractor.Timeout)
	return out
}

// MergeLayers folds layers from lowest to highest precedence.
func MergeLayers(layers ...Layer) Layer {
	var out Layer
	for _, l := range layers {
		out = out.Merge(l)
	}
	return out
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func pickSlice(dst *[]string, src []string) {
	if src != nil {
		*dst = slices.Clone(src)
	}
}

// Ptr returns a pointer to v. Used to build layers in code.
func Ptr[T any](v T) *T { return &v }
