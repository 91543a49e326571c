package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultOutputDirName is created under the working directory when no output is configured.
	DefaultOutputDirName = "catminer-output"
	// DefaultCacheFileName is the skip cache file name.
	DefaultCacheFileName = "skip-cache.json"
	// DefaultNATSSubject is the subject prefix of the NATS extraction worker.
	DefaultNATSSubject = "catminer.extractor"
	// DefaultExtractorTimeout bounds a single extractor request.
	DefaultExtractorTimeout = 5 * time.Minute
)

// Defaults returns the built-in settings layer. Every field is set so the
// merged result of any layer stack is complete.
func Defaults() Layer {
	return Layer{
		InputDirectory:  Ptr("."),
		OutputDirectory: Ptr(DefaultOutputDirName),
		FileType:        Ptr(string(FormatXML)),
		ForceExport:     Ptr(false),
		NoSkips:         Ptr(false),
		ActiveDocument:  Ptr(false),
		PathStyle:       Ptr(string(PathStyleAbsolute)),
		SkipExtensions:  []string{},
		SkipKeywords:    []string{},
		OpenArchives:    Ptr(true),
		CacheFile:       Ptr(DefaultCacheFile()),
		HistoryDB:       Ptr(""),
		Extractor: ExtractorLayer{
			Kind:    Ptr(string(ExtractorExec)),
			Command: Ptr("catminer-extract"),
			Args:    []string{},
			NATSURL: Ptr("nats://127.0.0.1:4222"),
			Subject: Ptr(DefaultNATSSubject),
			Timeout: Ptr(DefaultExtractorTimeout.String()),
		},
	}
}

// DefaultCacheFile returns the per-user skip cache location. It falls back to
// a file in the working directory when no user cache directory is known.
func DefaultCacheFile() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return ".catminer-" + DefaultCacheFileName
	}
	return filepath.Join(dir, "catminer", DefaultCacheFileName)
}
