package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind is the CAD document type derived from the file extension.
type Kind string

const (
	KindPart    Kind = "Part"
	KindProduct Kind = "Product"
	KindDrawing Kind = "Drawing"
	KindProcess Kind = "Process"
	KindOther   Kind = "Other"
)

const catPrefix = ".cat"

// KindOf maps an extension such as ".CATPart" to its document kind.
func KindOf(ext string) Kind {
	lower := strings.ToLower(ext)
	if !strings.HasPrefix(lower, catPrefix) {
		return KindOther
	}
	switch strings.TrimPrefix(lower, catPrefix) {
	case "part":
		return KindPart
	case "product":
		return KindProduct
	case "drawing":
		return KindDrawing
	case "process":
		return KindProcess
	default:
		return KindOther
	}
}

// IsCADExtension reports whether ext belongs to the .CAT* family.
func IsCADExtension(ext string) bool {
	lower := strings.ToLower(ext)
	return strings.HasPrefix(lower, catPrefix) && len(lower) > len(catPrefix)
}

// CandidateFile is a discovered design file eligible for export.
type CandidateFile struct {
	Path       string    // Normalized identity path (archive members: <archive>/<member>)
	SourcePath string    // File read for extraction and fingerprinting
	RelPath    string    // Path relative to the input root, used for output placement
	Ext        string    // Extension as found on disk, e.g. ".CATPart"
	Kind       Kind      // Document kind
	ModTime    time.Time // Modification time
	Size       int64     // Size in bytes
	Archive    string    // Archive path for zip members, empty otherwise
	Member     string    // Member name inside Archive

	fingerprint string
}

// Stem is the file name without its extension.
func (c *CandidateFile) Stem() string {
	base := filepath.Base(c.RelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputRel is the output location relative to the output root for the given
// file extension (without dot).
func (c *CandidateFile) OutputRel(ext string) string {
	return filepath.Join(filepath.Dir(c.RelPath), c.Stem()+"."+ext)
}

// FromArchive reports whether the candidate was extracted from a zip archive.
func (c *CandidateFile) FromArchive() bool { return c.Archive != "" }

// Fingerprint returns the hex SHA-256 of the file content. A successful
// result is memoized; failures are not.
func (c *CandidateFile) Fingerprint() (string, error) {
	if c.fingerprint != "" {
		return c.fingerprint, nil
	}
	f, err := os.Open(c.SourcePath) // #nosec G304 -- discovered by the walker
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFingerprint, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFingerprint, c.SourcePath, err)
	}
	c.fingerprint = hex.EncodeToString(h.Sum(nil))
	return c.fingerprint, nil
}
