package discovery

import (
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath returns the identity form of a path: absolute, cleaned,
// Unicode NFC, and case-folded on Windows where the filesystem is
// case-insensitive.
func NormalizePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = norm.NFC.String(filepath.Clean(abs))
	if runtime.GOOS == "windows" {
		abs = strings.ToLower(abs)
	}
	return abs, nil
}
