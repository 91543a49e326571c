// Package serialize renders document trees as XML or JSON. Output is
// deterministic: equal trees produce byte-identical files.
package serialize

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/document"
)

// ErrUnsupportedFormat is returned for a format without a serializer.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ErrNonFiniteNumber is re-exported for callers that only import serialize.
var ErrNonFiniteNumber = document.ErrNonFiniteNumber

// Serialize renders tree in format.
func Serialize(tree *document.Tree, format config.Format) ([]byte, error) {
	if tree == nil || tree.Root == nil {
		return nil, document.ErrNoRoot
	}
	switch format {
	case config.FormatXML:
		return XML(tree)
	case config.FormatJSON:
		return JSON(tree)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
