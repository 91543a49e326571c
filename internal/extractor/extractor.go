// Package extractor defines the boundary to the Document Extractor, the
// external service that opens a CAD document in its host application and
// returns its content as a document tree.
package extractor

import (
	"context"

	"git.home.luguber.info/inful/catminer/internal/document"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
)

// Handle identifies an open document session.
type Handle struct {
	ID   string
	Path string
}

// Extractor opens, extracts and closes one document at a time. Callers
// always Close a handle before opening the next.
type Extractor interface {
	Open(ctx context.Context, path string) (Handle, error)
	Extract(ctx context.Context, h Handle, activeDocumentOnly bool) (*document.Tree, error)
	Close(ctx context.Context, h Handle) error
}

// Wrap classifies err as an extraction error for op on path. Errors that
// are already classified pass through unchanged.
func Wrap(err error, op, path string) error {
	if err == nil {
		return nil
	}
	if ferrors.IsClassified(err) {
		return err
	}
	return ferrors.ExtractionError(op+" failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("path", path).
		Build()
}
