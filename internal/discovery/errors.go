package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrRootNotFound indicates the walk root does not exist or is not a directory.
	ErrRootNotFound = errors.New("input root not found")

	// ErrDirUnreadable indicates a directory could not be listed.
	ErrDirUnreadable = errors.New("directory unreadable")

	// ErrArchiveUnreadable indicates a zip archive could not be opened or a member extracted.
	ErrArchiveUnreadable = errors.New("archive unreadable")

	// ErrUnsafeArchiveMember indicates a zip member whose name escapes the archive root.
	ErrUnsafeArchiveMember = errors.New("unsafe archive member")

	// ErrFingerprint indicates a candidate's content could not be read for fingerprinting.
	ErrFingerprint = errors.New("fingerprint failed")
)

// WalkError is yielded for a part of the tree the walker could not enter.
// The walk continues past it.
type WalkError struct {
	Path string
	Err  error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walk %s: %v", e.Path, e.Err)
}

func (e *WalkError) Unwrap() error { return e.Err }
