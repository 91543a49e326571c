// Package skipcache remembers which candidate files were exported in which
// format and with what content fingerprint, so unchanged files can be
// skipped on later runs.
//
// The store is a single JSON file guarded by an advisory lock on a sidecar
// "<file>.lock". It is rewritten atomically after every recorded export, so
// an interrupted run never loses the records of files it already finished.
package skipcache
