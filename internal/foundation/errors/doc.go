// Package errors provides the classified error primitives used across catminer.
//
// Every failure the export pipeline can report carries a category, so the CLI
// can pick an exit code and the run report can group per-file failures.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, lock, extraction, write, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLI adapter for exit codes and error presentation
//
// Example usage:
//
//	err := errors.ExtractionError("extract failed").
//		WithContext("path", candidate.Path).
//		WithCause(originalErr).
//		Build()
package errors
