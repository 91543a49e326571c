// Package history keeps a SQLite log of export runs: one summary row per
// run plus the failures it reported.
package history

import (
	"context"
	"time"
)

// Failure is one failed candidate of a run.
type Failure struct {
	Path     string
	Category string
	Reason   string
}

// Run summarizes a finished export run.
type Run struct {
	RunID    string
	Profile  string
	Input    string
	Output   string
	Format   string
	Started  time.Time
	Finished time.Time
	Exported int
	Skipped  int
	Failed   int
	Outcome  string
	Failures []Failure
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Store persists run summaries.
type Store interface {
	Append(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Failures(ctx context.Context, runID string) ([]Failure, error)
	Close() error
}
