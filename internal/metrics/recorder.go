package metrics

import "time"

// StatusLabel enumerates per-candidate result statuses for counters.
type StatusLabel string

const (
	StatusExported StatusLabel = "exported"
	StatusSkipped  StatusLabel = "skipped"
	StatusFailed   StatusLabel = "failed"
)

// RunOutcomeLabel enumerates final run outcomes.
type RunOutcomeLabel string

const (
	RunSuccess     RunOutcomeLabel = "success"
	RunFailed      RunOutcomeLabel = "failed"
	RunInterrupted RunOutcomeLabel = "interrupted"
)

// Recorder defines observability hooks for export runs. Implementations may
// forward to Prometheus or elsewhere.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncResult(status StatusLabel, category string)
	IncRunOutcome(outcome RunOutcomeLabel)
	SetCandidates(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncResult(StatusLabel, string)              {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)              {}
func (NoopRecorder) SetCandidates(int)                          {}
