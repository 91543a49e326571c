package export

import (
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/metrics"
)

// Status is the outcome of one candidate.
type Status string

const (
	StatusExported Status = "exported"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Result is produced once per candidate per run.
type Result struct {
	Path       string                // Candidate identity, or the unreadable path for walk failures
	RelPath    string                // Path relative to the input root when known
	Status     Status                // Outcome
	Category   ferrors.ErrorCategory // Error category for failures
	Reason     string                // Human readable failure reason
	OutputPath string                // Written (or already current) output file
	Warning    string                // Non-fatal problem, e.g. the skip cache was not updated
	Err        error                 // Underlying error for failures
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool { return r.Status == StatusFailed }

func (r Result) metricsStatus() metrics.StatusLabel {
	switch r.Status {
	case StatusExported:
		return metrics.StatusExported
	case StatusSkipped:
		return metrics.StatusSkipped
	default:
		return metrics.StatusFailed
	}
}

func failed(path, rel string, err error) Result {
	return Result{
		Path:     path,
		RelPath:  rel,
		Status:   StatusFailed,
		Category: ferrors.GetCategory(err),
		Reason:   ferrors.ReasonOf(err),
		Err:      err,
	}
}
