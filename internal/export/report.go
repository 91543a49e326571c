package export

import (
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/history"
	"git.home.luguber.info/inful/catminer/internal/interrupt"
	"git.home.luguber.info/inful/catminer/internal/metrics"
)

// Report aggregates the results of one run.
type Report struct {
	RunID       string
	Profile     string
	Format      config.Format
	Input       string
	Output      string
	Started     time.Time
	Finished    time.Time
	Interrupted interrupt.Level
	Candidates  int
	Results     []Result
	Warnings    []string
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

func (r *Report) count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Exported is the number of candidates written this run.
func (r *Report) Exported() int { return r.count(StatusExported) }

// Skipped is the number of unchanged candidates.
func (r *Report) Skipped() int { return r.count(StatusSkipped) }

// Failed is the number of failures, walk failures included.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// Failures returns the failed results in processing order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// HasFailures reports whether any result failed. The CLI exits zero only
// when it is false.
func (r *Report) HasFailures() bool { return r.Failed() > 0 }

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Outcome classifies the run for metrics and history.
func (r *Report) Outcome() metrics.RunOutcomeLabel {
	switch {
	case r.Interrupted != interrupt.None:
		return metrics.RunInterrupted
	case r.HasFailures():
		return metrics.RunFailed
	default:
		return metrics.RunSuccess
	}
}

// History converts the report into a run history entry.
func (r *Report) History() history.Run {
	run := history.Run{
		RunID:    r.RunID,
		Profile:  r.Profile,
		Input:    r.Input,
		Output:   r.Output,
		Format:   string(r.Format),
		Started:  r.Started,
		Finished: r.Finished,
		Exported: r.Exported(),
		Skipped:  r.Skipped(),
		Failed:   r.Failed(),
		Outcome:  string(r.Outcome()),
	}
	for _, f := range r.Failures() {
		run.Failures = append(run.Failures, history.Failure{Path: f.Path, Category: string(f.Category), Reason: f.Reason})
	}
	return run
}

// Render writes the human readable summary followed by the failure list.
func (r *Report) Render(w io.Writer) error {
	profile := r.Profile
	if profile == "" {
		profile = "default"
	}
	lines := []string{
		fmt.Sprintf("Run %s finished in %s (profile: %s, format: %s)", r.RunID, r.Duration().Round(time.Millisecond), profile, r.Format),
		fmt.Sprintf("  exported: %d", r.Exported()),
		fmt.Sprintf("  skipped:  %d", r.Skipped()),
		fmt.Sprintf("  failed:   %d", r.Failed()),
	}
	if r.Interrupted != interrupt.None {
		lines = append(lines, fmt.Sprintf("  interrupted: %s", r.Interrupted))
	}

	if failures := r.Failures(); len(failures) > 0 {
		lines = append(lines, "Failures:")
		for _, f := range failures {
			lines = append(lines, fmt.Sprintf("  %s: [%s] %s", f.Path, f.Category, f.Reason))
		}
	}

	var warnings []string
	warnings = append(warnings, r.Warnings...)
	for _, res := range r.Results {
		if res.Warning != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", res.Path, res.Warning))
		}
	}
	if len(warnings) > 0 {
		lines = append(lines, "Warnings:")
		for _, wmsg := range warnings {
			lines = append(lines, "  "+wmsg)
		}
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
