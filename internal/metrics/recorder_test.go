package metrics

import (
	"testing"
	"time"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("write", time.Millisecond)
	r.ObserveRunDuration(time.Second)
	r.IncResult(StatusExported, "")
	r.IncRunOutcome(RunInterrupted)
	r.SetCandidates(0)

	var _ Recorder = (*PrometheusRecorder)(nil)
}
