// Package watch keeps exports current: after an initial run it re-runs when
// files under the input root change (debounced) and optionally on a fixed
// interval. Runs never overlap; triggers that arrive during a run collapse
// into a single follow-up run.
package watch
