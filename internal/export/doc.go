// Package export drives a run: it walks the input tree, asks the skip cache
// about each candidate, extracts and serializes what changed, writes the
// output files and reports per-candidate results.
//
// A run is a single sequential pipeline. Only one document is open in the
// extractor at any time. Per-candidate failures are recorded in the Report
// and never abort the run.
package export
