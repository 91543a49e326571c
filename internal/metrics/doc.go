// Package metrics provides observability hooks for export runs.
//
// Components receive a Recorder and default to NoopRecorder, so metrics are
// collected without nil checks anywhere in the pipeline:
//
//	coord := export.NewCoordinator(cfg, deps) // deps.Metrics == nil: NoopRecorder
//
// To enable metrics, inject a PrometheusRecorder. A one-shot run writes the
// registry to a node-exporter textfile (WriteTextfile); watch mode serves it
// over HTTP (PrometheusRecorder.Handler).
package metrics
