// Package metrics provides a minimal instrumentation interface with a no-op
// default and an optional Prometheus-backed implementation.
package metrics

// Recorder defines the metrics surface used across the engine.
type Recorder interface {
	// ObserveQuery records one retrieval run with its outcome label
	// ("ok", "embed_error", "retrieval_error", "rank_error"), duration,
	// and result count.
	ObserveQuery(outcome string, seconds float64, results int)

	// ObserveIngest records one ingestion batch.
	ObserveIngest(entities int, success bool, seconds float64)

	// ObserveGeneration records one answer generation with its outcome
	// label ("ok", "error", "canceled").
	ObserveGeneration(outcome string, seconds float64)
}

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) ObserveQuery(string, float64, int)     {}
func (n *noopRecorder) ObserveIngest(int, bool, float64)      {}
func (n *noopRecorder) ObserveGeneration(string, float64)     {}

var noop Recorder = &noopRecorder{}

// Noop returns the shared no-op recorder.
func Noop() Recorder {
	return noop
}
