// Package metrics provides custom Prometheus metrics for mixcore.
package metrics

// Recorder defines a minimal interface for recording metrics from code that
// runs outside the mixer goroutine.
type Recorder interface {
	// RecordOperation records an operation with its status.
	// The operation parameter describes what was performed (e.g., "sample_load").
	// The status parameter indicates the outcome (e.g., "success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	// The errorType parameter categorizes the error (e.g., "validation", "file-io").
	RecordError(operation, errorType string)
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string)  {}
func (NopRecorder) RecordDuration(string, float64)  {}
func (NopRecorder) RecordError(string, string)      {}

var _ Recorder = NopRecorder{}
