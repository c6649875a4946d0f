// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded through Recorder.
const (
	// OpSampleLoad is a decode of a sample file into memory.
	OpSampleLoad = "sample_load"
	// OpSampleResample is a sample rate conversion after decoding.
	OpSampleResample = "sample_resample"
	// OpCacheLookup is a sample bank lookup.
	OpCacheLookup = "cache_lookup"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusHit     = "hit"
	StatusMiss    = "miss"
)

// Mixer label values.
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"

	DeviceErrorUnderrun = "underrun"
	DeviceErrorWrite    = "write"
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second
