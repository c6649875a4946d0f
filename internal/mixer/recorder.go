package mixer

import "time"

// RetireReason says why the mixer dropped a request
type RetireReason string

const (
	RetireCompleted RetireReason = "completed"
	RetireStopped   RetireReason = "stopped"
)

// Recorder receives engine metrics. Most methods run on the mixer goroutine,
// so implementations must not block or take locks.
type Recorder interface {
	RecordPeriod(mix time.Duration, active int, clock uint64)
	RecordRetire(reason RetireReason)
	RecordSubmit()
	RecordStopRequest()
	RecordFree()
	RecordDeviceError(kind string)
	RecordRecovery(ok bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordPeriod(time.Duration, int, uint64) {}
func (noopRecorder) RecordRetire(RetireReason)               {}
func (noopRecorder) RecordSubmit()                           {}
func (noopRecorder) RecordStopRequest()                      {}
func (noopRecorder) RecordFree()                             {}
func (noopRecorder) RecordDeviceError(string)                {}
func (noopRecorder) RecordRecovery(bool)                     {}
