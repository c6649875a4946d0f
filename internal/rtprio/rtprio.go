// Package rtprio raises the scheduling class of the calling OS thread.
//
// Callers must pin the goroutine with runtime.LockOSThread first, otherwise
// the policy lands on whichever thread the goroutine happens to occupy.
package rtprio

import "github.com/tphakala/mixcore/internal/errors"

// ErrUnsupported is returned on platforms without SCHED_FIFO support
var ErrUnsupported = errors.NewStd("realtime scheduling not supported on this platform")

const (
	MinPriority = 1
	MaxPriority = 99
)

// SetFIFO switches the current thread to SCHED_FIFO at the given priority.
// Failure is expected without CAP_SYS_NICE or an rtprio rlimit and leaves
// the thread on its previous policy.
func SetFIFO(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return errors.Newf("realtime priority %d out of range %d-%d", priority, MinPriority, MaxPriority).
			Component("rtprio").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := setFIFO(priority); err != nil {
		return errors.New(err).
			Component("rtprio").
			Category(errors.CategorySystem).
			Context("priority", priority).
			Build()
	}
	return nil
}
