package mixer

import (
	"runtime"
	"time"

	"github.com/tphakala/mixcore/internal/device"
	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/rtprio"
)

func (e *Engine) run() {
	defer close(e.done)

	runtime.LockOSThread()
	elevated := false
	if e.rtPriority > 0 {
		if err := rtprio.SetFIFO(e.rtPriority); err != nil {
			e.notify(event{kind: eventPriorityFailed, err: err})
		} else {
			elevated = true
		}
	}
	// An elevated thread stays locked so it exits with this goroutine
	// instead of going back to the scheduler with SCHED_FIFO set.
	if !elevated {
		defer runtime.UnlockOSThread()
	}

	for !e.stop.Load() {
		e.mixPeriod()
	}
}

// mixPeriod produces and writes exactly one period, then advances the clock
// by one period whether or not the write succeeded.
func (e *Engine) mixPeriod() {
	began := time.Now()

	clear(e.accum)
	now := e.clock.Load()
	period := uint64(len(e.accum))

	var prev *request
	live := 0
	for cur := e.reg.head.Load(); cur != nil; {
		var offset uint64
		if cur.start > now {
			offset = cur.start - now
		}
		if offset < period {
			n := min(len(cur.samples)-cur.cursor, int(period-offset))
			mixInto(e.accum[offset:int(offset)+n], cur.samples[cur.cursor:cur.cursor+n], cur.gain)
			cur.cursor += n
		}

		// cur.next is reused by the reclamation queue once cur retires
		next := cur.next

		completed := cur.cursor == len(cur.samples)
		if completed || cur.state.Load() == stateStopRequested {
			cur.state.Store(stateInactive)
			prev = e.reg.unlink(prev, cur)
			e.retired.push(cur)
			e.active.Add(-1)
			e.retiredCount.Add(1)
			if completed {
				e.rec.RecordRetire(RetireCompleted)
			} else {
				e.rec.RecordRetire(RetireStopped)
			}
		} else {
			prev = cur
			live++
		}
		cur = next
	}

	quantize(e.out, e.accum)
	mixTime := time.Since(began)

	if err := e.dev.Write(e.out); err != nil {
		e.recoverDevice(err, now)
	} else {
		before := e.queued
		e.queued = min(e.queued+len(e.out), e.params.BufferFrames)
		if before < e.params.BufferFrames && e.queued >= e.params.BufferFrames {
			if err := e.dev.Start(); err != nil {
				e.notify(event{kind: eventStartFailed, err: err, clock: now})
			}
		}
	}

	e.clock.Store(now + period)
	e.periods.Add(1)
	e.rec.RecordPeriod(mixTime, live, now+period)
}

func (e *Engine) recoverDevice(writeErr error, clock uint64) {
	e.deviceErrors.Add(1)
	if errors.Is(writeErr, device.ErrUnderrun) {
		e.rec.RecordDeviceError("underrun")
	} else {
		e.rec.RecordDeviceError("write")
	}

	e.queued = 0
	recErr := e.dev.Recover()
	e.rec.RecordRecovery(recErr == nil)
	e.notify(event{kind: eventWriteFailed, err: writeErr, recoverErr: recErr, clock: clock})
}

func mixInto(dst, src []float32, gain float32) {
	for i, s := range src {
		dst[i] += s * gain
	}
}
