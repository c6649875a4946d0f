package mixer

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/mixcore/internal/device"
	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
)

type eventKind uint8

const (
	eventWriteFailed eventKind = iota
	eventStartFailed
	eventPriorityFailed
)

// event carries a mixer-side failure to the monitor goroutine, which is
// allowed to log and report it
type event struct {
	kind       eventKind
	err        error
	recoverErr error
	clock      uint64
}

// notify hands ev to the monitor without blocking. When the queue is full
// the event is counted and dropped.
func (e *Engine) notify(ev event) {
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
	}
}

// monitor logs mixer events. Device errors during an xrun storm arrive once
// per period, so logging is rate limited and the suppressed count is
// reported with the next line that gets through.
func (e *Engine) monitor() {
	defer close(e.monitorDone)

	limiter := rate.NewLimiter(rate.Every(time.Second), 5)
	suppressed := 0
	lastDropped := uint64(0)

	for ev := range e.events {
		switch ev.kind {
		case eventPriorityFailed:
			e.log.Warn("realtime priority unavailable, mixer runs at normal priority",
				logger.Int("priority", e.rtPriority),
				logger.Error(ev.err))
			continue
		case eventStartFailed:
			e.report(ev.err, "start", ev.clock)
		case eventWriteFailed:
			if ev.recoverErr != nil {
				e.report(ev.recoverErr, "recover", ev.clock)
			}
		}

		if !limiter.Allow() {
			suppressed++
			continue
		}

		fields := []logger.Field{
			logger.Uint64("clock", ev.clock),
			logger.Error(ev.err),
		}
		if suppressed > 0 {
			fields = append(fields, logger.Int("suppressed", suppressed))
			suppressed = 0
		}
		if d := e.dropped.Load(); d != lastDropped {
			fields = append(fields, logger.Uint64("dropped_events", d-lastDropped))
			lastDropped = d
		}

		switch ev.kind {
		case eventWriteFailed:
			if errors.Is(ev.err, device.ErrUnderrun) {
				e.log.Warn("device underrun, stream recovered", fields...)
			} else {
				e.log.Error("device write failed", fields...)
				e.report(ev.err, "write", ev.clock)
			}
			if ev.recoverErr != nil {
				e.log.Error("device recovery failed", logger.Error(ev.recoverErr))
			}
		case eventStartFailed:
			e.log.Error("device start failed", fields...)
		}
	}

	if suppressed > 0 {
		e.log.Warn("mixer events suppressed at shutdown", logger.Int("count", suppressed))
	}
}

// report sends hard device failures to telemetry. Underruns are routine and
// stay in the log.
func (e *Engine) report(err error, operation string, clock uint64) {
	_ = errors.New(err).
		Component("mixer").
		Category(errors.CategoryAudioDevice).
		Context("operation", operation).
		Context("clock", clock).
		Build()
}
