// Package mixer implements a lock-free playback engine. Any goroutine may
// schedule sample buffers for playback at a given frame of the mix clock; a
// single mixer goroutine sums every active request into one period at a time
// and writes the result to a blocking device.
//
// The mixer goroutine never takes a lock, never allocates and never logs.
// Producers and the mixer share only an atomic intrusive list; finished
// requests are handed back through a second list and freed by whichever
// goroutine next calls Drain (Play and Stop do this implicitly).
package mixer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/cpuid/v2"

	"github.com/tphakala/mixcore/internal/conf"
	"github.com/tphakala/mixcore/internal/device"
	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
)

const eventQueueSize = 64

// ErrClosed is returned when starting an engine that has been closed
var ErrClosed = errors.NewStd("mixer closed")

// Stats is a point-in-time snapshot of engine counters
type Stats struct {
	Clock         uint64 // frames mixed so far
	Active        int64  // requests submitted and not yet retired
	Periods       uint64
	Submitted     uint64
	Retired       uint64
	Freed         uint64
	DeviceErrors  uint64
	DroppedEvents uint64 // monitor events lost because the queue was full
}

// Engine mixes scheduled requests into a device
type Engine struct {
	dev    device.Device
	params device.Params

	reg     registry
	retired reclaimQueue

	clock  atomic.Uint64
	active atomic.Int64

	started    atomic.Bool
	stop       atomic.Bool
	closed     atomic.Bool
	submitting atomic.Int32
	closeOnce  sync.Once
	closeErr   error

	pool sync.Pool

	// owned by the mixer goroutine
	accum  []float32
	out    []int16
	queued int

	done        chan struct{}
	events      chan event
	monitorDone chan struct{}

	periods      atomic.Uint64
	submitted    atomic.Uint64
	retiredCount atomic.Uint64
	freed        atomic.Uint64
	deviceErrors atomic.Uint64
	dropped      atomic.Uint64

	log        logger.Logger
	rec        Recorder
	rtPriority int
	deferStart bool
	onFree     func()
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used by the monitor goroutine
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// WithRealtimePriority requests SCHED_FIFO at the given priority for the
// mixer thread. Failure is logged and playback continues.
func WithRealtimePriority(priority int) Option {
	return func(e *Engine) {
		e.rtPriority = priority
	}
}

// WithFreeHook registers a function called each time a request is freed.
// It runs on whichever goroutine dropped the last reference.
func WithFreeHook(fn func()) Option {
	return func(e *Engine) {
		e.onFree = fn
	}
}

// WithDeferredStart makes Open return without starting the mixer, so that
// requests can be queued against frame 0 before the first period is mixed.
// The caller starts the engine with Start.
func WithDeferredStart() Option {
	return func(e *Engine) {
		e.deferStart = true
	}
}

// GetLogger returns the mixer module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("mixer")
}

// New creates an engine writing to dev. The engine owns dev from here on and
// closes it in Close. The mixer goroutine is not running until Start.
func New(dev device.Device, opts ...Option) (*Engine, error) {
	if dev == nil {
		return nil, errors.Newf("nil device").
			Component("mixer").
			Category(errors.CategoryValidation).
			Build()
	}

	p := dev.Params()
	if p.PeriodFrames <= 0 || p.BufferFrames < p.PeriodFrames || p.SampleRate <= 0 {
		return nil, errors.Newf("unusable device parameters: rate %d period %d buffer %d",
			p.SampleRate, p.PeriodFrames, p.BufferFrames).
			Component("mixer").
			Category(errors.CategoryValidation).
			Context("sample_rate", p.SampleRate).
			Context("period_frames", p.PeriodFrames).
			Context("buffer_frames", p.BufferFrames).
			Build()
	}

	e := &Engine{
		dev:         dev,
		params:      p,
		accum:       make([]float32, p.PeriodFrames),
		out:         make([]int16, p.PeriodFrames),
		done:        make(chan struct{}),
		events:      make(chan event, eventQueueSize),
		monitorDone: make(chan struct{}),
		rec:         noopRecorder{},
	}
	e.pool.New = func() any { return new(request) }

	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = GetLogger()
	}
	return e, nil
}

// Open opens the configured device, creates an engine on it and starts it
func Open(settings *conf.Settings, opts ...Option) (*Engine, error) {
	if settings == nil {
		return nil, errors.Newf("nil settings").
			Component("mixer").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dev, err := device.Open(&settings.Audio)
	if err != nil {
		return nil, err
	}

	if settings.Audio.Realtime {
		opts = append(opts, WithRealtimePriority(settings.Audio.Priority))
	}

	e, err := New(dev, opts...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	if !e.deferStart {
		if err := e.Start(); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	p := e.params
	e.log.Info("mixer opened",
		logger.String("backend", settings.Audio.Backend),
		logger.String("device", settings.Audio.Device),
		logger.Int("sample_rate", p.SampleRate),
		logger.Int("period_frames", p.PeriodFrames),
		logger.Int("buffer_frames", p.BufferFrames),
		logger.Duration("period", e.PeriodDuration()),
		logger.Bool("realtime", settings.Audio.Realtime),
		logger.String("cpu", cpuid.CPU.BrandName),
		logger.Int("logical_cores", cpuid.CPU.LogicalCores))

	return e, nil
}

// Start launches the mixer and monitor goroutines. Calling Start twice is a
// no-op.
func (e *Engine) Start() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}
	if e.closed.Load() {
		// Close may already be waiting on these
		close(e.done)
		close(e.monitorDone)
		return ErrClosed
	}
	go e.monitor()
	go e.run()
	return nil
}

// Close stops the mixer goroutine, waits for it to exit, closes the device
// and frees every request the engine still holds. Handles owned by callers
// stay valid and must still be released. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		for e.submitting.Load() != 0 {
			runtime.Gosched()
		}

		e.stop.Store(true)
		if e.started.Load() {
			<-e.done
			close(e.events)
			<-e.monitorDone
		}

		if err := e.dev.Close(); err != nil {
			e.closeErr = errors.New(err).
				Component("mixer").
				Category(errors.CategoryAudioDevice).
				Context("operation", "close").
				Build()
		}

		e.retireAll()
		e.Drain()
	})
	return e.closeErr
}

// Shutdown is Close bounded by ctx. If ctx expires first the close keeps
// running in the background.
func (e *Engine) Shutdown(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Close()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("mixer").
			Category(errors.CategoryTimeout).
			Context("operation", "shutdown").
			Build()
	}
}

// retireAll moves whatever is left in the registry to the reclamation
// queue. Only valid once the mixer goroutine has exited.
func (e *Engine) retireAll() {
	for cur := e.reg.head.Swap(nil); cur != nil; {
		next := cur.next
		cur.state.Store(stateInactive)
		e.retired.push(cur)
		e.active.Add(-1)
		e.retiredCount.Add(1)
		e.rec.RecordRetire(RetireStopped)
		cur = next
	}
}

// Play schedules samples to start at the current mix clock, which in
// practice means the next period the mixer produces.
func (e *Engine) Play(samples []float32, gain float32) Handle {
	return e.PlayAt(e.clock.Load(), samples, gain)
}

// PlayAt schedules samples to start at frame start of the mix clock. A start
// in the past plays immediately from the beginning of the buffer. The engine
// reads samples until the request is retired; the caller must not modify it
// before then.
//
// An empty Handle is returned once the engine is closed.
func (e *Engine) PlayAt(start uint64, samples []float32, gain float32) Handle {
	e.Drain()

	e.submitting.Add(1)
	defer e.submitting.Add(-1)
	if e.closed.Load() {
		return Handle{}
	}

	r, _ := e.pool.Get().(*request)
	if r == nil {
		r = new(request)
	}
	r.owner = e
	r.samples = samples
	r.cursor = 0
	r.start = start
	r.gain = gain
	r.state.Store(stateActive)
	r.refs.Store(initialRefs)

	e.active.Add(1)
	e.submitted.Add(1)
	e.rec.RecordSubmit()
	e.reg.push(r)

	return Handle{r: r}
}

// Stop asks the mixer to retire the request and releases the handle. The
// request may still contribute to the period being mixed right now. Stopping
// an empty or already finished handle only releases it.
func (e *Engine) Stop(h *Handle) {
	if h == nil || h.r == nil {
		return
	}
	if h.r.requestStop() {
		e.rec.RecordStopRequest()
	}
	h.Release()
	e.Drain()
}

// Drain frees requests the mixer has retired and returns how many it took
// off the reclamation queue. Safe to call from any goroutine other than the
// mixer.
func (e *Engine) Drain() int {
	n := 0
	for cur := e.retired.take(); cur != nil; {
		next := cur.next
		cur.release()
		cur = next
		n++
	}
	return n
}

func (e *Engine) free(r *request) {
	r.reset()
	r.owner = nil
	e.freed.Add(1)
	e.rec.RecordFree()
	if e.onFree != nil {
		e.onFree()
	}
	e.pool.Put(r)
}

// Now returns the mix clock: the frame index of the next period to be mixed
func (e *Engine) Now() uint64 {
	return e.clock.Load()
}

// Active returns the number of requests that have not been retired yet
func (e *Engine) Active() int {
	return int(e.active.Load())
}

// Params returns the negotiated device parameters
func (e *Engine) Params() device.Params {
	return e.params
}

// PeriodDuration is the wall time covered by one period
func (e *Engine) PeriodDuration() time.Duration {
	return time.Duration(e.params.PeriodFrames) * time.Second / time.Duration(e.params.SampleRate)
}

// FramesFor converts a duration to frames at the device rate
func (e *Engine) FramesFor(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d * time.Duration(e.params.SampleRate) / time.Second)
}

// Stats returns current counters
func (e *Engine) Stats() Stats {
	return Stats{
		Clock:         e.clock.Load(),
		Active:        e.active.Load(),
		Periods:       e.periods.Load(),
		Submitted:     e.submitted.Load(),
		Retired:       e.retiredCount.Load(),
		Freed:         e.freed.Load(),
		DeviceErrors:  e.deviceErrors.Load(),
		DroppedEvents: e.dropped.Load(),
	}
}

// WaitIdle blocks until every submitted request has been retired and freed
// by the engine, or ctx is done.
func (e *Engine) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(max(e.PeriodDuration()/2, time.Millisecond))
	defer ticker.Stop()

	for {
		// retirement pushes before it decrements, so everything is queued
		// by the time active reads zero
		if e.active.Load() == 0 {
			e.Drain()
			return nil
		}
		e.Drain()
		select {
		case <-ctx.Done():
			return errors.New(ctx.Err()).
				Component("mixer").
				Category(errors.CategoryTimeout).
				Context("operation", "wait_idle").
				Context("active", e.active.Load()).
				Build()
		case <-ticker.C:
		}
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("clock=%d active=%d periods=%d submitted=%d retired=%d freed=%d device_errors=%d dropped_events=%d",
		s.Clock, s.Active, s.Periods, s.Submitted, s.Retired, s.Freed, s.DeviceErrors, s.DroppedEvents)
}
