package device

import (
	"sync"
	"time"
)

// Null is a wall-clock paced sink that discards audio. It models a device
// ring of BufferFrames: writes complete immediately until the ring is full,
// then block at the sample rate. Falling behind the consumer yields
// ErrUnderrun just like real hardware.
type Null struct {
	params    Params
	frameTime time.Duration

	mu      sync.Mutex
	started bool
	startAt time.Time
	written int64 // frames written since the last start or recover
	closed  bool

	now   func() time.Time
	sleep func(time.Duration)
}

// NewNull returns a paced null device with the requested parameters
func NewNull(req Params) (*Null, error) {
	req.Channels = 1
	if err := validateParams(req); err != nil {
		return nil, newDeviceError(err, "null", "", "open")
	}
	return &Null{
		params:    req,
		frameTime: time.Second / time.Duration(req.SampleRate),
		now:       time.Now,
		sleep:     time.Sleep,
	}, nil
}

func (n *Null) Params() Params { return n.params }

// Write accounts for one period and sleeps until the simulated ring has room
func (n *Null) Write(samples []int16) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}

	now := n.now()
	if n.started {
		consumed := int64(now.Sub(n.startAt) / n.frameTime)
		if consumed > n.written {
			n.mu.Unlock()
			return ErrUnderrun
		}
	}

	n.written += int64(len(samples))
	if !n.started && n.written >= int64(n.params.BufferFrames) {
		n.startLocked(now)
	}

	var wait time.Duration
	if n.started {
		// room for the next period opens once written-buffer frames have played
		deadline := n.startAt.Add(time.Duration(n.written-int64(n.params.BufferFrames)) * n.frameTime)
		wait = deadline.Sub(now)
	}
	n.mu.Unlock()

	if wait > 0 {
		n.sleep(wait)
	}
	return nil
}

func (n *Null) startLocked(now time.Time) {
	n.started = true
	n.startAt = now
}

// Start begins consuming buffered frames
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	if !n.started {
		n.startLocked(n.now())
	}
	return nil
}

// Recover drops queued frames and waits for a new pre-fill
func (n *Null) Recover() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = false
	n.written = 0
	return nil
}

func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}
