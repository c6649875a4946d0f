package mixer

import "sync/atomic"

// Request states. Transitions only move forward:
// active -> stopRequested -> inactive, or active -> inactive on completion.
const (
	stateActive int32 = iota
	stateStopRequested
	stateInactive
)

// initialRefs accounts for the Handle returned to the caller plus list
// membership (registry, then reclamation queue).
const initialRefs = 2

// request is one scheduled playback. It is an intrusive list node: next is
// only meaningful while the node sits in the registry or the reclamation
// queue, and it never implies ownership. Ownership is tracked by refs alone.
type request struct {
	next *request

	samples []float32 // caller owned, read-only
	cursor  int       // samples consumed; touched only by the mixer goroutine
	start   uint64    // mix clock frame at which playback begins
	gain    float32

	state atomic.Int32
	refs  atomic.Int32

	owner *Engine
}

// release drops one reference and frees the node when it was the last one.
// It reports whether this call freed the node.
func (r *request) release() bool {
	switch n := r.refs.Add(-1); {
	case n == 0:
		r.owner.free(r)
		return true
	case n < 0:
		panic("mixer: request reference count underflow")
	default:
		return false
	}
}

// requestStop moves an active request to stopRequested. Requests that
// already left the active state are untouched.
func (r *request) requestStop() bool {
	for {
		s := r.state.Load()
		if s != stateActive {
			return false
		}
		if r.state.CompareAndSwap(s, stateStopRequested) {
			return true
		}
	}
}

func (r *request) reset() {
	r.next = nil
	r.samples = nil
	r.cursor = 0
	r.start = 0
	r.gain = 0
	r.state.Store(stateInactive)
}
