package mixer

// Handle is a reference-counted token for one playback request. The zero
// Handle is empty and every method on it is a no-op.
//
// Assigning a Handle moves ownership; the old variable must not be used
// afterwards. Use Clone for a second owner. Every owned Handle must be
// released exactly once, either with Release or by passing it to
// Engine.Stop.
type Handle struct {
	r *request
}

// Valid reports whether the handle refers to a request
func (h Handle) Valid() bool {
	return h.r != nil
}

// Clone returns a new owning reference to the same request
func (h Handle) Clone() Handle {
	if h.r != nil {
		h.r.refs.Add(1)
	}
	return h
}

// Release drops this reference and empties the handle. The request is freed
// once the mixer has also let go of it.
func (h *Handle) Release() {
	if h.r == nil {
		return
	}
	r := h.r
	h.r = nil
	r.release()
}

// Reset is an alias for Release
func (h *Handle) Reset() {
	h.Release()
}

// Swap exchanges the requests referenced by h and other
func (h *Handle) Swap(other *Handle) {
	h.r, other.r = other.r, h.r
}

// Take moves ownership out of h, leaving it empty
func (h *Handle) Take() Handle {
	out := *h
	h.r = nil
	return out
}

// Done reports whether the mixer has retired the request, either because it
// played to the end or because a stop was honoured. Empty handles are done.
func (h Handle) Done() bool {
	return h.r == nil || h.r.state.Load() == stateInactive
}
