//go:build !linux

package rtprio

func setFIFO(int) error {
	return ErrUnsupported
}

// Current reports the scheduling policy of the calling thread
func Current() (policy uint32, priority uint32, err error) {
	return 0, 0, ErrUnsupported
}
