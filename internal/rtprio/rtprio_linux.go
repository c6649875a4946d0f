//go:build linux

package rtprio

import "golang.org/x/sys/unix"

func setFIFO(priority int) error {
	// pid 0 targets the calling thread
	return unix.SchedSetAttr(0, &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}, 0)
}

// Current reports the scheduling policy of the calling thread
func Current() (policy uint32, priority uint32, err error) {
	attr, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		return 0, 0, err
	}
	return attr.Policy, attr.Priority, nil
}
