package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mixcore/internal/device"
	"github.com/tphakala/mixcore/internal/errors"
)

func TestPlayStartsAtCurrentFrame(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 8, 16)
	h := e.Play(constant(4, 0.5), 1)
	defer h.Release()

	e.mixPeriod()

	out := dev.written()
	require.Len(t, out, 1)
	want := []int16{s16(0.5), s16(0.5), s16(0.5), s16(0.5), 0, 0, 0, 0}
	assert.Equal(t, want, out[0])
	assert.True(t, h.Done())
}

func TestPlayAtOffsetWithinPeriod(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 8, 16)
	src := ramp(8)
	h := e.PlayAt(4, src, 1)
	defer h.Release()

	e.mixPeriod()
	assert.False(t, h.Done())
	e.mixPeriod()
	assert.True(t, h.Done())

	out := dev.written()
	require.Len(t, out, 2)
	assert.Equal(t, []int16{0, 0, 0, 0, s16(src[0]), s16(src[1]), s16(src[2]), s16(src[3])}, out[0])
	assert.Equal(t, []int16{s16(src[4]), s16(src[5]), s16(src[6]), s16(src[7]), 0, 0, 0, 0}, out[1])
}

func TestPlayAtFutureFrameWaits(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 8, 16)
	h := e.PlayAt(19, constant(2, 0.25), 1)
	defer h.Release()

	e.mixPeriod()
	e.mixPeriod()
	assert.Equal(t, 1, e.Active())
	e.mixPeriod()
	assert.Zero(t, e.Active())

	out := dev.written()
	require.Len(t, out, 3)
	assert.Equal(t, make([]int16, 8), out[0])
	assert.Equal(t, make([]int16, 8), out[1])
	assert.Equal(t, []int16{0, 0, 0, s16(0.25), s16(0.25), 0, 0, 0}, out[2])
}

func TestPlayAtPastFramePlaysFromStart(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 8, 16)
	e.mixPeriod()
	e.mixPeriod()
	require.Equal(t, uint64(16), e.Now())

	src := ramp(3)
	h := e.PlayAt(2, src, 1)
	defer h.Release()
	e.mixPeriod()

	out := dev.written()
	assert.Equal(t, []int16{s16(src[0]), s16(src[1]), s16(src[2]), 0, 0, 0, 0, 0}, out[2])
}

func TestExactCompletion(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 8, 16)

	// values past the slice length must never reach the output
	backing := constant(32, 0.9)
	for i := range 12 {
		backing[i] = 0.1
	}
	h := e.Play(backing[:12], 1)
	defer h.Release()

	e.mixPeriod()
	assert.False(t, h.Done())
	assert.Equal(t, 1, e.Active())

	e.mixPeriod()
	assert.True(t, h.Done(), "retired in the period the cursor reached the end")
	assert.Zero(t, e.Active())

	out := dev.written()
	require.Len(t, out, 2)
	for i, v := range out[1] {
		if i < 4 {
			assert.Equal(t, s16(0.1), v)
		} else {
			assert.Zero(t, v, "sample %d", i)
		}
	}
}

func TestEmptySamplesRetireImmediately(t *testing.T) {
	t.Parallel()

	e, _, freed := newTestEngine(t, 8, 16)
	h := e.Play(nil, 1)
	h.Release()
	e.mixPeriod()
	e.Drain()
	assert.Equal(t, int64(1), freed.Load())
}

func TestSuperpositionAndClipping(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 8, 16)
	a := e.Play(constant(8, 1), 0.6)
	b := e.Play(constant(8, 1), 0.6)
	c := e.PlayAt(0, constant(8, -1), 0.6)
	d := e.PlayAt(0, constant(8, -1), 0.6)
	defer func() {
		for _, h := range []*Handle{&a, &b, &c, &d} {
			h.Release()
		}
	}()

	e.mixPeriod()
	// the two negative requests cancel the positive pair exactly
	assert.Equal(t, make([]int16, 8), dev.written()[0])

	e2, dev2, _ := newTestEngine(t, 8, 16)
	p := e2.Play(constant(8, 1), 0.6)
	q := e2.Play(constant(8, 1), 0.6)
	defer p.Release()
	defer q.Release()
	e2.mixPeriod()
	for _, v := range dev2.written()[0] {
		assert.Equal(t, int16(32767), v)
	}

	e3, dev3, _ := newTestEngine(t, 8, 16)
	m := e3.Play(constant(8, -1), 0.6)
	n := e3.Play(constant(8, -1), 0.6)
	defer m.Release()
	defer n.Release()
	e3.mixPeriod()
	for _, v := range dev3.written()[0] {
		assert.Equal(t, int16(-32767), v)
	}
}

func TestStopRetiresWithinOnePeriod(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	e, dev, freed := newTestEngine(t, 8, 16, WithRecorder(rec))

	h := e.Play(constant(1000, 0.5), 1)
	watch := h.Clone()
	defer watch.Release()

	e.mixPeriod()
	e.Stop(&h)
	assert.False(t, h.Valid())
	assert.False(t, watch.Done())

	e.mixPeriod()
	assert.True(t, watch.Done())
	assert.Zero(t, e.Active())
	assert.Equal(t, int64(1), rec.stopped.Load())

	e.mixPeriod()
	out := dev.written()
	require.Len(t, out, 3)
	assert.Equal(t, s16(0.5), out[1][0], "stop lands at the end of the current period")
	assert.Equal(t, make([]int16, 8), out[2])

	e.Drain()
	assert.Zero(t, freed.Load())
	watch.Release()
	assert.Equal(t, int64(1), freed.Load())
}

func TestStopIsIdempotentAcrossClones(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	e, _, freed := newTestEngine(t, 8, 16, WithRecorder(rec))

	h := e.Play(constant(1000, 0.5), 1)
	c := h.Clone()
	e.Stop(&h)
	e.Stop(&c)
	assert.Equal(t, int64(1), rec.stops.Load())

	e.mixPeriod()
	e.Drain()
	assert.Equal(t, int64(1), freed.Load())
}

func TestDeviceStartAfterPrefill(t *testing.T) {
	t.Parallel()

	e, dev, _ := newTestEngine(t, 4, 10)

	e.mixPeriod()
	e.mixPeriod()
	starts, _, _ := dev.counts()
	assert.Zero(t, starts)

	e.mixPeriod()
	starts, _, _ = dev.counts()
	assert.Equal(t, 1, starts, "buffer of 10 frames is full after the third period")

	e.mixPeriod()
	starts, _, _ = dev.counts()
	assert.Equal(t, 1, starts, "running stream is not restarted")
}

func TestDeviceErrorRecovers(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	e, dev, _ := newTestEngine(t, 4, 8, WithRecorder(rec))

	e.mixPeriod()
	e.mixPeriod()
	starts, recovers, _ := dev.counts()
	require.Equal(t, 1, starts)
	require.Zero(t, recovers)

	dev.failNext(device.ErrUnderrun)
	e.mixPeriod()
	_, recovers, _ = dev.counts()
	assert.Equal(t, 1, recovers)
	assert.Equal(t, uint64(12), e.Now(), "clock advances through failed writes")
	assert.Equal(t, uint64(1), e.Stats().DeviceErrors)
	assert.Equal(t, int64(1), rec.underruns.Load())

	e.mixPeriod()
	starts, _, _ = dev.counts()
	assert.Equal(t, 1, starts)
	e.mixPeriod()
	starts, _, _ = dev.counts()
	assert.Equal(t, 2, starts, "prefill starts over after recovery")

	dev.failNext(errors.NewStd("i/o error"))
	e.mixPeriod()
	assert.Equal(t, int64(1), rec.writeErrors.Load())
	assert.Equal(t, int64(2), rec.recoveries.Load())
}

func TestMixerKeepsOrderOfSurvivors(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t, 8, 16)
	long1 := e.Play(constant(100, 0.1), 1)
	short := e.Play(constant(3, 0.1), 1)
	long2 := e.Play(constant(100, 0.1), 1)
	defer long1.Release()
	defer short.Release()
	defer long2.Release()

	e.mixPeriod()

	assert.Equal(t, []*request{long2.r, long1.r}, chain(e.reg.head.Load()))
	assert.Equal(t, 2, e.Active())
}
