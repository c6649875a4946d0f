package device

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/mixcore/internal/logger"
)

const bytesPerSample = 2

// Malgo bridges the push-style mixer onto miniaudio's pull callback. Written
// periods land in a byte ring sized to BufferFrames; the device callback
// drains it and pads with silence when the ring runs dry, which is reported
// to the writer as ErrUnderrun on its next Write.
type Malgo struct {
	params Params
	name   string

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	ring    *ringbuffer.RingBuffer
	ringMu  sync.Mutex // serializes Recover against the callback
	space   chan struct{}
	done    chan struct{}
	scratch []byte

	started  atomic.Bool
	primed   atomic.Bool // ring fed since the last recover
	underrun atomic.Bool
	closed   atomic.Bool
	closeMu  sync.Mutex
}

// DeviceInfo describes a playback device visible to miniaudio
type DeviceInfo struct {
	Name      string
	ID        string
	IsDefault bool
}

// defaultBackends picks the native backend per platform, nil lets miniaudio choose
func defaultBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func initContext(backends []malgo.Backend) (*malgo.AllocatedContext, error) {
	log := GetLogger().Module("malgo")
	return malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		log.Debug(strings.TrimSpace(message))
	})
}

// ListPlayback enumerates playback devices on the platform backend
func ListPlayback() ([]DeviceInfo, error) {
	ctx, err := initContext(defaultBackends())
	if err != nil {
		return nil, newDeviceError(err, "malgo", "", "init_context")
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, newDeviceError(err, "malgo", "", "enumerate")
	}

	out := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		out = append(out, DeviceInfo{
			Name:      infos[i].Name(),
			ID:        decodeDeviceID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return out, nil
}

// decodeDeviceID turns miniaudio's hex encoded ALSA id into "hw:0,0" style
// text, falling back to the raw string.
func decodeDeviceID(id string) string {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return id
	}
	return strings.TrimRight(string(raw), "\x00")
}

// OpenMalgo opens a playback device by name or decoded ID. "default" or an
// empty name selects the system default.
func OpenMalgo(name string, req Params) (*Malgo, error) {
	return openMalgo(name, req, defaultBackends())
}

func openMalgo(name string, req Params, backends []malgo.Backend) (*Malgo, error) {
	req.Channels = 1
	if err := validateParams(req); err != nil {
		return nil, newDeviceError(err, "malgo", name, "open")
	}

	ctx, err := initContext(backends)
	if err != nil {
		return nil, newDeviceError(err, "malgo", name, "init_context")
	}

	m := &Malgo{
		params:  req,
		name:    name,
		ctx:     ctx,
		ring:    ringbuffer.New(req.BufferFrames * bytesPerSample),
		space:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		scratch: make([]byte, req.PeriodFrames*bytesPerSample),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(req.SampleRate)
	cfg.PeriodSizeInFrames = uint32(req.PeriodFrames)
	cfg.Periods = uint32(max(2, req.BufferFrames/req.PeriodFrames))
	cfg.Alsa.NoMMap = 1

	if name != "" && name != "default" {
		ptr, err := m.findDevice(name)
		if err != nil {
			m.releaseContext()
			return nil, err
		}
		cfg.Playback.DeviceID = ptr
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: m.onSendFrames,
	})
	if err != nil {
		m.releaseContext()
		return nil, newDeviceError(err, "malgo", name, "init_device")
	}
	m.device = dev

	if rate := int(dev.SampleRate()); rate > 0 {
		m.params.SampleRate = rate
	}

	GetLogger().Module("malgo").Info("playback device opened",
		logger.String("device", name),
		logger.Int("sample_rate", m.params.SampleRate),
		logger.Int("period_frames", m.params.PeriodFrames),
		logger.Int("buffer_frames", m.params.BufferFrames))

	return m, nil
}

func (m *Malgo) findDevice(name string) (unsafe.Pointer, error) {
	infos, err := m.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, newDeviceError(err, "malgo", name, "enumerate")
	}
	for i := range infos {
		if decodeDeviceID(infos[i].ID.String()) == name || strings.Contains(infos[i].Name(), name) {
			return infos[i].ID.Pointer(), nil
		}
	}
	return nil, newDeviceError(fmt.Errorf("no playback device matches %q", name), "malgo", name, "select")
}

// onSendFrames runs on miniaudio's audio thread
func (m *Malgo) onSendFrames(out, _ []byte, _ uint32) {
	m.ringMu.Lock()
	n, _ := m.ring.Read(out)
	m.ringMu.Unlock()

	if n < len(out) {
		clear(out[n:])
		if m.primed.Swap(false) {
			m.underrun.Store(true)
		}
	}

	select {
	case m.space <- struct{}{}:
	default:
	}
}

func (m *Malgo) Params() Params { return m.params }

// Write encodes samples as S16LE and blocks until the ring can take them
func (m *Malgo) Write(samples []int16) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.underrun.Swap(false) {
		return ErrUnderrun
	}

	need := len(samples) * bytesPerSample
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}
	buf := m.scratch[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample:], uint16(s))
	}

	for {
		m.ringMu.Lock()
		if m.ring.Free() >= need {
			_, err := m.ring.Write(buf)
			m.ringMu.Unlock()
			if err != nil {
				return newDeviceError(err, "malgo", m.name, "write")
			}
			m.primed.Store(true)
			return nil
		}
		m.ringMu.Unlock()

		if !m.started.Load() {
			// ring full before an explicit start; start now rather than deadlock
			if err := m.Start(); err != nil {
				return err
			}
		}

		select {
		case <-m.space:
		case <-m.done:
			return ErrClosed
		}
	}
}

// Start starts the miniaudio device once
func (m *Malgo) Start() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.started.Swap(true) {
		return nil
	}
	if err := m.device.Start(); err != nil {
		m.started.Store(false)
		return newDeviceError(err, "malgo", m.name, "start")
	}
	return nil
}

// Recover discards queued audio so the next pre-fill starts from a clean ring.
// The device keeps running and plays silence meanwhile.
func (m *Malgo) Recover() error {
	m.ringMu.Lock()
	for {
		if n, _ := m.ring.Read(m.scratch[:cap(m.scratch)]); n == 0 {
			break
		}
	}
	m.primed.Store(false)
	m.ringMu.Unlock()
	m.underrun.Store(false)
	return nil
}

// Close stops and releases the device and context
func (m *Malgo) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Swap(true) {
		return nil
	}
	close(m.done)

	var err error
	if m.device != nil {
		if m.started.Load() {
			if stopErr := m.device.Stop(); stopErr != nil {
				err = newDeviceError(stopErr, "malgo", m.name, "stop")
			}
		}
		m.device.Uninit()
	}
	m.releaseContext()
	return err
}

func (m *Malgo) releaseContext() {
	_ = m.ctx.Uninit()
	m.ctx.Free()
}
