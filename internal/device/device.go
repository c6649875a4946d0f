// Package device abstracts the PCM sink the mixer writes to.
//
// A Device accepts exactly one period of mono S16 samples per Write and may
// block until the hardware has room for it. That blocking write is what paces
// the mixer loop.
package device

import (
	"fmt"

	"github.com/tphakala/mixcore/internal/conf"
	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
)

// Sentinel errors returned by Write. Both are transient for the mixer.
var (
	ErrUnderrun = errors.NewStd("device underrun")
	ErrClosed   = errors.NewStd("device closed")
)

// Params are the values the device actually negotiated
type Params struct {
	SampleRate   int
	Channels     int
	PeriodFrames int
	BufferFrames int
}

// Device is a blocking PCM sink in native S16 mono format
type Device interface {
	// Params reports negotiated parameters; stable after Open.
	Params() Params
	// Write submits one period. It may block.
	Write(samples []int16) error
	// Recover resets the stream after a failed Write.
	Recover() error
	// Start starts playback of pre-filled data. Starting a running
	// stream is a no-op.
	Start() error
	Close() error
}

// GetLogger returns the device module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("device")
}

// Open creates the device selected by settings.Backend. Failures are fatal
// device errors; callers should not retry.
func Open(settings *conf.AudioSettings) (Device, error) {
	if settings == nil {
		return nil, newDeviceError(errors.NewStd("nil audio settings"), "", "", "open")
	}

	req := Params{
		SampleRate:   settings.SampleRate,
		Channels:     1,
		PeriodFrames: settings.PeriodFrames,
		BufferFrames: settings.BufferFrames,
	}

	switch settings.Backend {
	case conf.BackendMalgo:
		return OpenMalgo(settings.Device, req)
	case conf.BackendNull:
		return NewNull(req)
	case conf.BackendWAV:
		return OpenWAV(settings.WAVPath, req)
	default:
		return nil, newDeviceError(fmt.Errorf("unsupported audio backend %q", settings.Backend),
			settings.Backend, settings.Device, "open")
	}
}

// IsDeviceError reports whether err came from device setup or I/O
func IsDeviceError(err error) bool {
	return errors.IsCategory(err, errors.CategoryAudioDevice)
}

func newDeviceError(err error, backend, name, operation string) error {
	return errors.New(err).
		Component("device").
		Category(errors.CategoryAudioDevice).
		DeviceContext(backend, name).
		Context("operation", operation).
		Build()
}

func validateParams(p Params) error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate %d", p.SampleRate)
	case p.PeriodFrames <= 0:
		return fmt.Errorf("invalid period size %d", p.PeriodFrames)
	case p.BufferFrames < p.PeriodFrames:
		return fmt.Errorf("buffer size %d smaller than period %d", p.BufferFrames, p.PeriodFrames)
	}
	return nil
}
