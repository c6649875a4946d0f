// Package samples loads audio files into the mono float32 buffers the mixer
// plays, converting them to the device sample rate on the way in.
//
// Buffers handed out by this package are never modified after loading, so
// one Sample may back any number of concurrent playback requests.
package samples

import (
	"time"

	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
)

// ErrUnsupportedFormat is returned for files that are not WAV or FLAC
var ErrUnsupportedFormat = errors.NewStd("unsupported audio format")

// Sample is a decoded, mono, rate-converted audio buffer
type Sample struct {
	Name string
	Rate int
	Data []float32

	// properties of the source file
	SourceRate     int
	SourceChannels int
	BitDepth       int
}

// Frames returns the number of frames in the sample
func (s *Sample) Frames() int {
	return len(s.Data)
}

// Duration returns the playback length at s.Rate
func (s *Sample) Duration() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return time.Duration(len(s.Data)) * time.Second / time.Duration(s.Rate)
}

// AudioInfo describes a file without decoding its samples
type AudioInfo struct {
	SampleRate   int
	TotalSamples int
	NumChannels  int
	BitDepth     int
}

// GetLogger returns the samples module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("samples")
}

// getAudioDivisor returns the scale that maps integer PCM to [-1, 1)
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth: %d", bitDepth).
			Component("samples").
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
}
