package device

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WAV renders the mix into a 16-bit mono WAV file as fast as the mixer can
// produce it. Writes never block on a clock.
type WAV struct {
	params Params
	path   string

	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	frames int64
	closed bool
}

// OpenWAV creates (or truncates) path and returns a sink writing to it
func OpenWAV(path string, req Params) (*WAV, error) {
	req.Channels = 1
	if err := validateParams(req); err != nil {
		return nil, newDeviceError(err, "wav", path, "open")
	}
	if path == "" {
		return nil, newDeviceError(fmt.Errorf("empty output path"), "wav", path, "open")
	}

	f, err := os.Create(path) //nolint:gosec // output path chosen by the user
	if err != nil {
		return nil, newDeviceError(err, "wav", path, "open")
	}

	return &WAV{
		params: req,
		path:   path,
		file:   f,
		enc:    wav.NewEncoder(f, req.SampleRate, wavBitDepth, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: req.SampleRate, NumChannels: 1},
			Data:           make([]int, req.PeriodFrames),
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

func (w *WAV) Params() Params { return w.params }

// Write appends one period to the file
func (w *WAV) Write(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return newDeviceError(err, "wav", w.path, "write")
	}
	w.frames += int64(len(samples))
	return nil
}

// Frames returns the number of frames written so far
func (w *WAV) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Start is a no-op for a file sink
func (w *WAV) Start() error { return nil }

// Recover is a no-op for a file sink
func (w *WAV) Recover() error { return nil }

// Close finalizes the WAV header and closes the file
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return newDeviceError(encErr, "wav", w.path, "close")
	}
	if fileErr != nil {
		return newDeviceError(fileErr, "wav", w.path, "close")
	}
	return nil
}
