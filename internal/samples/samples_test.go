package samples

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
	"github.com/tphakala/mixcore/internal/observability/metrics"
)

// writeWAV writes interleaved 16-bit PCM to a temp file
func writeWAV(t *testing.T, name string, rate, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelError, time.UTC)
}

func TestLoadWAVDownmixes(t *testing.T) {
	t.Parallel()

	// left and right average to 0.25 and -0.5
	path := writeWAV(t, "stereo.wav", 48000, 2, []int{16384, 0, -16384, -16384})

	s, err := Load(path, 48000)
	require.NoError(t, err)

	assert.Equal(t, "stereo.wav", s.Name)
	assert.Equal(t, 48000, s.Rate)
	assert.Equal(t, 2, s.SourceChannels)
	assert.Equal(t, 16, s.BitDepth)
	require.Len(t, s.Data, 2)
	assert.InDelta(t, 0.25, s.Data[0], 1e-6)
	assert.InDelta(t, -0.5, s.Data[1], 1e-6)
}

func TestLoadWAVResamples(t *testing.T) {
	t.Parallel()

	data := make([]int, 2400)
	for i := range data {
		data[i] = 8192
	}
	path := writeWAV(t, "low.wav", 24000, 1, data)

	s, err := Load(path, 48000)
	require.NoError(t, err)
	assert.Equal(t, 24000, s.SourceRate)
	assert.Len(t, s.Data, 4800)
	assert.Equal(t, 100*time.Millisecond, s.Duration())
	// a constant signal survives cubic interpolation
	assert.InDelta(t, 0.25, s.Data[2400], 1e-4)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.wav"), 48000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0o600))
	_, err = Load(txt, 48000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not RIFF"), 0o600))
	_, err = Load(bogus, 48000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	_, err = Load(bogus, 0)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestInfo(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, "info.wav", 44100, 2, make([]int, 200))
	info, err := Info(path)
	require.NoError(t, err)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 2, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)

	_, err = Info("song.mp3")
	assert.Error(t, err)
}

func TestDownmixPCM(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frame    []byte
		bits     int
		channels int
		want     []float32
	}{
		{"16-bit mono", []byte{0x00, 0x40, 0x00, 0xc0}, 16, 1, []float32{0.5, -0.5}},
		{"16-bit stereo", []byte{0x00, 0x40, 0x00, 0x00}, 16, 2, []float32{0.25}},
		{"24-bit negative", []byte{0x00, 0x00, 0xc0}, 24, 1, []float32{-0.5}},
		{"24-bit positive", []byte{0x00, 0x00, 0x40}, 24, 1, []float32{0.5}},
		{"8-bit unsigned", []byte{0x80, 0xc0, 0x40}, 8, 1, []float32{0, 0.5, -0.5}},
		{"32-bit", []byte{0x00, 0x00, 0x00, 0x40}, 32, 1, []float32{0.5}},
		{"trailing partial frame ignored", []byte{0x00, 0x40, 0x00}, 16, 1, []float32{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			divisor, err := getAudioDivisor(tt.bits)
			require.NoError(t, err)
			got := downmixPCM(nil, tt.frame, tt.bits, tt.channels, divisor)
			assert.InDeltaSlice(t, toF64(tt.want), toF64(got), 1e-6)
		})
	}
}

func TestGetAudioDivisorRejectsOddDepths(t *testing.T) {
	t.Parallel()

	_, err := getAudioDivisor(12)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestResample(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	assert.Equal(t, in, Resample(in, 48000, 48000))
	assert.Len(t, Resample(in, 48000, 96000), 12)
	assert.Len(t, Resample(in, 48000, 24000), 3)
	assert.Empty(t, Resample(nil, 44100, 48000))

	short := Resample([]float32{0.5, -0.5}, 24000, 48000)
	assert.Equal(t, []float32{0.5, 0.5, -0.5, -0.5}, short)

	// on-grid points reproduce the input
	up := Resample(in, 1, 2)
	assert.InDelta(t, in[2], up[4], 1e-6)
}

type recordingRecorder struct {
	mu   sync.Mutex
	ops  map[string]int
	errs map[string]int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{ops: map[string]int{}, errs: map[string]int{}}
}

func (r *recordingRecorder) RecordOperation(op, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op+"/"+status]++
}

func (r *recordingRecorder) RecordDuration(string, float64) {}

func (r *recordingRecorder) RecordError(op, errType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[op+"/"+errType]++
}

func (r *recordingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

var _ metrics.Recorder = (*recordingRecorder)(nil)

func TestBankCachesAndSharesDecodes(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, "click.wav", 48000, 1, []int{1000, 2000, 3000})
	rec := newRecordingRecorder()
	bank := NewBank(48000, WithRecorder(rec), WithLogger(quietLogger()))

	const callers = 16
	results := make([]*Sample, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			s, err := bank.Get(path)
			assert.NoError(t, err)
			results[i] = s
		})
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	assert.Equal(t, 1, bank.Len())
	assert.Equal(t, 1, rec.count(metrics.OpSampleLoad+"/"+metrics.StatusSuccess))
	assert.Equal(t, callers,
		rec.count(metrics.OpCacheLookup+"/"+metrics.StatusHit)+rec.count(metrics.OpCacheLookup+"/"+metrics.StatusMiss))

	s, err := bank.Get(path)
	require.NoError(t, err)
	assert.Same(t, results[0], s)
}

func TestBankEvictsWhenFull(t *testing.T) {
	t.Parallel()

	bank := NewBank(48000, WithCacheSize(2), WithLogger(quietLogger()))
	bank.Put("a", silence(48))
	time.Sleep(time.Millisecond)
	bank.Put("b", silence(48))
	time.Sleep(time.Millisecond)

	// touching a makes b the eviction candidate
	_, err := bank.Get("a")
	require.NoError(t, err)
	bank.Put("c", silence(48))

	assert.Equal(t, 2, bank.Len())
	_, err = bank.Get("a")
	assert.NoError(t, err)
	_, err = bank.Get("c")
	assert.NoError(t, err)

	bank.Flush()
	assert.Zero(t, bank.Len())
}

func TestBankPreload(t *testing.T) {
	t.Parallel()

	a := writeWAV(t, "a.wav", 48000, 1, []int{1, 2, 3})
	b := writeWAV(t, "b.wav", 44100, 1, []int{1, 2, 3, 4, 5})
	rec := newRecordingRecorder()
	bank := NewBank(48000, WithRecorder(rec), WithLogger(quietLogger()))

	require.NoError(t, bank.Preload(t.Context(), a, b))
	assert.Equal(t, 2, bank.Len())
	// only b needed rate conversion
	assert.Equal(t, 1, rec.count(metrics.OpSampleResample+"/"+metrics.StatusSuccess))

	err := bank.Preload(t.Context(), a, filepath.Join(t.TempDir(), "gone.flac"))
	require.Error(t, err)
	rec.mu.Lock()
	assert.Equal(t, 1, rec.errs[metrics.OpSampleLoad+"/"+string(errors.CategoryFileIO)])
	rec.mu.Unlock()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Error(t, bank.Preload(ctx, "x.wav"))
}

func silence(frames int) *Sample {
	return &Sample{Rate: 48000, SourceRate: 48000, SourceChannels: 1, Data: make([]float32, frames)}
}

func toF64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
