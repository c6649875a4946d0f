package samples

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/tphakala/mixcore/internal/errors"
)

const wavReadFrames = 16384

// Load decodes a WAV or FLAC file, downmixes it to mono and resamples it to
// targetRate.
func Load(path string, targetRate int) (*Sample, error) {
	if err := validateRate(targetRate); err != nil {
		return nil, err
	}
	s, err := decode(path)
	if err != nil {
		return nil, err
	}
	s.resampleTo(targetRate)
	return s, nil
}

func validateRate(rate int) error {
	if rate <= 0 {
		return errors.Newf("invalid target sample rate %d", rate).
			Component("samples").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// decode reads path at its native rate
func decode(path string) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("samples").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer func() { _ = file.Close() }()

	var s *Sample
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		s, err = readWAV(file)
	case ".flac":
		s, err = readFLAC(file)
	default:
		return nil, errors.New(ErrUnsupportedFormat).
			Component("samples").
			Category(errors.CategoryValidation).
			Context("extension", ext).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("samples").
			Category(errors.CategoryFileParsing).
			FileContext(path, fileSize(file)).
			Build()
	}

	s.Name = filepath.Base(path)
	s.Rate = s.SourceRate
	return s, nil
}

// resampleTo converts s in place; a no-op at the current rate
func (s *Sample) resampleTo(rate int) {
	if s.Rate != rate {
		s.Data = Resample(s.Data, s.Rate, rate)
	}
	s.Rate = rate
}

// Info reads the header of a WAV or FLAC file
func Info(path string) (AudioInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, errors.New(err).
			Component("samples").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer func() { _ = file.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return readWAVInfo(file)
	case ".flac":
		return readFLACInfo(file)
	default:
		return AudioInfo{}, ErrUnsupportedFormat
	}
}

func fileSize(f *os.File) int64 {
	fi, err := f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

func readWAVInfo(file *os.File) (AudioInfo, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return AudioInfo{}, errors.NewStd("invalid WAV file format")
	}

	bytesPerSample := int(decoder.BitDepth / 8)
	totalSamples := 0
	if bytesPerSample > 0 && decoder.NumChans > 0 {
		totalSamples = int(fileSize(file)) / bytesPerSample / int(decoder.NumChans)
	}

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: totalSamples,
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}

func readWAV(r io.ReadSeeker) (*Sample, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.NewStd("input is not a valid WAV audio file")
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, errors.Newf("invalid channel count %d", channels).
			Component("samples").
			Category(errors.CategoryValidation).
			Build()
	}

	// go-audio hands 8-bit WAV data through unsigned
	if decoder.BitDepth == 8 {
		return nil, errors.Newf("unsupported WAV bit depth: 8").
			Component("samples").
			Category(errors.CategoryValidation).
			Build()
	}
	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, wavReadFrames*channels),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
	}

	var out []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		out = downmixInts(out, buf.Data[:n], channels, divisor)
	}

	return &Sample{
		Data:           out,
		SourceRate:     int(decoder.SampleRate),
		SourceChannels: channels,
		BitDepth:       int(decoder.BitDepth),
	}, nil
}

func readFLACInfo(file *os.File) (AudioInfo, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return AudioInfo{}, err
	}

	return AudioInfo{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}, nil
}

func readFLAC(r io.Reader) (*Sample, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}
	if decoder.NChannels < 1 {
		return nil, errors.Newf("invalid channel count %d", decoder.NChannels).
			Component("samples").
			Category(errors.CategoryValidation).
			Build()
	}

	out := make([]float32, 0, int(decoder.TotalSamples))
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		out = downmixPCM(out, frame, decoder.BitsPerSample, decoder.NChannels, divisor)
	}

	return &Sample{
		Data:           out,
		SourceRate:     decoder.SampleRate,
		SourceChannels: decoder.NChannels,
		BitDepth:       decoder.BitsPerSample,
	}, nil
}

// downmixInts averages interleaved integer frames into mono floats
func downmixInts(dst []float32, src []int, channels int, divisor float32) []float32 {
	scale := divisor * float32(channels)
	for i := 0; i+channels <= len(src); i += channels {
		var sum int
		for c := range channels {
			sum += src[i+c]
		}
		dst = append(dst, float32(sum)/scale)
	}
	return dst
}

// downmixPCM averages interleaved little-endian PCM bytes into mono floats.
// 8-bit data is unsigned, wider depths are signed.
func downmixPCM(dst []float32, frame []byte, bitDepth, channels int, divisor float32) []float32 {
	width := bitDepth / 8
	stride := width * channels
	scale := divisor * float32(channels)

	for i := 0; i+stride <= len(frame); i += stride {
		var sum int64
		for c := range channels {
			sum += int64(pcmSample(frame[i+c*width:], bitDepth))
		}
		dst = append(dst, float32(sum)/scale)
	}
	return dst
}

func pcmSample(b []byte, bitDepth int) int32 {
	switch bitDepth {
	case 8:
		return int32(b[0]) - 128
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		return v << 8 >> 8
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}
