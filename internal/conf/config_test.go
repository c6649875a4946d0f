package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/mixcore/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "debug: false\n")

	settings, err := LoadFrom(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, BackendMalgo, settings.Audio.Backend)
	assert.Equal(t, DefaultSampleRate, settings.Audio.SampleRate)
	assert.Equal(t, DefaultPeriodFrames, settings.Audio.PeriodFrames)
	assert.Equal(t, DefaultBufferFrames, settings.Audio.BufferFrames)
	assert.True(t, settings.Audio.Realtime)
	assert.Equal(t, 1, settings.Audio.Priority)
	assert.Equal(t, "info", settings.Logging.Level)
	assert.False(t, settings.Metrics.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
audio:
  backend: WAV
  wavpath: out.wav
  periodframes: 256
  bufferframes: 1024
metrics:
  enabled: true
  listen: 127.0.0.1:9999
`)
	t.Setenv("MIXCORE_AUDIO_SAMPLERATE", "44100")

	settings, err := LoadFrom(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, BackendWAV, settings.Audio.Backend, "backend is normalized to lower case")
	assert.Equal(t, "out.wav", settings.Audio.WAVPath)
	assert.Equal(t, 256, settings.Audio.PeriodFrames)
	assert.Equal(t, 1024, settings.Audio.BufferFrames)
	assert.Equal(t, 44100, settings.Audio.SampleRate)
	assert.Equal(t, "127.0.0.1:9999", settings.Metrics.Listen)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	valid := func() *Settings {
		return &Settings{
			Audio: AudioSettings{
				Backend:      BackendNull,
				SampleRate:   48000,
				PeriodFrames: 512,
				BufferFrames: 2048,
				Priority:     1,
			},
			Logging: LogSettings{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "unknown backend", mutate: func(s *Settings) { s.Audio.Backend = "jack" }, wantErr: "unsupported audio backend"},
		{name: "buffer smaller than period", mutate: func(s *Settings) { s.Audio.BufferFrames = 128 }, wantErr: "smaller than period"},
		{name: "zero period", mutate: func(s *Settings) { s.Audio.PeriodFrames = 0 }, wantErr: "period frames must be positive"},
		{name: "bad rate", mutate: func(s *Settings) { s.Audio.SampleRate = 1000 }, wantErr: "sample rate"},
		{name: "realtime priority", mutate: func(s *Settings) { s.Audio.Realtime = true; s.Audio.Priority = 120 }, wantErr: "priority"},
		{name: "log level", mutate: func(s *Settings) { s.Logging.Level = "loud" }, wantErr: "invalid log level"},
		{name: "metrics listen", mutate: func(s *Settings) { s.Metrics = MetricsSettings{Enabled: true, Listen: "nope"} }, wantErr: "metrics listen"},
		{name: "sentry without dsn", mutate: func(s *Settings) { s.Sentry.Enabled = true }, wantErr: "no DSN"},
		{name: "wav without path", mutate: func(s *Settings) { s.Audio.Backend = BackendWAV }, wantErr: "wavpath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestDumpYAMLMasksDSN(t *testing.T) {
	t.Parallel()

	settings := &Settings{Sentry: SentrySettings{Enabled: true, DSN: "https://key@example.invalid/1"}}
	out, err := DumpYAML(settings)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "key@example")
	assert.Equal(t, "https://key@example.invalid/1", settings.Sentry.DSN, "input is not modified")

	var decoded Settings
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "[REDACTED]", decoded.Sentry.DSN)
}
