package logger_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mixcore/internal/logger"
)

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level   logger.LogLevel
		visible []string
		hidden  []string
	}{
		{logger.LogLevelTrace, []string{"trace-msg", "debug-msg", "info-msg"}, nil},
		{logger.LogLevelInfo, []string{"info-msg", "warn-msg"}, []string{"debug-msg", "trace-msg"}},
		{logger.LogLevelError, []string{"error-msg"}, []string{"warn-msg", "info-msg"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := logger.NewSlogLogger(&buf, tt.level, time.UTC)

			log.Trace("trace-msg")
			log.Debug("debug-msg")
			log.Info("info-msg")
			log.Warn("warn-msg")
			log.Error("error-msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestModuleNestingAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC).
		Module("device").
		Module("malgo").
		With(logger.String("backend", "alsa"))

	log.Info("opened", logger.Int("period_frames", 512), logger.Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "module=device.malgo")
	assert.Contains(t, out, "backend=alsa")
	assert.Contains(t, out, "period_frames=512")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=", "console output carries no timestamp")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	ctx := logger.WithTraceID(t.Context(), "session-42")
	log.WithContext(ctx).Info("started")
	log.WithContext(t.Context()).Info("plain")

	out := buf.String()
	assert.Contains(t, out, "trace_id=session-42")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("trace_id")))
}

func TestCentralLoggerWritesJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "mixcore.log")
	central, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"mixer": "warn"},
	})
	require.NoError(t, err)

	central.Module("mixer").Info("suppressed by module level")
	central.Module("mixer").Warn("device recovered", logger.Uint64("frame", 1024))
	central.Module("samples").Debug("loaded", logger.Duration("took", 1500*time.Microsecond))

	require.NoError(t, central.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 2)

	assert.Equal(t, "mixer", records[0]["module"])
	assert.Equal(t, "device recovered", records[0]["msg"])
	assert.InDelta(t, 1024, records[0]["frame"], 0)
	assert.Equal(t, "samples", records[1]["module"])
	assert.Equal(t, "1.5ms", records[1]["took"])
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Not/AZone"})
	require.Error(t, err)
}
