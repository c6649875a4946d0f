package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	mu     sync.Mutex
	errors []*EnhancedError
}

func (c *captureReporter) ReportError(ee *EnhancedError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, ee)
}

func (c *captureReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderCarriesContext(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("open %s failed", "hw:0,0").
		Component("device").
		Category(CategoryAudioDevice).
		DeviceContext("alsa", "hw:0,0").
		Context("operation", "open").
		Priority(PriorityHigh).
		Build()

	assert.Equal(t, "device", ee.GetComponent())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	ctx := ee.GetContext()
	assert.Equal(t, "alsa", ctx["backend"])
	assert.Equal(t, "hw:0,0", ctx["device"])

	ctx["backend"] = "mutated"
	assert.Equal(t, "alsa", ee.GetContext()["backend"], "GetContext must return a copy")
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	SetTelemetryReporter(nil)
	ee := NewStd("x")
	built := New(ee).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, built.Priority)
}

func TestIsCategory(t *testing.T) {
	SetTelemetryReporter(nil)

	base := NewStd("pcm write failed")
	ee := New(base).Category(CategoryAudioDevice).Build()
	wrapped := fmt.Errorf("mixer: %w", ee)

	assert.True(t, IsCategory(wrapped, CategoryAudioDevice))
	assert.False(t, IsCategory(wrapped, CategoryFileIO))
	assert.True(t, Is(wrapped, base))
	assert.False(t, IsCategory(base, CategoryAudioDevice))
}

func TestReporterReceivesDetectedCategory(t *testing.T) {
	rep := &captureReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("alsa underrun")).Component("device").Build()
	New(NewStd("invalid period size")).Component("conf").Build()

	rep.mu.Lock()
	defer rep.mu.Unlock()
	require.Len(t, rep.errors, 2)
	assert.Equal(t, CategoryAudioDevice, rep.errors[0].Category)
	assert.Equal(t, CategoryValidation, rep.errors[1].Category)
}

func TestFileContextIsAnonymized(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := FileError(NewStd("no such file"), "/home/user/sounds/click.flac", 4096)
	ctx := ee.GetContext()

	assert.Equal(t, "absolute-path", ctx["file_type"])
	assert.Equal(t, "flac", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
	for _, v := range ctx {
		assert.NotContains(t, fmt.Sprint(v), "/home/user")
	}
}

func TestBasicURLScrub(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		missing []string
	}{
		{
			name: "query parameters",
			in:   "Error at https://api.example.com?api_key=secret123&token=abc",
			want: "Error at https://api.example.com?[REDACTED]",
		},
		{
			name:    "standalone api key",
			in:      "Config error: api_key=secret123 is invalid",
			missing: []string{"secret123"},
		},
		{
			name:    "sentry dsn",
			in:      "init failed for https://abcdef@o1.ingest.sentry.io/42",
			missing: []string{"abcdef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := basicURLScrub(tt.in)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			for _, m := range tt.missing {
				assert.NotContains(t, got, m)
			}
		})
	}
}
