package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mixcore/internal/conf"
	"github.com/tphakala/mixcore/internal/errors"
)

func TestInitSentryDisabledIsNoop(t *testing.T) {
	require.NoError(t, InitSentry(&conf.Settings{}))
	require.NoError(t, InitSentry(nil))
	assert.False(t, IsInitialized())
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestEnhancedErrorsReachSentry(t *testing.T) {
	transport := NewMockTransport()
	settings := &conf.Settings{}
	settings.Sentry.Enabled = true
	settings.Sentry.DSN = "https://public@sentry.example.com/1"

	require.NoError(t, initSentry(settings, transport))
	t.Cleanup(Flush)
	require.True(t, IsInitialized())

	_ = errors.Newf("pcm write failed: broken pipe").
		Component("mixer").
		Category(errors.CategoryAudioDevice).
		Context("operation", "write").
		Build()

	event := transport.GetLastEvent()
	require.NotNil(t, event)
	assert.Equal(t, "mixer", event.Tags["component"])
	assert.Equal(t, string(errors.CategoryAudioDevice), event.Tags["category"])
	assert.Contains(t, event.Message, "broken pipe")
	assert.Empty(t, event.ServerName)

	Flush()
	assert.False(t, IsInitialized())
	assert.Nil(t, errors.GetTelemetryReporter())

	_ = errors.Newf("after flush").Component("mixer").Build()
	assert.Len(t, transport.GetEvents(), 1)
}

func TestBeforeSendStripsIdentity(t *testing.T) {
	event := sentry.NewEvent()
	event.User = sentry.User{ID: "someone", IPAddress: "10.0.0.1"}
	event.ServerName = "studio-pc"
	event.Contexts = map[string]sentry.Context{
		"device":   {"name": "x"},
		"os":       {"name": "linux"},
		"platform": {"num_cpu": 4},
	}
	event.Extra = map[string]any{"component": "mixer", "path": "/home/me"}
	event.Tags = map[string]string{"hostname": "studio-pc", "component": "mixer"}

	out := beforeSend(event, nil)

	assert.True(t, out.User.IsEmpty())
	assert.Empty(t, out.ServerName)
	assert.NotContains(t, out.Contexts, "device")
	assert.NotContains(t, out.Contexts, "os")
	assert.Contains(t, out.Contexts, "platform")
	assert.Equal(t, map[string]any{"component": "mixer"}, out.Extra)
	assert.Equal(t, map[string]string{"component": "mixer"}, out.Tags)
}
