// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// Device targets. ALSA and friends negotiate the nearest supported values.
const (
	DefaultSampleRate   = 48000
	DefaultPeriodFrames = 512
	DefaultBufferFrames = 2048
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("audio.backend", BackendMalgo)
	v.SetDefault("audio.device", "default")
	v.SetDefault("audio.samplerate", DefaultSampleRate)
	v.SetDefault("audio.periodframes", DefaultPeriodFrames)
	v.SetDefault("audio.bufferframes", DefaultBufferFrames)
	v.SetDefault("audio.realtime", true)
	v.SetDefault("audio.priority", 1)
	v.SetDefault("audio.wavpath", "mixdown.wav")

	v.SetDefault("samples.cachesize", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9102")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
