// Package conf loads mixcore settings from YAML, environment and flags via viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. MIXCORE_AUDIO_BACKEND.
const EnvPrefix = "MIXCORE"

// Audio backends
const (
	BackendMalgo = "malgo"
	BackendNull  = "null"
	BackendWAV   = "wav"
)

// AudioSettings holds the device parameters requested at startup. The
// device may negotiate different values; the engine uses whatever it reports.
type AudioSettings struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`           // malgo, null or wav
	Device       string `mapstructure:"device" yaml:"device"`             // playback device name or ID, "default" for system default
	SampleRate   int    `mapstructure:"samplerate" yaml:"samplerate"`     // requested sample rate in Hz
	PeriodFrames int    `mapstructure:"periodframes" yaml:"periodframes"` // frames per mixer period
	BufferFrames int    `mapstructure:"bufferframes" yaml:"bufferframes"` // device ring size in frames
	Realtime     bool   `mapstructure:"realtime" yaml:"realtime"`         // request SCHED_FIFO for the mixer thread
	Priority     int    `mapstructure:"priority" yaml:"priority"`         // SCHED_FIFO priority when realtime is set
	WAVPath      string `mapstructure:"wavpath" yaml:"wavpath"`           // output file for the wav backend
}

// LogSettings controls the central logger
type LogSettings struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"` // JSON log file, empty disables
}

// MetricsSettings controls the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SentrySettings controls error telemetry
type SentrySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// SamplesSettings controls the sample bank
type SamplesSettings struct {
	CacheSize int `mapstructure:"cachesize" yaml:"cachesize"` // max decoded samples kept in memory
}

// Settings is the root configuration
type Settings struct {
	Debug   bool            `mapstructure:"debug" yaml:"debug"`
	Audio   AudioSettings   `mapstructure:"audio" yaml:"audio"`
	Samples SamplesSettings `mapstructure:"samples" yaml:"samples"`
	Logging LogSettings     `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsSettings `mapstructure:"metrics" yaml:"metrics"`
	Sentry  SentrySettings  `mapstructure:"sentry" yaml:"sentry"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from configFile (or the default search paths
// when empty) and the environment into the global viper instance.
func Load(configFile string) (*Settings, error) {
	settings, err := LoadFrom(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// defaults and environment are enough to run
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mixcore"))
	}
	return append(paths, "/etc/mixcore")
}

// GetSettings returns the settings from the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
