// Package cmd wires the mixcore command line
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/mixcore/cmd/config"
	"github.com/tphakala/mixcore/cmd/devices"
	"github.com/tphakala/mixcore/cmd/play"
	"github.com/tphakala/mixcore/cmd/render"
	"github.com/tphakala/mixcore/internal/conf"
	"github.com/tphakala/mixcore/internal/logger"
	"github.com/tphakala/mixcore/internal/telemetry"
)

// App is the state shared by every subcommand once the root pre-run has
// loaded configuration
type App struct {
	Settings *conf.Settings
	central  *logger.CentralLogger
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	app := &App{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "mixcore",
		Short:         "Low-latency sample playback engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	settings := func() *conf.Settings { return app.Settings }

	devicesCmd := devices.Command()
	configCmd := configcmd.Command(settings)
	rootCmd.AddCommand(
		play.Command(settings),
		render.Command(settings),
		devicesCmd,
		configCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		s, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		app.Settings = s

		if err := app.initLogging(); err != nil {
			return err
		}

		// listing devices and printing config should not phone home
		if cmd.Name() == devicesCmd.Name() || (cmd.HasParent() && cmd.Parent().Name() == configCmd.Name()) {
			return nil
		}
		return telemetry.InitSentry(s)
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.Close()
	}

	return rootCmd
}

// Close flushes telemetry and the log file
func (a *App) Close() error {
	telemetry.Flush()
	if a.central != nil {
		return a.central.Close()
	}
	return nil
}

func (a *App) initLogging() error {
	s := a.Settings
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
	}
	if s.Logging.File != "" {
		cfg.FileOutput = &logger.FileOutput{Enabled: true, Path: s.Logging.File, Level: level}
	}

	central, err := logger.NewCentralLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.central = central
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines global flags and binds them to their viper keys, so a
// flag given on the command line beats config file and environment
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("backend", conf.BackendMalgo, "Audio backend: malgo, null or wav")
	flags.String("device", "default", "Playback device name or ID")
	flags.Int("samplerate", conf.DefaultSampleRate, "Requested sample rate in Hz")
	flags.Int("period", conf.DefaultPeriodFrames, "Frames per mixer period")
	flags.Int("buffer", conf.DefaultBufferFrames, "Device buffer size in frames")
	flags.Bool("realtime", true, "Request SCHED_FIFO for the mixer thread")

	bindings := map[string]string{
		"debug":              "debug",
		"audio.backend":      "backend",
		"audio.device":       "device",
		"audio.samplerate":   "samplerate",
		"audio.periodframes": "period",
		"audio.bufferframes": "buffer",
		"audio.realtime":     "realtime",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
