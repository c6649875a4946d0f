// Package play implements the play command: schedule sample files on the
// mixer and wait for them to finish.
package play

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/mixcore/internal/conf"
	"github.com/tphakala/mixcore/internal/errors"
	"github.com/tphakala/mixcore/internal/logger"
	"github.com/tphakala/mixcore/internal/mixer"
	"github.com/tphakala/mixcore/internal/observability"
	"github.com/tphakala/mixcore/internal/samples"
)

const shutdownTimeout = 5 * time.Second

// Options describe one playback session
type Options struct {
	Files    []string
	Gain     float64
	Repeat   int
	Interval time.Duration // between repeats
	Stagger  time.Duration // between files within one repeat
	Metrics  bool
	Timeout  time.Duration // 0 waits until everything has played
}

// Command creates the play command. settings is resolved when the command
// runs, after the root command has loaded configuration.
func Command(settings func() *conf.Settings) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "play [files...]",
		Short: "Play WAV or FLAC files through the mixer",
		Long: "Decode the given files, schedule them on the mix clock and play them on the configured device.\n" +
			"Interrupting stops every request within one period and shuts the engine down.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Files = args
			if len(opts.Files) == 0 {
				return fmt.Errorf("nothing to play: give at least one file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings(), opts)
		},
	}

	setupFlags(cmd, &opts)
	return cmd
}

func setupFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().Float64Var(&opts.Gain, "gain", 1.0, "Linear gain applied to every request")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 1, "Number of times to schedule the file list")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "Time between repeats")
	cmd.Flags().DurationVar(&opts.Stagger, "stagger", 0, "Time between files within a repeat")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "Serve Prometheus metrics while playing")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Stop playback after this long")
}

// Run opens the engine described by settings, plays opts to completion (or
// until ctx is cancelled) and shuts everything down.
func Run(ctx context.Context, settings *conf.Settings, opts Options) error {
	traceID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, traceID)
	log := logger.Global().Module("play").WithContext(ctx)

	var (
		// everything is scheduled before the first period is mixed
		engineOpts = []mixer.Option{mixer.WithDeferredStart()}
		bankOpts   = []samples.BankOption{samples.WithCacheSize(settings.Samples.CacheSize)}
		endpoint   *observability.Endpoint
	)

	if opts.Metrics || settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return err
		}
		s := *settings
		s.Metrics.Enabled = true
		endpoint, err = observability.NewEndpoint(&s, m)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, mixer.WithRecorder(m.Mixer))
		bankOpts = append(bankOpts, samples.WithRecorder(m.Samples))
	}

	engine, err := mixer.Open(settings, engineOpts...)
	if err != nil {
		return err
	}
	// Close is idempotent; this covers the early returns
	defer func() { _ = engine.Close() }()

	bank := samples.NewBank(engine.Params().SampleRate, bankOpts...)

	g, gctx := errgroup.WithContext(ctx)
	sessionCtx, endSession := context.WithCancel(gctx)
	defer endSession()

	if endpoint != nil {
		g.Go(func() error {
			return endpoint.Run(sessionCtx)
		})
	}

	g.Go(func() error {
		defer endSession()
		return playSession(sessionCtx, engine, bank, opts, log)
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if closeErr := engine.Shutdown(shutdownCtx); closeErr != nil && err == nil {
		err = closeErr
	}
	stats := engine.Stats()

	log.Info("session finished",
		logger.Uint64("submitted", stats.Submitted),
		logger.Uint64("periods", stats.Periods),
		logger.Uint64("device_errors", stats.DeviceErrors),
		logger.Uint64("dropped_events", stats.DroppedEvents))

	return err
}

func playSession(ctx context.Context, engine *mixer.Engine, bank *samples.Bank, opts Options, log logger.Logger) error {
	if err := bank.Preload(ctx, opts.Files...); err != nil {
		return err
	}

	list := make([]*samples.Sample, 0, len(opts.Files))
	for _, f := range opts.Files {
		s, err := bank.Get(f)
		if err != nil {
			return err
		}
		list = append(list, s)
	}

	handles := schedule(engine, list, opts)
	defer func() {
		for i := range handles {
			handles[i].Release()
		}
	}()
	if err := engine.Start(); err != nil {
		return err
	}

	log.Info("playback scheduled",
		logger.Int("requests", len(handles)),
		logger.Int("samples", len(list)),
		logger.Uint64("start_frame", engine.Now()))

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	err := engine.WaitIdle(waitCtx)
	if err == nil {
		return nil
	}

	// interrupted or timed out: stop what is still sounding
	for i := range handles {
		engine.Stop(&handles[i])
	}
	log.Info("playback stopped early", logger.Int("active", engine.Active()))

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil
	}
	if ctx.Err() != nil {
		// a signal is a normal way to end a session
		return nil
	}
	return err
}

// schedule submits every sample opts.Repeat times. Start frames are fixed up
// front so repeats stay on the mix clock grid regardless of scheduling jitter.
func schedule(engine *mixer.Engine, list []*samples.Sample, opts Options) []mixer.Handle {
	repeat := max(opts.Repeat, 1)
	// leave one period so the first request does not start mid-period
	base := engine.Now() + uint64(engine.Params().PeriodFrames)

	handles := make([]mixer.Handle, 0, repeat*len(list))
	for r := range repeat {
		for i, s := range list {
			offset := time.Duration(r)*opts.Interval + time.Duration(i)*opts.Stagger
			handles = append(handles, engine.PlayAt(base+engine.FramesFor(offset), s.Data, float32(opts.Gain)))
		}
	}
	return handles
}
