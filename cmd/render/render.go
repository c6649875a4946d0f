// Package render implements the render command: mix files offline into a WAV
// file instead of a playback device.
package render

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/mixcore/cmd/play"
	"github.com/tphakala/mixcore/internal/conf"
)

// Command creates the render command
func Command(settings func() *conf.Settings) *cobra.Command {
	var (
		out  string
		opts = play.Options{Gain: 1.0, Repeat: 1}
	)

	cmd := &cobra.Command{
		Use:   "render [files...]",
		Short: "Mix files into a WAV file",
		Long: "Render schedules files exactly like play but writes the mix to a 16-bit mono WAV file.\n" +
			"The mixer is not paced by hardware, so rendering runs faster than real time.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			s := *settings()
			s.Audio.Backend = conf.BackendWAV
			s.Audio.WAVPath = out
			// nothing to gain from SCHED_FIFO when writing a file
			s.Audio.Realtime = false

			opts.Files = args
			return play.Run(cmd.Context(), &s, opts)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output WAV path")
	cmd.Flags().Float64Var(&opts.Gain, "gain", 1.0, "Linear gain applied to every request")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 1, "Number of times to schedule the file list")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "Time between repeats")
	cmd.Flags().DurationVar(&opts.Stagger, "stagger", 0, "Time between files within a repeat")

	return cmd
}
