// Package devices implements the devices command
package devices

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/mixcore/internal/device"
)

// Command creates the devices command, which lists playback devices
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := device.ListPlayback()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No playback devices found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "DEFAULT\tNAME\tID")
			for _, d := range list {
				def := ""
				if d.IsDefault {
					def = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", def, d.Name, d.ID)
			}
			return w.Flush()
		},
	}
}
