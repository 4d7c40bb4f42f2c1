package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessFileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process-file <path>",
		Short: "Ingest every line of a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, false)

			stats, err := a.ing.ProcessFile(context.Background(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to process file", err)
			}

			if !f.JSON() {
				fmt.Fprintf(f.Writer, "Processed %s (batch %s):\n", args[0], stats.BatchToken)
				fmt.Fprintf(f.Writer, "  total lines:     %d\n", stats.TotalLines)
				fmt.Fprintf(f.Writer, "  processed lines: %d\n", stats.ProcessedLines)
				fmt.Fprintf(f.Writer, "  failed lines:    %d\n", stats.FailedLines)
				if stats.TotalLines > 0 {
					fmt.Fprintf(f.Writer, "  success rate:    %.1f%%\n", 100*float64(stats.ProcessedLines)/float64(stats.TotalLines))
				}
				return nil
			}
			return f.SuccessWithTrace(stats, stats.BatchToken)
		},
	}
	return cmd
}
