package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mclement/fluxtrace/internal/ingestor"
)

func newProcessLineCommand(opts *RootOptions) *cobra.Command {
	var forceFlowType, forceApplication string

	cmd := &cobra.Command{
		Use:   "process-line <line>",
		Short: "Ingest a single log line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, false)

			err = a.ing.ProcessLine(context.Background(), args[0], forceFlowType, forceApplication)
			if err != nil {
				var rej *ingestor.RejectionError
				if !errors.Is(err, ingestor.ErrNoMatch) && !errors.As(err, &rej) {
					return WrapExitError(ExitCommandError, "failed to process line", err)
				}
				if f.JSON() {
					if ferr := f.Error(codeRejected, err.Error(), nil); ferr != nil {
						return ferr
					}
					return NewExitError(ExitFailure, err.Error())
				}
				fmt.Fprintln(f.Writer, "line rejected:", err)
				return NewExitError(ExitFailure, err.Error())
			}

			if f.JSON() {
				return f.Success(map[string]bool{"processed": true})
			}
			fmt.Fprintln(f.Writer, "line processed successfully")
			return nil
		},
	}

	cmd.Flags().StringVarP(&forceFlowType, "flux-type", "f", "", "force a specific flow type")
	cmd.Flags().StringVarP(&forceApplication, "application", "a", "", "force a specific application")
	return cmd
}
