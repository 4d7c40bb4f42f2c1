package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mclement/fluxtrace/internal/diagnostics"
)

func newIncompleteFlowsCommand(opts *RootOptions) *cobra.Command {
	var maxAgeHours float64
	var hasMaxAge bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "incomplete-flows",
		Short: "List top-level flows missing required stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, asJSON)

			var maxAge *float64
			if hasMaxAge {
				maxAge = &maxAgeHours
			}

			byType, err := diagnostics.IncompleteFlows(context.Background(), a.store, maxAge)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to compute incomplete flows", err)
			}

			if f.JSON() {
				return f.Success(byType)
			}

			if len(byType) == 0 {
				fmt.Fprintln(f.Writer, "no incomplete flows")
				return nil
			}
			for _, group := range byType {
				fmt.Fprintf(f.Writer, "=== %s (%d incomplete) ===\n", group.FlowType, len(group.Flows))
				for _, flow := range group.Flows {
					fmt.Fprintf(f.Writer, "  %s  age=%.1fh  completion=%.1f%%  missing=%v  children=%d\n",
						flow.Reference, flow.AgeHours, flow.CompletionRate, flow.MissingRequiredStages, flow.ChildrenCount)
				}
				fmt.Fprintln(f.Writer)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxAgeHours, "max-age-hours", 0, "only consider flows created within this many hours")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON output")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		hasMaxAge = cmd.Flags().Changed("max-age-hours")
		return nil
	}
	return cmd
}
