package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mclement/fluxtrace/internal/diagnostics"
)

func newStatsCommand(opts *RootOptions) *cobra.Command {
	var asJSON bool
	var details bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize flow counts, status, and stage coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, asJSON)

			result, err := diagnostics.ComputeStats(context.Background(), a.store, details)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to compute stats", err)
			}

			if f.JSON() {
				return f.Success(result)
			}

			fmt.Fprintln(f.Writer, "=== counts by flow type ===")
			for _, name := range sortedKeys(result.CountsByType) {
				fmt.Fprintf(f.Writer, "  %s: %d\n", name, result.CountsByType[name])
			}

			fmt.Fprintln(f.Writer, "\n=== counts by status ===")
			for _, name := range sortedKeys(result.CountsByStatus) {
				fmt.Fprintf(f.Writer, "  %s: %d\n", name, result.CountsByStatus[name])
			}

			for _, ft := range result.ByType {
				fmt.Fprintf(f.Writer, "\n=== %s stage coverage (%d instances) ===\n", ft.FlowType, ft.InstanceCount)
				for _, stage := range ft.Stages {
					fmt.Fprintf(f.Writer, "  %-24s %-8s count=%-5d (%.1f%%)\n", stage.Stage, "["+stage.Kind+"]", stage.Count, stage.Percentage)
					if details {
						fmt.Fprintf(f.Writer, "    references: %v\n", stage.References)
					}
				}
				fmt.Fprintf(f.Writer, "  flows with cross-references: %d\n", ft.FlowsWithCrossRefs)
				fmt.Fprintf(f.Writer, "  flows with children:         %d\n", ft.FlowsWithChildren)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON output")
	cmd.Flags().BoolVar(&details, "details", false, "enumerate flow references within each stage bucket")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
