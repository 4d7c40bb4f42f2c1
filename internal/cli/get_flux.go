package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mclement/fluxtrace/internal/query"
)

func newGetFluxCommand(opts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get-flux <reference>",
		Short: "Show a flow's details, expanding to its linked closure when cross-references exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, asJSON)

			reference := args[0]
			ctx := context.Background()

			linked, found, err := query.GetAllLinkedFlows(ctx, a.store, reference)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve flow", err)
			}
			if !found {
				if f.JSON() {
					if ferr := f.Error(codeNotFound, fmt.Sprintf("flow %q not found", reference), nil); ferr != nil {
						return ferr
					}
					return NewExitError(ExitFailure, "flow not found")
				}
				fmt.Fprintf(f.Writer, "flow %q not found\n", reference)
				return NewExitError(ExitFailure, "flow not found")
			}

			if f.JSON() {
				return f.Success(linked)
			}

			renderGetFlux(f.Writer, reference, linked)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON output")
	return cmd
}

func renderGetFlux(w io.Writer, reference string, linked *query.LinkedFlows) {
	info := linked.SubflowInfo
	if info.IsSubflow {
		fmt.Fprintf(w, "=== sub-flow %s (parent flow: %s) ===\n", reference, info.ParentReference)
		fmt.Fprintln(w, "the requested reference is a sub-flow; showing its parent's details.")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "sub-flow %s:\n", reference)
		fmt.Fprintf(w, "  status:  %s\n", info.SubflowDetails.Status)
		fmt.Fprintf(w, "  created: %s\n", info.SubflowDetails.CreatedAt)
		fmt.Fprintf(w, "  updated: %s\n", info.SubflowDetails.UpdatedAt)
		if len(info.SubflowLogs) > 0 {
			fmt.Fprintf(w, "\nsub-flow logs (%d entries):\n", len(info.SubflowLogs))
			for i, log := range info.SubflowLogs {
				fmt.Fprintf(w, "  %d. [%s] %s/%s\n", i+1, log.Timestamp, log.Application, log.LogType)
				fmt.Fprintf(w, "     %s\n", truncateLine(log.RawLog, 80))
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "==============================================================")
		fmt.Fprintf(w, "parent flow details: %s\n", info.ParentReference)
		fmt.Fprintln(w, "==============================================================")
	} else {
		fmt.Fprintf(w, "=== flow %s ===\n", reference)
	}

	if len(linked.Flows) <= 1 {
		var primary query.LinkedFlowEntry
		if len(linked.Flows) == 1 {
			primary = linked.Flows[0]
		}
		renderSingleFlow(w, primary, reference, info)
		return
	}

	fmt.Fprintf(w, "\nlinked closure (%d flows, %d connections):\n", len(linked.Flows), linked.Summary.TotalConnections)
	for _, entry := range linked.Flows {
		fmt.Fprintf(w, "  - %s [%s] (%s)\n", entry.Flux.Reference, entry.Flux.FlowType, entry.Flux.Status)
	}
	if len(linked.Summary.BidirectionalPairs) > 0 {
		fmt.Fprintln(w, "\nbidirectional pairs:")
		for _, pair := range linked.Summary.BidirectionalPairs {
			fmt.Fprintf(w, "  %s <-> %s\n", pair[0], pair[1])
		}
	}
	fmt.Fprintln(w, "\ncross-reference map:")
	for _, e := range linked.CrossReferenceMap {
		fmt.Fprintf(w, "  %s -> %s (%s)\n", e.SourceReference, e.TargetReference, e.Field)
	}
}

func renderSingleFlow(w io.Writer, entry query.LinkedFlowEntry, reference string, info query.SubflowInfo) {
	fmt.Fprintf(w, "type:    %s\n", entry.Flux.FlowType)
	fmt.Fprintf(w, "status:  %s\n", entry.Flux.Status)
	fmt.Fprintf(w, "created: %s\n", entry.Flux.CreatedAt)
	fmt.Fprintf(w, "updated: %s\n", entry.Flux.UpdatedAt)

	fmt.Fprintf(w, "\nlogs (%d entries):\n", len(entry.Logs))
	for i, log := range entry.Logs {
		fmt.Fprintf(w, "  %d. [%s] %s/%s\n", i+1, log.Timestamp, log.Application, log.LogType)
		fmt.Fprintf(w, "     %s\n", truncateLine(log.RawLog, 80))
	}

	if len(entry.CrossReferences) > 0 {
		fmt.Fprintf(w, "\ncross-references (%d):\n", len(entry.CrossReferences))
		for _, ref := range entry.CrossReferences {
			fmt.Fprintf(w, "  -> %s (%s)\n", ref.TargetReference, ref.ReferenceField)
		}
	}

	if len(entry.Children) > 0 {
		fmt.Fprintf(w, "\nsub-flows (%d):\n", len(entry.Children))
		for _, child := range entry.Children {
			marker := ""
			if info.IsSubflow && child.Reference == reference {
				marker = " <- (requested)"
			}
			fmt.Fprintf(w, "  - %s (%s)%s\n", child.Reference, child.Status, marker)
		}
	}
}

func truncateLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
