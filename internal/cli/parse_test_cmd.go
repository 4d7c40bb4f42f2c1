package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mclement/fluxtrace/internal/parser"
)

func newParseTestCommand(opts *RootOptions) *cobra.Command {
	var forceFlowType, forceApplication string

	cmd := &cobra.Command{
		Use:   "parse-test <line>",
		Short: "Parse a line against the catalog without recording it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, false)

			parsed, ok := parser.Parse(a.cat, args[0], forceFlowType, forceApplication)
			if !ok {
				if f.JSON() {
					if ferr := f.Error(codeNoMatch, "no pattern matched the line", nil); ferr != nil {
						return ferr
					}
					return NewExitError(ExitFailure, "no pattern matched the line")
				}
				fmt.Fprintln(f.Writer, "no pattern matched the line")
				return NewExitError(ExitFailure, "no pattern matched the line")
			}

			if f.JSON() {
				return f.Success(parsed)
			}

			fmt.Fprintln(f.Writer, "line parsed successfully:")
			fmt.Fprintf(f.Writer, "  flow type:   %s\n", parsed.FlowType)
			fmt.Fprintf(f.Writer, "  application: %s\n", parsed.Application)
			fmt.Fprintf(f.Writer, "  stage:       %s\n", parsed.LogType)
			fmt.Fprintf(f.Writer, "  timestamp:   %s\n", parsed.Timestamp)
			fmt.Fprintf(f.Writer, "  identifiers: %v\n", parsed.IdentifierFields)
			fmt.Fprintf(f.Writer, "  payload:     %v\n", parsed.PayloadFields)
			if len(parsed.ReferenceLinks) > 0 {
				fmt.Fprintf(f.Writer, "  references:  %v\n", parsed.ReferenceLinks)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&forceFlowType, "flux-type", "f", "", "force a specific flow type")
	cmd.Flags().StringVarP(&forceApplication, "application", "a", "", "force a specific application")
	return cmd
}
