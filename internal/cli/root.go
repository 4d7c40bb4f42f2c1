package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the fluxtrace CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fluxtrace",
		Short: "fluxtrace - multi-application flow tracking from logs",
		Long:  "Ingests application logs against a declarative pattern catalog and reconstructs the flow graph they describe.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "catalog/database configuration file")

	cmd.AddCommand(newProcessFileCommand(opts))
	cmd.AddCommand(newProcessLineCommand(opts))
	cmd.AddCommand(newProcessJSONCommand(opts))
	cmd.AddCommand(newParseTestCommand(opts))
	cmd.AddCommand(newGetFluxCommand(opts))
	cmd.AddCommand(newListConfigCommand(opts))
	cmd.AddCommand(newIncompleteFlowsCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))

	return cmd
}
