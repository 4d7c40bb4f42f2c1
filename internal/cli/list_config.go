package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListConfigCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-config",
		Short: "Enumerate the configured flow types, applications, and stages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := newFormatter(cmd, opts, false)

			type appConfig struct {
				Name   string   `json:"name"`
				Stages []string `json:"stages"`
			}
			type flowConfig struct {
				Name         string      `json:"name"`
				Description  string      `json:"description"`
				Applications []appConfig `json:"applications"`
			}

			var flows []flowConfig
			for _, ftName := range a.cat.FlowTypeNames() {
				ft, _ := a.cat.FlowType(ftName)
				fc := flowConfig{Name: ftName, Description: ft.Description}
				for _, appName := range ft.ApplicationNames() {
					app, _ := ft.Application(appName)
					fc.Applications = append(fc.Applications, appConfig{Name: appName, Stages: app.StageNames()})
				}
				flows = append(flows, fc)
			}

			if f.JSON() {
				return f.Success(flows)
			}

			fmt.Fprintln(f.Writer, "=== configured flows ===")
			fmt.Fprintln(f.Writer)
			for _, fc := range flows {
				fmt.Fprintf(f.Writer, "flow: %s\n", fc.Name)
				fmt.Fprintf(f.Writer, "  description: %s\n", fc.Description)
				fmt.Fprintln(f.Writer, "  applications:")
				for _, ac := range fc.Applications {
					fmt.Fprintf(f.Writer, "    - %s\n", ac.Name)
					fmt.Fprintf(f.Writer, "      stages: %v\n", ac.Stages)
				}
				fmt.Fprintln(f.Writer)
			}
			return nil
		},
	}
	return cmd
}
