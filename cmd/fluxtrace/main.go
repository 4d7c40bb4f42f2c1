// Command fluxtrace ingests application logs against a declarative
// pattern catalog and reconstructs the flow graph they describe.
package main

import (
	"fmt"
	"os"

	"github.com/mclement/fluxtrace/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
