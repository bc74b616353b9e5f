// Command safe-event generates typed Go event definitions from JSON or YAML
// event schemas.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
)

func main() {
	cmd := newRootCmd(afero.NewOsFs())
	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
