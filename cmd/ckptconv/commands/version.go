package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const version = "v0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ckptconv %s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}
}
