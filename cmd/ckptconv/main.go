// Package main provides the ckptconv checkpoint converter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/ckptconv/cmd/ckptconv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
