// Package main is the entry point for the wf2wf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/csmcal/wf2wf/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cmd.Exit(err)
	}
}
