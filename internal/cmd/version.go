package cmd

import (
	"github.com/spf13/cobra"

	"github.com/csmcal/wf2wf/internal/output"
	"github.com/csmcal/wf2wf/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(c *cobra.Command, args []string) error {
			output.Println(version.Get().String())
			return nil
		},
	}
}
