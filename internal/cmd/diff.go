package cmd

import (
	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/csmcal/wf2wf/internal/convert"
	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// NewDiffCmd creates the diff command.
func NewDiffCmd() *cobra.Command {
	var fromA, fromB string

	c := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Structurally compare two workflows",
		Long:  `Imports two workflows (any supported formats), canonicalises both, and shows a structural diff of their intermediate representations.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return runDiff(c, args[0], args[1], fromA, fromB)
		},
	}

	c.Flags().StringVar(&fromA, "from-a", "", "Format of the first workflow (default: by extension)")
	c.Flags().StringVar(&fromB, "from-b", "", "Format of the second workflow (default: by extension)")
	return c
}

func runDiff(c *cobra.Command, pathA, pathB, fromA, fromB string) error {
	yamlA, err := canonicalYAML(c, pathA, fromA)
	if err != nil {
		return err
	}
	yamlB, err := canonicalYAML(c, pathB, fromB)
	if err != nil {
		return err
	}

	report, err := output.DiffYAML(pathA, yamlA, pathB, yamlB, output.IsTTY())
	if err != nil {
		return err
	}
	if report == "" {
		output.Println(output.FormatCheckmark("Workflows are structurally identical"))
		return nil
	}
	output.Print(report)
	return nil
}

// canonicalYAML imports a workflow and renders its canonical IR as YAML.
func canonicalYAML(c *cobra.Command, path, fromFlag string) ([]byte, error) {
	f, err := resolveFormat(path, fromFlag)
	if err != nil {
		return nil, err
	}
	importer, err := convert.NewImporter(f, formats.ImporterOptions{})
	if err != nil {
		return nil, err
	}
	w, err := importer.ParseSource(c.Context(), path)
	if err != nil {
		return nil, err
	}
	canon, err := ir.CanonicalJSON(w)
	if err != nil {
		return nil, err
	}
	out, err := sigsyaml.JSONToYAML(canon)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrSchema, err.Error())
	}
	return out, nil
}
