package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csmcal/wf2wf/internal/convert"
	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/output"
	"github.com/csmcal/wf2wf/internal/schema"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var fromFlag string

	c := &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Validate a workflow against the IR schema",
		Long:  `Imports a workflow and checks it against the bundled schema and the cross-field invariants (acyclicity, reference integrity, resource bounds).`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runValidate(c, args[0], fromFlag)
		},
	}

	c.Flags().StringVar(&fromFlag, "from", "", "Source format (default: by extension)")
	return c
}

func runValidate(c *cobra.Command, path, fromFlag string) error {
	f, err := resolveFormat(path, fromFlag)
	if err != nil {
		return err
	}

	importer, err := convert.NewImporter(f, formats.ImporterOptions{})
	if err != nil {
		return err
	}
	w, err := importer.ParseSource(c.Context(), path)
	if err != nil {
		return err
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidateWorkflow(w); err != nil {
		output.Details(err.Error())
		return wferrors.Wrap(wferrors.ErrSchema, fmt.Sprintf("%s is not a valid workflow", path))
	}

	output.Println(output.FormatCheckmark(fmt.Sprintf("%s is valid (%d tasks, %d edges)", path, len(w.Tasks), len(w.Edges))))
	return nil
}

func resolveFormat(path, flag string) (formats.Format, error) {
	if flag != "" {
		return formats.Parse(flag)
	}
	f, err := formats.Detect(path)
	if err != nil {
		return "", wferrors.Wrap(wferrors.ErrNotFound, err.Error())
	}
	return f, nil
}
