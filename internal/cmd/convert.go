package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/csmcal/wf2wf/internal/convert"
	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/output"
)

// convertOptions holds the flags for the convert command.
type convertOptions struct {
	input        string
	outputPath   string
	from         string
	to           string
	failOnLoss   string
	inlineSubmit bool
	dryRun       bool
}

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	opts := &convertOptions{}

	c := &cobra.Command{
		Use:   "convert",
		Short: "Convert a workflow to another format",
		Long:  `Converts a workflow description through the intermediate representation and writes the target files plus a loss side-car.`,
		RunE: func(c *cobra.Command, args []string) error {
			return runConvert(c.Context(), opts)
		},
	}

	c.Flags().StringVarP(&opts.input, "input", "i", "", "Source workflow file (required)")
	c.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Target workflow file (required)")
	c.Flags().StringVar(&opts.from, "from", "", "Source format (default: by extension)")
	c.Flags().StringVar(&opts.to, "to", "", "Target format (default: by extension)")
	c.Flags().StringVar(&opts.failOnLoss, "fail-on-loss", "", "Abort when lost entries reach this severity (info, warn, error)")
	c.Flags().BoolVar(&opts.inlineSubmit, "inline-submit", false, "DAGMan target: embed submit descriptions in the .dag")
	c.Flags().BoolVar(&opts.dryRun, "dry-run-enrich", false, "Snakemake source: resolve wildcards via the native dry run")
	_ = c.MarkFlagRequired("input")
	_ = c.MarkFlagRequired("output")

	return c
}

func runConvert(ctx context.Context, opts *convertOptions) error {
	if _, err := os.Stat(opts.input); os.IsNotExist(err) {
		return fmt.Errorf("%w: input %s", wferrors.ErrNotFound, opts.input)
	}

	convertOpts := convert.Options{
		InlineSubmit: opts.inlineSubmit,
		Headless:     headlessMode(),
		FailOnLoss:   opts.failOnLoss,
		EnableDryRun: opts.dryRun,
	}
	if wfConfig != nil {
		if opts.failOnLoss == "" {
			convertOpts.FailOnLoss = wfConfig.FailOnLoss
		}
		convertOpts.DryRunTimeoutSeconds = int(wfConfig.DryRunTimeout.Seconds())
	}
	if opts.from != "" {
		f, err := formats.Parse(opts.from)
		if err != nil {
			return err
		}
		convertOpts.SourceFormat = f
	}
	if opts.to != "" {
		f, err := formats.Parse(opts.to)
		if err != nil {
			return err
		}
		convertOpts.TargetFormat = f
	}

	report, err := convert.Convert(ctx, opts.input, opts.outputPath, convertOpts)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func printReport(report *convert.Report) {
	output.Info("conversion complete",
		"from", report.SourceFormat,
		"to", report.TargetFormat,
		"tasks", report.TaskCount,
		"edges", report.EdgeCount,
		"losses", report.LossTotal,
	)

	if report.LossTotal == 0 {
		output.Println(output.FormatCheckmark("Converted with no information loss"))
		return
	}

	table := output.NewTable("Status", "Count")
	statuses := make([]string, 0, len(report.LossByStatus))
	for s := range report.LossByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		table.Row(s, fmt.Sprintf("%d", report.LossByStatus[s]))
	}
	output.Println(table.Render())
	output.Println(fmt.Sprintf("Details: %s.loss.json", report.OutputPath))
}
