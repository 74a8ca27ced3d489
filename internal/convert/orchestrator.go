package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/csmcal/wf2wf/internal/adapt"
	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/infer"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
	"github.com/csmcal/wf2wf/internal/output"
	"github.com/csmcal/wf2wf/internal/prompt"
	"github.com/csmcal/wf2wf/internal/schema"
)

// Options configure one conversion.
type Options struct {
	// SourceFormat and TargetFormat override extension auto-detection.
	SourceFormat formats.Format
	TargetFormat formats.Format

	// InlineSubmit selects the DAGMan inline sub-mode.
	InlineSubmit bool

	// Headless forces every prompt to its documented default.
	Headless bool

	// FailOnLoss aborts with an error when any lost or lost_again entry has
	// severity at or above this threshold ("", "info", "warn", "error").
	FailOnLoss string

	// EnableDryRun allows the snakemake importer's dry-run enrichment.
	EnableDryRun bool

	// DryRunTimeoutSeconds bounds the dry-run subprocess.
	DryRunTimeoutSeconds int

	// Prompter overrides the default prompter; used by tests.
	Prompter *prompt.Prompter
}

// Convert runs the fixed pipeline source → IR → target and writes the
// target files plus a loss side-car next to the output.
func Convert(ctx context.Context, srcPath, dstPath string, opts Options) (*Report, error) {
	start := time.Now()
	report := newReport(srcPath, dstPath)
	log := output.StageLogger("convert")

	srcFmt := opts.SourceFormat
	if srcFmt == "" {
		detected, err := formats.Detect(srcPath)
		if err != nil {
			return report, wferrors.Wrap(wferrors.ErrNotFound, err.Error())
		}
		srcFmt = detected
	}
	dstFmt := opts.TargetFormat
	if dstFmt == "" {
		detected, err := formats.Detect(dstPath)
		if err != nil {
			return report, wferrors.Wrap(wferrors.ErrNotFound, err.Error())
		}
		dstFmt = detected
	}
	report.SourceFormat = string(srcFmt)
	report.TargetFormat = string(dstFmt)

	// The registry is scoped to this conversion.
	reg := loss.NewRegistry()
	reg.Reset()

	importer, err := NewImporter(srcFmt, formats.ImporterOptions{
		EnableDryRun:         opts.EnableDryRun,
		DryRunTimeoutSeconds: opts.DryRunTimeoutSeconds,
	})
	if err != nil {
		return report, err
	}

	w, err := importer.ParseSource(ctx, srcPath)
	if err != nil {
		return report, err
	}
	log.Debug("imported", "format", srcFmt, "tasks", len(w.Tasks), "edges", len(w.Edges))

	// Reapply an adjacent side-car; mismatches are ignored with a warning.
	if sc, err := loss.ReadAdjacent(srcPath, w); err == nil && sc != nil {
		res, err := loss.Apply(w, sc.Entries)
		if err != nil {
			return report, err
		}
		// Reapplied and lost_again entries carry forward into this
		// conversion's side-car with their new status.
		for _, entry := range res.Entries {
			reg.Record(entry)
		}
		log.Debug("side-car reapplied", "reapplied", res.Reapplied, "lost_again", res.LostAgain)
	}

	inferRes := infer.NewEngine(srcFmt, dstFmt).Run(w, reg)
	report.SourceEnvironment = inferRes.ExecutionModel

	targetEnv := dstFmt.DefaultEnvironment()
	report.TargetEnvironment = targetEnv

	prompter := opts.Prompter
	if prompter == nil {
		prompter = prompt.New(opts.Headless)
	}
	if err := promptStage(w, dstFmt, targetEnv, prompter, reg); err != nil {
		return report, err
	}

	var envAdapt *loss.EnvironmentAdaptation
	if inferRes.ExecutionModel != targetEnv {
		adapt.Adapt(w, inferRes.ExecutionModel, targetEnv, reg)
		envAdapt = &loss.EnvironmentAdaptation{
			SourceEnvironment: inferRes.ExecutionModel,
			TargetEnvironment: targetEnv,
			AdaptationType:    "resource_scaling",
		}
	}

	// Validation failure is fatal after the repair stages.
	validator, err := schema.NewValidator()
	if err != nil {
		return report, err
	}
	if err := validator.ValidateWorkflow(w); err != nil {
		return report, wferrors.Wrap(wferrors.ErrSchema, err.Error())
	}

	exporter, err := NewExporter(dstFmt, formats.ExporterOptions{
		InlineSubmit:      opts.InlineSubmit,
		TargetEnvironment: targetEnv,
	})
	if err != nil {
		return report, err
	}

	exporter.DetectLosses(w, reg)

	if err := exporter.GenerateOutput(w, dstPath); err != nil {
		return report, err
	}

	// The side-car checksum must match the IR a later re-import of the
	// emitted file reconstructs, so it is computed over a round trip of the
	// output rather than over the enriched in-memory workflow.
	checksum, err := outputChecksum(ctx, dstFmt, dstPath, w)
	if err != nil {
		return report, err
	}
	if err := reg.Write(dstPath, string(dstFmt), checksum, envAdapt); err != nil {
		return report, err
	}

	report.TaskCount = len(w.Tasks)
	report.EdgeCount = len(w.Edges)
	report.fillLossCounts(reg)
	report.Duration = time.Since(start)

	if err := CheckFailOnLoss(reg, opts.FailOnLoss); err != nil {
		return report, fmt.Errorf("fail-on-loss: %w", err)
	}

	log.Debug("conversion complete",
		"source", srcFmt, "target", dstFmt,
		"tasks", report.TaskCount, "losses", report.LossTotal,
		"duration", report.Duration)
	return report, nil
}

// outputChecksum parses the just-written output back and hashes the IR it
// yields. A parse failure falls back to hashing the in-memory workflow.
func outputChecksum(ctx context.Context, f formats.Format, path string, w *ir.Workflow) (string, error) {
	importer, err := NewImporter(f, formats.ImporterOptions{})
	if err != nil {
		return "", err
	}
	reimported, err := importer.ParseSource(ctx, path)
	if err != nil {
		return ir.Checksum(w)
	}
	return ir.Checksum(reimported)
}
