package formats

import (
	"context"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Importer parses a source document into a partial workflow. Importers never
// run inference, prompting, adaptation, or validation; those are pipeline
// stages owned by the orchestrator.
type Importer interface {
	// ParseSource reads the file(s) rooted at path and builds the partial IR.
	ParseSource(ctx context.Context, path string) (*ir.Workflow, error)

	// SourceFormat names the format this importer parses.
	SourceFormat() Format
}

// Exporter realises exactly two capabilities: loss detection and output
// generation. Top-level export orchestration (side-car writing, checksums,
// validation) belongs to the pipeline.
type Exporter interface {
	// DetectLosses records every field of w the target format cannot
	// express into the registry. It must not mutate w.
	DetectLosses(w *ir.Workflow, reg *loss.Registry)

	// GenerateOutput writes the native files for w rooted at path.
	GenerateOutput(w *ir.Workflow, path string) error

	// TargetFormat names the format this exporter emits.
	TargetFormat() Format
}

// ImporterOptions carries caller options shared by importers.
type ImporterOptions struct {
	// EnableDryRun allows the snakemake importer to run the native tool's
	// graph-printing mode for wildcard resolution. Optional enrichment; its
	// absence never fails an import.
	EnableDryRun bool

	// DryRunTimeoutSeconds bounds the dry-run subprocess. Zero means the
	// default (300).
	DryRunTimeoutSeconds int
}

// ExporterOptions carries caller options shared by exporters.
type ExporterOptions struct {
	// InlineSubmit selects the DAGMan inline sub-mode: submit descriptions
	// embedded in the .dag instead of one .sub file per job.
	InlineSubmit bool

	// TargetEnvironment is the execution environment values are selected
	// for at emission time.
	TargetEnvironment string
}
