// Package convert orchestrates the fixed conversion pipeline:
// importer → loss reapply → inference → prompting → adaptation →
// validation → exporter → side-car.
package convert

import (
	"fmt"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/formats/cwl"
	"github.com/csmcal/wf2wf/internal/formats/dagman"
	"github.com/csmcal/wf2wf/internal/formats/galaxy"
	"github.com/csmcal/wf2wf/internal/formats/irjson"
	"github.com/csmcal/wf2wf/internal/formats/nextflow"
	"github.com/csmcal/wf2wf/internal/formats/snakemake"
	"github.com/csmcal/wf2wf/internal/formats/wdl"
)

// NewImporter returns the importer for a format.
func NewImporter(f formats.Format, opts formats.ImporterOptions) (formats.Importer, error) {
	switch f {
	case formats.FormatSnakemake:
		return snakemake.NewImporter(opts), nil
	case formats.FormatDAGMan:
		return dagman.NewImporter(opts), nil
	case formats.FormatCWL:
		return cwl.NewImporter(opts), nil
	case formats.FormatNextflow:
		return nextflow.NewImporter(opts), nil
	case formats.FormatWDL:
		return wdl.NewImporter(opts), nil
	case formats.FormatGalaxy:
		return galaxy.NewImporter(opts), nil
	case formats.FormatIR:
		return irjson.NewImporter(opts), nil
	}
	return nil, fmt.Errorf("no importer for format %q", f)
}

// NewExporter returns the exporter for a format.
func NewExporter(f formats.Format, opts formats.ExporterOptions) (formats.Exporter, error) {
	switch f {
	case formats.FormatSnakemake:
		return snakemake.NewExporter(opts), nil
	case formats.FormatDAGMan:
		return dagman.NewExporter(opts), nil
	case formats.FormatCWL:
		return cwl.NewExporter(opts), nil
	case formats.FormatNextflow:
		return nextflow.NewExporter(opts), nil
	case formats.FormatWDL:
		return wdl.NewExporter(opts), nil
	case formats.FormatGalaxy:
		return galaxy.NewExporter(opts), nil
	case formats.FormatIR:
		return irjson.NewExporter(opts), nil
	}
	return nil, fmt.Errorf("no exporter for format %q", f)
}
