// Package irjson reads and writes the IR's own serialisation: canonical
// JSON, or YAML for .yaml/.yml paths. Round trips are byte-stable.
package irjson

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Importer decodes IR documents.
type Importer struct {
	opts formats.ImporterOptions
}

// NewImporter creates an IR importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatIR
}

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}

	if isYAML(path) {
		data, err = sigsyaml.YAMLToJSON(data)
		if err != nil {
			return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("parsing %s: %v", path, err))
		}
	}

	w, err := ir.FromJSON(data)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, err.Error())
	}
	return w, nil
}

// Exporter writes IR documents.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates an IR exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatIR
}

// DetectLosses implements formats.Exporter. The IR expresses everything;
// nothing is ever lost.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {}

// GenerateOutput implements formats.Exporter.
func (e *Exporter) GenerateOutput(w *ir.Workflow, path string) error {
	data, err := ir.CanonicalIndentJSON(w)
	if err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}

	if isYAML(path) {
		data, err = sigsyaml.JSONToYAML(data)
		if err != nil {
			return wferrors.NewExportError(err.Error(), path)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
