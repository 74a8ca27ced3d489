// Package formats defines the supported workflow formats, extension-based
// auto-detection, and the capability interfaces importers and exporters
// implement. Shared orchestration lives in the convert package; format
// packages only parse sources and generate outputs.
package formats

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/csmcal/wf2wf/internal/ir"
)

// Format identifies a workflow description language.
type Format string

// Supported formats. FormatIR is the converter's own serialisation.
const (
	FormatSnakemake Format = "snakemake"
	FormatDAGMan    Format = "dagman"
	FormatCWL       Format = "cwl"
	FormatNextflow  Format = "nextflow"
	FormatWDL       Format = "wdl"
	FormatGalaxy    Format = "galaxy"
	FormatIR        Format = "ir"
)

// All lists the supported formats in a stable order.
var All = []Format{
	FormatSnakemake,
	FormatDAGMan,
	FormatCWL,
	FormatNextflow,
	FormatWDL,
	FormatGalaxy,
	FormatIR,
}

// Parse converts a format name to a Format.
func Parse(s string) (Format, error) {
	for _, f := range All {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Detect maps a filename to a format by extension. Files named Snakefile
// detect as snakemake regardless of extension.
func Detect(path string) (Format, error) {
	base := filepath.Base(path)
	if base == "Snakefile" || strings.HasPrefix(base, "Snakefile.") {
		return FormatSnakemake, nil
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".smk":
		return FormatSnakemake, nil
	case ".dag":
		return FormatDAGMan, nil
	case ".cwl":
		return FormatCWL, nil
	case ".nf":
		return FormatNextflow, nil
	case ".wdl":
		return FormatWDL, nil
	case ".ga":
		return FormatGalaxy, nil
	case ".json", ".yaml", ".yml":
		return FormatIR, nil
	}
	return "", fmt.Errorf("cannot detect format of %q", path)
}

// DefaultEnvironment returns the execution environment a format's idiom
// assumes when the content gives no stronger signal.
func (f Format) DefaultEnvironment() string {
	switch f {
	case FormatDAGMan:
		return ir.EnvDistributedComputing
	case FormatGalaxy:
		return ir.EnvCloudNative
	case FormatIR:
		return ir.EnvLocal
	default:
		return ir.EnvSharedFilesystem
	}
}

// SupportsGPU reports whether the format can express GPU requirements.
func (f Format) SupportsGPU() bool {
	switch f {
	case FormatDAGMan, FormatNextflow, FormatWDL:
		return true
	default:
		return false
	}
}

// SupportsPriority reports whether the format can express job priority.
func (f Format) SupportsPriority() bool {
	switch f {
	case FormatSnakemake, FormatDAGMan:
		return true
	default:
		return false
	}
}

// SupportsRetry reports whether the format natively expresses retries
// (rather than via hints).
func (f Format) SupportsRetry() bool {
	switch f {
	case FormatSnakemake, FormatDAGMan, FormatNextflow, FormatWDL, FormatIR:
		return true
	default:
		return false
	}
}

// RequiresContainerIsolation reports whether targets of this format expect
// every task to run in a container.
func (f Format) RequiresContainerIsolation() bool {
	return f == FormatGalaxy
}
