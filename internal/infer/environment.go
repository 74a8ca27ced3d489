package infer

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// inferEnvironment converts between conda and container software
// environments when the target format expresses only one of them.
func (e *Engine) inferEnvironment(t *ir.Task, env string, reg *loss.Registry, shielded map[string]bool) int {
	n := 0

	// Conda-only task, container-oriented target: synthesise a container
	// reference. The tag derives from the conda spec, so re-running yields
	// the identical reference.
	needsContainer := e.target.RequiresContainerIsolation() ||
		e.target == formats.FormatCWL || e.target == formats.FormatGalaxy
	if needsContainer && t.Container.IsEmpty() && !t.Conda.IsEmpty() {
		if !shielded[ir.TaskPointer(t.ID, "container")] {
			conda, _ := t.Conda.GetWithDefault(env)
			ref := SynthesiseContainer(conda)
			if t.Container == nil {
				t.Container = &ir.EnvValue[string]{}
			}
			t.Container.SetFor(env, ref)
			reg.Record(ir.LossEntry{
				JSONPointer: ir.TaskPointer(t.ID, "conda"),
				Field:       "conda",
				LostValue:   ir.String(conda),
				Reason:      "conda environment converted to container for container-oriented target",
				Category:    ir.CategoryEnvironment,
				Severity:    ir.SeverityInfo,
				Status:      ir.StatusAdapted,
				Origin:      ir.OriginWf2wf,
				AdaptationDetails: map[string]ir.Value{
					"derived_container": ir.String(ref),
					"adaptation_method": ir.String("conda_to_container"),
				},
			})
			n++
		}
	}

	// Container-only task, conda-oriented target: derive a conda environment
	// name from the image so the target still names its software stack.
	condaOnly := e.target == formats.FormatSnakemake
	if condaOnly && t.Conda.IsEmpty() && !t.Container.IsEmpty() {
		if !shielded[ir.TaskPointer(t.ID, "conda")] {
			image, _ := t.Container.GetWithDefault(env)
			name := condaNameFromImage(image)
			if name != "" {
				if t.Conda == nil {
					t.Conda = &ir.EnvValue[string]{}
				}
				t.Conda.SetFor(env, name)
				n++
			}
		}
	}

	return n
}

// SynthesiseContainer derives a deterministic container reference from a
// conda specification.
func SynthesiseContainer(condaSpec string) string {
	sum := sha256.Sum256([]byte(condaSpec))
	return fmt.Sprintf("docker://wf2wf/auto:%x", sum[:6])
}

// condaNameFromImage extracts a plausible environment name from a container
// image reference ("docker://biocontainers/bwa:0.7.17" → "bwa").
func condaNameFromImage(image string) string {
	image = strings.TrimPrefix(image, "docker://")
	if i := strings.IndexByte(image, '@'); i >= 0 {
		image = image[:i]
	}
	if i := strings.IndexByte(image, ':'); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndexByte(image, '/'); i >= 0 {
		image = image[i+1:]
	}
	return image
}
