// Package adapt retargets environment-specific values between execution
// models. Values already carrying the target environment are left alone;
// everything else is scaled from the source value, clamped to the resource
// bounds, and recorded as an adapted loss entry.
package adapt

import (
	"fmt"
	"math"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
	"github.com/csmcal/wf2wf/internal/output"
	"github.com/csmcal/wf2wf/internal/schema"
)

// Result summarises one adaptation pass.
type Result struct {
	ValuesAdapted int
	GPUFallbacks  int
}

// Adapt rewrites resource values so targetEnv carries suitable concrete
// values. Source-environment values are never modified.
func Adapt(w *ir.Workflow, sourceEnv, targetEnv string, reg *loss.Registry) Result {
	var res Result
	if sourceEnv == targetEnv {
		return res
	}
	log := output.StageLogger("adapt")

	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]

		// Feature fallbacks run first so the scaling pass respects the
		// values they pin for the target environment.
		res.GPUFallbacks += gpuFallback(t, id, sourceEnv, targetEnv, reg)

		for _, field := range scaledFields {
			ev := resolveField(t, field)
			if ev == nil || *ev == nil {
				continue
			}
			// A value is applicable to the target when it carries an exact
			// entry or a default; only inapplicable values are adapted.
			if _, ok := (*ev).GetWithDefault(targetEnv); ok {
				continue
			}
			src, ok := (*ev).GetWithDefault(sourceEnv)
			if !ok {
				continue
			}

			factor := scalingFactor(sourceEnv, targetEnv, field)
			adapted := int64(math.Round(float64(src) * factor))
			adapted = schema.ClampResource(field, adapted)
			(*ev).SetFor(targetEnv, adapted)
			res.ValuesAdapted++

			reg.Record(ir.LossEntry{
				JSONPointer: ir.TaskPointer(id, field),
				Field:       field,
				LostValue:   ir.Int(src),
				Reason: fmt.Sprintf("value scaled for %s execution", targetEnv),
				Category: ir.CategoryEnvironment,
				Severity: ir.SeverityInfo,
				Status:   ir.StatusAdapted,
				Origin:   ir.OriginWf2wf,
				EnvironmentContext: &ir.EnvironmentContext{
					SourceEnvironment: sourceEnv,
					TargetEnvironment: targetEnv,
				},
				AdaptationDetails: map[string]ir.Value{
					"original_value":    ir.Int(src),
					"adapted_value":     ir.Int(adapted),
					"adaptation_method": ir.String(fmt.Sprintf("scale×%.2f", factor)),
				},
			})
		}
	}

	log.Debug("adaptation complete",
		"source", sourceEnv, "target", targetEnv,
		"values", res.ValuesAdapted, "gpu_fallbacks", res.GPUFallbacks)
	return res
}

// resolveField returns the container slot for a scaled field.
func resolveField(t *ir.Task, field string) **ir.EnvValue[int64] {
	f, ok := t.ResourceFields()[field]
	if !ok {
		return nil
	}
	return f
}

// gpuFallback replaces a GPU requirement with a CPU-only equivalent when the
// target environment has no GPU support.
func gpuFallback(t *ir.Task, id, sourceEnv, targetEnv string, reg *loss.Registry) int {
	if EnvironmentSupportsGPU(targetEnv) {
		return 0
	}
	if t.GPU == nil {
		return 0
	}
	gpus, ok := t.GPU.GetWithDefault(sourceEnv)
	if !ok || gpus == 0 {
		return 0
	}
	if v, has := t.GPU.GetFor(targetEnv); has && v == 0 {
		return 0
	}

	t.GPU.SetFor(targetEnv, 0)
	// A GPU task needs more CPU headroom when falling back.
	if cpu, ok := t.CPU.GetWithDefault(sourceEnv); ok && !t.CPU.HasEnv(targetEnv) {
		t.CPU.SetFor(targetEnv, schema.ClampResource("cpu", cpu*2))
	}

	reg.Record(ir.LossEntry{
		JSONPointer: ir.TaskPointer(id, "gpu"),
		Field:       "gpu",
		LostValue:   ir.Int(gpus),
		Reason:      fmt.Sprintf("%s has no GPU support; replaced with CPU-only equivalent", targetEnv),
		Category:    ir.CategoryEnvironment,
		Severity:    ir.SeverityWarn,
		Status:      ir.StatusAdapted,
		Origin:      ir.OriginWf2wf,
		EnvironmentContext: &ir.EnvironmentContext{
			SourceEnvironment: sourceEnv,
			TargetEnvironment: targetEnv,
		},
		AdaptationDetails: map[string]ir.Value{
			"original_value":    ir.Int(gpus),
			"adapted_value":     ir.Int(0),
			"adaptation_method": ir.String("gpu_to_cpu_fallback"),
		},
		RecoverySuggestions: []string{
			"re-target an environment with GPU support to restore the requirement",
		},
	})
	return 1
}

// EnvironmentSupportsGPU reports whether an execution model can satisfy GPU
// requirements.
func EnvironmentSupportsGPU(env string) bool {
	return env != ir.EnvLocal
}
