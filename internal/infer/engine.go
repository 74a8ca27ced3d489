// Package infer fills deducible blanks in a partial workflow: execution-model
// detection, command-pattern resource rules, conda/container conversion,
// retry policies, and transfer-mode classification.
//
// Every inferred value is written through the EnvValue API against one
// environment only, so source values in the default slot stay intact and a
// second run is a no-op. Resource and container values are bound to the
// detected execution model, not to the target format's environment; retry
// policies are bound to the target format's environment.
package infer

import (
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
	"github.com/csmcal/wf2wf/internal/output"
)

// Engine runs the inference rules for one conversion.
type Engine struct {
	source formats.Format
	target formats.Format
	log    interface {
		Debug(msg any, keyvals ...any)
	}
}

// NewEngine creates an engine for a source → target conversion.
func NewEngine(source, target formats.Format) *Engine {
	return &Engine{
		source: source,
		target: target,
		log:    output.StageLogger("infer"),
	}
}

// Result reports what a run filled in.
type Result struct {
	ExecutionModel string
	Confidence     float64

	ResourcesInferred  int
	ContainersInferred int
	RetriesInferred    int
	TransfersResolved  int
}

// Run executes the rule stages in their fixed order. The registry receives
// informational entries for derived environment conversions. Reapplied loss
// entries shield their fields from re-inference.
func (e *Engine) Run(w *ir.Workflow, reg *loss.Registry) Result {
	var res Result

	res.ExecutionModel, res.Confidence = e.detectExecutionModel(w)
	targetEnv := res.ExecutionModel

	shielded := reappliedPointers(w)

	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		res.ResourcesInferred += e.inferResources(t, targetEnv, shielded)
		res.ContainersInferred += e.inferEnvironment(t, targetEnv, reg, shielded)
		res.RetriesInferred += e.inferRetries(t, e.target.DefaultEnvironment(), shielded)
	}
	res.TransfersResolved = e.inferTransfers(w)

	e.log.Debug("inference complete",
		"execution_model", res.ExecutionModel,
		"confidence", res.Confidence,
		"resources", res.ResourcesInferred,
		"containers", res.ContainersInferred,
		"retries", res.RetriesInferred,
		"transfers", res.TransfersResolved,
	)
	return res
}

// reappliedPointers collects the JSON pointers of loss entries restored from
// a side-car; inference must not overwrite reinjected values.
func reappliedPointers(w *ir.Workflow) map[string]bool {
	out := map[string]bool{}
	for _, e := range w.LossMap {
		if e.Status == ir.StatusReapplied {
			out[e.JSONPointer] = true
		}
	}
	return out
}
