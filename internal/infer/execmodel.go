package infer

import (
	"github.com/csmcal/wf2wf/internal/ir"
)

// detectExecutionModel selects an execution model for the workflow from the
// source format's idiom plus content heuristics, and stores the choice with
// its confidence in workflow metadata.
func (e *Engine) detectExecutionModel(w *ir.Workflow) (string, float64) {
	// Already pinned (by an earlier run or an explicit user choice).
	if m, ok := w.Metadata["execution_model"]; ok {
		if s, isStr := m.AsString(); isStr && ir.IsEnvironment(s) {
			conf := 1.0
			if c, ok := w.Metadata["execution_model_confidence"]; ok {
				if f, isNum := c.AsFloat(); isNum {
					conf = f
				}
			}
			return s, conf
		}
	}

	scores := map[string]float64{}
	base := e.source.DefaultEnvironment()
	scores[base] += 0.5

	containers, transfers, bigMem := contentSignals(w)
	if containers {
		scores[ir.EnvCloudNative] += 0.3
	}
	if transfers {
		scores[ir.EnvDistributedComputing] += 0.4
	}
	if bigMem {
		scores[ir.EnvDistributedComputing] += 0.2
	}
	if len(w.Tasks) == 0 {
		scores[ir.EnvLocal] += 0.1
	}

	best, bestScore, total := "", 0.0, 0.0
	for _, env := range ir.Environments {
		s := scores[env]
		total += s
		if s > bestScore {
			best, bestScore = env, s
		}
	}
	if best == "" {
		best, bestScore, total = base, 0.5, 0.5
	}

	confidence := bestScore / total
	if w.Metadata == nil {
		w.Metadata = map[string]ir.Value{}
	}
	w.Metadata["execution_model"] = ir.String(best)
	w.Metadata["execution_model_confidence"] = ir.Float(confidence)
	return best, confidence
}

// contentSignals scans tasks for heuristics: container requirements,
// explicit transfer modes, and large resource magnitudes.
func contentSignals(w *ir.Workflow) (containers, transfers, bigMem bool) {
	for _, t := range w.Tasks {
		if !t.Container.IsEmpty() || t.HasRequirement(ir.ReqDocker) {
			containers = true
		}
		for _, p := range append(append([]ir.ParameterSpec{}, t.Inputs...), t.Outputs...) {
			if p.TransferMode == ir.TransferAlways || p.TransferMode == ir.TransferNever {
				transfers = true
			}
		}
		for _, env := range ir.Environments {
			if mem, ok := t.MemMB.GetWithDefault(env); ok && mem >= 32*1024 {
				bigMem = true
			}
		}
		if d, ok := t.MemMB.Default(); ok && d >= 32*1024 {
			bigMem = true
		}
	}
	return containers, transfers, bigMem
}
