package convert

import (
	"fmt"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/infer"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
	"github.com/csmcal/wf2wf/internal/prompt"
)

// defaultContainer is applied when the user (or headless mode) accepts
// container isolation for a task that names no software environment at all.
const defaultContainer = "docker://wf2wf/default:latest"

// promptStage elicits the gaps inference could not close. Prompts are
// declarative; the documented default applies instantly in headless mode.
func promptStage(w *ir.Workflow, target formats.Format, targetEnv string, p *prompt.Prompter, reg *loss.Registry) error {
	if !target.RequiresContainerIsolation() {
		return nil
	}

	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		if !t.Container.IsEmpty() {
			continue
		}

		var ref string
		if conda, ok := t.Conda.GetWithDefault(targetEnv); ok {
			ref = infer.SynthesiseContainer(conda)
		} else {
			ref = defaultContainer
		}

		accept, err := p.Ask(prompt.Question{
			Key:     "container-isolation",
			Text:    fmt.Sprintf("Task %q has no container but the target requires isolation. Use %s?", id, ref),
			Default: true,
		})
		if err != nil {
			return err
		}
		if !accept {
			continue
		}

		if t.Container == nil {
			t.Container = &ir.EnvValue[string]{}
		}
		t.Container.SetFor(targetEnv, ref)
		reg.Record(ir.LossEntry{
			JSONPointer: ir.TaskPointer(id, "container"),
			Field:       "container",
			LostValue:   ir.String(ref),
			Reason:      "container synthesised to satisfy the target's isolation requirement",
			Category:    ir.CategoryEnvironment,
			Severity:    ir.SeverityInfo,
			Status:      ir.StatusAdapted,
			Origin:      ir.OriginWf2wf,
			AdaptationDetails: map[string]ir.Value{
				"assigned_container": ir.String(ref),
			},
		})
	}
	return nil
}
