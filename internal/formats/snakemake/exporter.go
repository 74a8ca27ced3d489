package snakemake

import (
	"fmt"
	"os"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Exporter emits one rule per task plus a target rule, resources and
// containers mapped by name.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates a Snakemake exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatSnakemake
}

func (e *Exporter) env() string {
	if e.opts.TargetEnvironment != "" {
		return e.opts.TargetEnvironment
	}
	return formats.FormatSnakemake.DefaultEnvironment()
}

// DetectLosses implements formats.Exporter. The rule DSL has no scatter,
// guard expressions, retry back-off policies, or scheduler attributes.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {
	env := e.env()
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]

		if t.Scatter != nil {
			reg.RecordLost(ir.TaskPointer(id, "scatter"), "scatter",
				ir.FromGo(map[string]any{"scatter": t.Scatter.Scatter, "method": t.Scatter.Method}),
				"rule-based format has no scatter construct; expand inputs explicitly",
				ir.CategoryAdvanced, ir.SeverityWarn)
		}
		if t.When != "" {
			reg.RecordLost(ir.TaskPointer(id, "when"), "when",
				ir.String(t.When),
				"rule-based format has no conditional guard",
				ir.CategoryAdvanced, ir.SeverityWarn)
		}
		if policy, ok := t.RetryPolicy.GetWithDefault(env); ok && policy != ir.RetryNone {
			reg.RecordLost(ir.TaskPointer(id, "retry_policy"), "retry_policy",
				ir.String(policy),
				"retries are a bare count here; the back-off policy is dropped",
				ir.CategoryErrorHandling, ir.SeverityInfo)
		}
		for attr, value := range t.ExtraAttributes {
			reg.RecordLost(ir.TaskPointer(id, "extra_attributes", attr), attr,
				value,
				"scheduler attribute has no rule-based equivalent",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
		if !t.Checkpointing.IsEmpty() {
			reg.RecordLost(ir.TaskPointer(id, "checkpointing"), "checkpointing",
				loss.EnvLostValue(t.Checkpointing),
				"checkpointing is not expressible in the rule DSL",
				ir.CategoryAdvanced, ir.SeverityInfo)
		}
	}
}

// GenerateOutput implements formats.Exporter.
func (e *Exporter) GenerateOutput(w *ir.Workflow, path string) error {
	env := e.env()
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", w.Name)
	if w.Doc != "" {
		fmt.Fprintf(&b, "# %s\n", strings.ReplaceAll(w.Doc, "\n", "\n# "))
	}
	b.WriteString("\n")

	order, ok := w.TopologicalOrder()
	if !ok {
		return wferrors.Wrap(wferrors.ErrCycle, "task graph is cyclic")
	}

	e.writeTargetRule(&b, w, order)
	for _, id := range order {
		e.writeRule(&b, w.Tasks[id], env)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

// writeTargetRule emits "rule all" collecting the workflow targets.
func (e *Exporter) writeTargetRule(b *strings.Builder, w *ir.Workflow, order []string) {
	targets := make([]string, 0, len(w.Outputs))
	for _, out := range w.Outputs {
		targets = append(targets, out.ID)
	}
	if len(targets) == 0 {
		// Fall back to the outputs of terminal tasks.
		for _, id := range order {
			if len(w.Children(id)) > 0 {
				continue
			}
			for _, out := range w.Tasks[id].Outputs {
				targets = append(targets, out.ID)
			}
		}
	}
	if len(targets) == 0 {
		return
	}

	b.WriteString("rule all:\n    input:\n")
	for _, target := range targets {
		fmt.Fprintf(b, "        %q,\n", target)
	}
	b.WriteString("\n")
}

func (e *Exporter) writeRule(b *strings.Builder, t *ir.Task, env string) {
	fmt.Fprintf(b, "rule %s:\n", t.ID)

	writeFileList(b, "input", t.Inputs)
	writeFileList(b, "output", t.Outputs)

	if threads, ok := t.Threads.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    threads: %d\n", threads)
	} else if cpu, ok := t.CPU.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    threads: %d\n", cpu)
	}

	if prio, ok := t.Priority.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    priority: %d\n", prio)
	}
	if retries, ok := t.RetryCount.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    retries: %d\n", retries)
	}

	e.writeResources(b, t, env)

	if conda, ok := t.Conda.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    conda:\n        %q\n", conda)
	}
	if container, ok := t.Container.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    container:\n        %q\n", container)
	}
	if logPath, ok := t.LogConfig.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    log:\n        %q\n", logPath)
	}

	if script, ok := t.Script.GetWithDefault(env); ok && script != "" {
		fmt.Fprintf(b, "    script:\n        %q\n", script)
	} else if cmd, ok := t.Command.GetWithDefault(env); ok && cmd != "" {
		fmt.Fprintf(b, "    shell:\n        %q\n", cmd)
	}
	b.WriteString("\n")
}

func (e *Exporter) writeResources(b *strings.Builder, t *ir.Task, env string) {
	type entry struct {
		key   string
		value int64
	}
	var entries []entry
	for _, key := range []string{"mem_mb", "disk_mb", "gpu", "gpu_mem_mb"} {
		if v, ok := t.ResourceFor(key, env); ok {
			entries = append(entries, entry{key, v})
		}
	}
	if secs, ok := t.TimeS.GetWithDefault(env); ok {
		entries = append(entries, entry{"runtime", (secs + 59) / 60})
	}
	if len(entries) == 0 && t.GPUCapability.IsEmpty() {
		return
	}

	b.WriteString("    resources:\n")
	for _, en := range entries {
		fmt.Fprintf(b, "        %s=%d,\n", en.key, en.value)
	}
	if capability, ok := t.GPUCapability.GetWithDefault(env); ok {
		fmt.Fprintf(b, "        gpu_capability=%q,\n", capability)
	}
}

func writeFileList(b *strings.Builder, directive string, params []ir.ParameterSpec) {
	if len(params) == 0 {
		return
	}
	fmt.Fprintf(b, "    %s:\n", directive)
	for _, p := range params {
		fmt.Fprintf(b, "        %q,\n", p.ID)
	}
}
