package nextflow

import (
	"fmt"
	"os"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Exporter emits process blocks plus a workflow block deriving channels from
// the edge relation.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates a Nextflow exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatNextflow
}

func (e *Exporter) env() string {
	if e.opts.TargetEnvironment != "" {
		return e.opts.TargetEnvironment
	}
	return formats.FormatNextflow.DefaultEnvironment()
}

// DetectLosses implements formats.Exporter. The dataflow language keeps
// resources and containers but has no home for UI metadata, regulatory
// provenance, scheduler attributes, or priorities.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {
	env := e.env()

	if w.BCO != nil {
		reg.RecordLost("/bco", "bco",
			ir.String(w.BCO.ObjectID),
			"regulatory provenance has no dataflow equivalent",
			ir.CategoryMetadata, ir.SeverityWarn)
	}
	if w.Provenance != nil {
		reg.RecordLost("/provenance", "provenance",
			ir.FromGo(len(w.Provenance.Authors)),
			"authorship metadata is not expressible in the script",
			ir.CategoryMetadata, ir.SeverityInfo)
	}

	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		if prio, ok := t.Priority.GetWithDefault(env); ok {
			reg.RecordLost(ir.TaskPointer(id, "priority"), "priority",
				ir.Int(prio),
				"job priority has no process directive",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
		for attr, value := range t.ExtraAttributes {
			reg.RecordLost(ir.TaskPointer(id, "extra_attributes", attr), attr,
				value,
				"scheduler attribute has no process directive",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
		if t.Scatter != nil {
			reg.RecordLost(ir.TaskPointer(id, "scatter"), "scatter",
				ir.FromGo(map[string]any{"scatter": t.Scatter.Scatter, "method": t.Scatter.Method}),
				"scatter is implicit in channel semantics; the method tag is dropped",
				ir.CategoryAdvanced, ir.SeverityInfo)
		}
	}
}

// GenerateOutput implements formats.Exporter.
func (e *Exporter) GenerateOutput(w *ir.Workflow, path string) error {
	env := e.env()

	order, ok := w.TopologicalOrder()
	if !ok {
		return wferrors.Wrap(wferrors.ErrCycle, "task graph is cyclic")
	}

	var b strings.Builder
	b.WriteString("nextflow.enable.dsl=2\n\n")
	fmt.Fprintf(&b, "// %s\n\n", w.Name)

	for _, id := range order {
		e.writeProcess(&b, w.Tasks[id], env)
	}

	e.writeWorkflowBlock(&b, w, order)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

func (e *Exporter) writeProcess(b *strings.Builder, t *ir.Task, env string) {
	fmt.Fprintf(b, "process %s {\n", t.ID)

	if cpu, ok := t.CPU.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    cpus %d\n", cpu)
	}
	if mem, ok := t.MemMB.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    memory '%d MB'\n", mem)
	}
	if disk, ok := t.DiskMB.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    disk '%d MB'\n", disk)
	}
	if secs, ok := t.TimeS.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    time '%ds'\n", secs)
	}
	if gpus, ok := t.GPU.GetWithDefault(env); ok && gpus > 0 {
		fmt.Fprintf(b, "    accelerator %d\n", gpus)
	}
	if container, ok := t.Container.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    container '%s'\n", strings.TrimPrefix(container, "docker://"))
	}
	if conda, ok := t.Conda.GetWithDefault(env); ok {
		fmt.Fprintf(b, "    conda '%s'\n", conda)
	}
	if retries, ok := t.RetryCount.GetWithDefault(env); ok && retries > 0 {
		b.WriteString("    errorStrategy 'retry'\n")
		fmt.Fprintf(b, "    maxRetries %d\n", retries)
	}
	if publish, ok := t.Meta["publish_dir"]; ok {
		if dir, isStr := publish.AsString(); isStr {
			fmt.Fprintf(b, "    publishDir '%s'\n", dir)
		}
	}

	if len(t.Inputs) > 0 {
		b.WriteString("\n    input:\n")
		for _, p := range t.Inputs {
			fmt.Fprintf(b, "    %s\n", ioDecl(p))
		}
	}
	if len(t.Outputs) > 0 {
		b.WriteString("\n    output:\n")
		for _, p := range t.Outputs {
			fmt.Fprintf(b, "    %s\n", ioDecl(p))
		}
	}

	if t.When != "" {
		fmt.Fprintf(b, "\n    when:\n    %s\n", t.When)
	}

	cmd := t.CommandFor(env)
	if cmd == "" {
		cmd = t.ScriptFor(env)
	}
	if cmd != "" {
		b.WriteString("\n    script:\n    \"\"\"\n")
		for _, line := range strings.Split(cmd, "\n") {
			fmt.Fprintf(b, "    %s\n", line)
		}
		b.WriteString("    \"\"\"\n")
	}

	b.WriteString("}\n\n")
}

func ioDecl(p ir.ParameterSpec) string {
	if p.IsFileType() {
		return fmt.Sprintf("path '%s'", p.ID)
	}
	return fmt.Sprintf("val %s", sanitiseVar(p.ID))
}

// writeWorkflowBlock wires processes through channel variables following the
// stable topological order.
func (e *Exporter) writeWorkflowBlock(b *strings.Builder, w *ir.Workflow, order []string) {
	b.WriteString("workflow {\n")
	for _, id := range order {
		parents := w.Parents(id)
		if len(parents) == 0 {
			fmt.Fprintf(b, "    %s_ch = %s()\n", id, id)
			continue
		}
		args := make([]string, 0, len(parents))
		for _, p := range parents {
			args = append(args, p+"_ch")
		}
		fmt.Fprintf(b, "    %s_ch = %s(%s)\n", id, id, strings.Join(args, ", "))
	}
	b.WriteString("}\n")
}

func sanitiseVar(id string) string {
	r := strings.NewReplacer("/", "_", ".", "_", " ", "_", "-", "_")
	return strings.Trim(r.Replace(id), "_")
}
