package wdl

import (
	"fmt"
	"os"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Exporter emits WDL 1.0 task blocks with runtime sections plus a workflow
// block calling tasks in stable topological order.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates a WDL exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatWDL
}

func (e *Exporter) env() string {
	if e.opts.TargetEnvironment != "" {
		return e.opts.TargetEnvironment
	}
	return formats.FormatWDL.DefaultEnvironment()
}

// DetectLosses implements formats.Exporter. The type system has no home for
// priorities, scheduler attributes, conda environments, or per-parameter
// transfer modes.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {
	env := e.env()
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]

		if prio, ok := t.Priority.GetWithDefault(env); ok {
			reg.RecordLost(ir.TaskPointer(id, "priority"), "priority",
				ir.Int(prio),
				"job priority is not part of the runtime section",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
		if conda, ok := t.Conda.GetWithDefault(env); ok {
			if _, hasContainer := t.Container.GetWithDefault(env); !hasContainer {
				reg.RecordLost(ir.TaskPointer(id, "conda"), "conda",
					ir.String(conda),
					"runtime sections reference containers, not conda environments",
					ir.CategoryEnvironment, ir.SeverityWarn)
			}
		}
		for attr, value := range t.ExtraAttributes {
			reg.RecordLost(ir.TaskPointer(id, "extra_attributes", attr), attr,
				value,
				"scheduler attribute has no runtime key",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
		for _, p := range append(append([]ir.ParameterSpec{}, t.Inputs...), t.Outputs...) {
			if p.TransferMode == ir.TransferNever || p.TransferMode == ir.TransferShared {
				reg.RecordLost(ir.TaskPointer(id, "file_transfer"), "transfer_mode",
					ir.String(p.TransferMode),
					"per-file transfer modes are an execution-engine concern",
					ir.CategoryFileTransfer, ir.SeverityInfo)
			}
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
	b.WriteString("version 1.0\n\n")

	for _, id := range order {
		e.writeTask(&b, w.Tasks[id], env)
	}

	e.writeWorkflow(&b, w, order)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

func (e *Exporter) writeTask(b *strings.Builder, t *ir.Task, env string) {
	fmt.Fprintf(b, "task %s {\n", t.ID)

	if len(t.Inputs) > 0 {
		b.WriteString("    input {\n")
		for _, p := range t.Inputs {
			fmt.Fprintf(b, "        %s %s\n", wdlType(p.Type), sanitiseVar(p.ID))
		}
		b.WriteString("    }\n\n")
	}

	cmd := t.CommandFor(env)
	if cmd == "" {
		cmd = t.ScriptFor(env)
	}
	if cmd != "" {
		b.WriteString("    command <<<\n")
		for _, line := range strings.Split(cmd, "\n") {
			fmt.Fprintf(b, "        %s\n", line)
		}
		b.WriteString("    >>>\n\n")
	}

	if len(t.Outputs) > 0 {
		b.WriteString("    output {\n")
		for _, p := range t.Outputs {
			if p.IsFileType() {
				fmt.Fprintf(b, "        %s %s = \"%s\"\n", wdlType(p.Type), sanitiseVar(p.ID), p.ID)
			} else {
				fmt.Fprintf(b, "        %s %s\n", wdlType(p.Type), sanitiseVar(p.ID))
			}
		}
		b.WriteString("    }\n\n")
	}

	e.writeRuntime(b, t, env)
	b.WriteString("}\n\n")
}

func (e *Exporter) writeRuntime(b *strings.Builder, t *ir.Task, env string) {
	var lines []string
	if container, ok := t.Container.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("docker: \"%s\"", strings.TrimPrefix(container, "docker://")))
	}
	if cpu, ok := t.CPU.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("cpu: %d", cpu))
	}
	if mem, ok := t.MemMB.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("memory: \"%d MB\"", mem))
	}
	if disk, ok := t.DiskMB.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("disks: \"local-disk %d SSD\"", (disk+999)/1000))
	}
	if gpus, ok := t.GPU.GetWithDefault(env); ok && gpus > 0 {
		lines = append(lines, fmt.Sprintf("gpuCount: %d", gpus))
		if capability, ok := t.GPUCapability.GetWithDefault(env); ok {
			lines = append(lines, fmt.Sprintf("gpuType: \"%s\"", capability))
		}
	}
	if retries, ok := t.RetryCount.GetWithDefault(env); ok && retries > 0 {
		lines = append(lines, fmt.Sprintf("maxRetries: %d", retries))
	}
	if len(lines) == 0 {
		return
	}

	b.WriteString("    runtime {\n")
	for _, line := range lines {
		fmt.Fprintf(b, "        %s\n", line)
	}
	b.WriteString("    }\n")
}

func (e *Exporter) writeWorkflow(b *strings.Builder, w *ir.Workflow, order []string) {
	fmt.Fprintf(b, "workflow %s {\n", sanitiseVar(w.Name))

	for _, id := range order {
		t := w.Tasks[id]
		parents := w.Parents(id)

		indent := "    "
		if t.Scatter != nil && len(t.Scatter.Scatter) > 0 {
			fmt.Fprintf(b, "    scatter (item in %s) {\n", sanitiseVar(t.Scatter.Scatter[0]))
			indent = "        "
		}

		if len(parents) == 0 {
			fmt.Fprintf(b, "%scall %s\n", indent, id)
		} else {
			fmt.Fprintf(b, "%scall %s {\n%s    input:\n", indent, id, indent)
			for _, p := range parents {
				parent := w.Tasks[p]
				for _, out := range parent.Outputs {
					fmt.Fprintf(b, "%s        %s = %s.%s,\n", indent, sanitiseVar(out.ID), p, sanitiseVar(out.ID))
				}
			}
			fmt.Fprintf(b, "%s}\n", indent)
		}

		if t.Scatter != nil && len(t.Scatter.Scatter) > 0 {
			b.WriteString("    }\n")
		}
	}
	b.WriteString("}\n")
}

// wdlType converts an IR type string to WDL notation.
func wdlType(t string) string {
	if strings.HasPrefix(t, "array<") && strings.HasSuffix(t, ">") {
		return "Array[" + wdlType(strings.TrimSuffix(strings.TrimPrefix(t, "array<"), ">")) + "]"
	}
	switch t {
	case ir.TypeFile:
		return "File"
	case ir.TypeDirectory:
		return "Directory"
	case ir.TypeInt:
		return "Int"
	case ir.TypeFloat:
		return "Float"
	case ir.TypeBoolean:
		return "Boolean"
	default:
		return "String"
	}
}

func sanitiseVar(id string) string {
	r := strings.NewReplacer("/", "_", ".", "_", " ", "_", "-", "_")
	return strings.Trim(r.Replace(id), "_")
}
