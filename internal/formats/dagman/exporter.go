package dagman

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Exporter emits a .dag plus submit descriptions. Two sub-modes: traditional
// (one .sub per job) and inline (submit attributes inside the .dag). The
// contents are identical either way.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates a DAGMan exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatDAGMan
}

func (e *Exporter) env() string {
	if e.opts.TargetEnvironment != "" {
		return e.opts.TargetEnvironment
	}
	return formats.FormatDAGMan.DefaultEnvironment()
}

// DetectLosses implements formats.Exporter. The DAG language has no scatter,
// guard expressions, conda environments (containers only), or secondary
// file patterns.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {
	env := e.env()
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]

		if t.Scatter != nil {
			reg.RecordLost(ir.TaskPointer(id, "scatter"), "scatter",
				ir.FromGo(map[string]any{"scatter": t.Scatter.Scatter, "method": t.Scatter.Method}),
				"DAG nodes are concrete; scatter must be expanded before submission",
				ir.CategoryAdvanced, ir.SeverityWarn)
		}
		if t.When != "" {
			reg.RecordLost(ir.TaskPointer(id, "when"), "when",
				ir.String(t.When),
				"conditional guards have no DAG equivalent",
				ir.CategoryAdvanced, ir.SeverityWarn)
		}
		if conda, ok := t.Conda.GetWithDefault(env); ok {
			if _, hasContainer := t.Container.GetWithDefault(env); !hasContainer {
				reg.RecordLost(ir.TaskPointer(id, "conda"), "conda",
					ir.String(conda),
					"submit descriptions carry containers, not conda environments",
					ir.CategoryEnvironment, ir.SeverityWarn)
			}
		}
		for _, p := range append(append([]ir.ParameterSpec{}, t.Inputs...), t.Outputs...) {
			if len(p.SecondaryFiles) > 0 {
				reg.RecordLost(ir.TaskPointer(id, "secondary_files"), "secondary_files",
					ir.FromGo(p.SecondaryFiles),
					"secondary file patterns are not expressible in transfer lists",
					ir.CategoryFileTransfer, ir.SeverityInfo)
			}
		}
	}
}

// GenerateOutput implements formats.Exporter.
func (e *Exporter) GenerateOutput(w *ir.Workflow, path string) error {
	env := e.env()
	dir := filepath.Dir(path)

	order, ok := w.TopologicalOrder()
	if !ok {
		return wferrors.Wrap(wferrors.ErrCycle, "task graph is cyclic")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", w.Name)

	for _, id := range order {
		t := w.Tasks[id]

		scriptPath, err := e.writeScript(dir, t, env)
		if err != nil {
			return err
		}

		if e.opts.InlineSubmit {
			fmt.Fprintf(&b, "JOB %s {\n", id)
			for _, line := range submitLines(t, env, scriptPath) {
				fmt.Fprintf(&b, "    %s\n", line)
			}
			b.WriteString("    queue\n}\n")
		} else {
			subName := id + ".sub"
			var sub strings.Builder
			for _, line := range submitLines(t, env, scriptPath) {
				sub.WriteString(line + "\n")
			}
			sub.WriteString("queue\n")
			if err := os.WriteFile(filepath.Join(dir, subName), []byte(sub.String()), 0o644); err != nil {
				return wferrors.NewExportError(err.Error(), filepath.Join(dir, subName))
			}
			fmt.Fprintf(&b, "JOB %s %s\n", id, subName)
		}

		if retries, ok := t.RetryCount.GetWithDefault(env); ok && retries > 0 {
			fmt.Fprintf(&b, "RETRY %s %d\n", id, retries)
		}
		if prio, ok := t.Priority.GetWithDefault(env); ok {
			fmt.Fprintf(&b, "PRIORITY %s %d\n", id, prio)
		}
		b.WriteString("\n")
	}

	for _, edge := range w.SortedEdges() {
		fmt.Fprintf(&b, "PARENT %s CHILD %s\n", edge.Parent, edge.Child)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

// writeScript materialises the task command as a companion script the submit
// description executes.
func (e *Exporter) writeScript(dir string, t *ir.Task, env string) (string, error) {
	cmd := t.CommandFor(env)
	if cmd == "" {
		cmd = t.ScriptFor(env)
	}
	if cmd == "" {
		return "", nil
	}

	name := t.ID + ".sh"
	script := "#!/bin/bash\nset -euo pipefail\n\n" + cmd + "\n"
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, []byte(script), 0o755); err != nil {
		return "", wferrors.NewExportError(err.Error(), full)
	}
	return name, nil
}

// submitLines renders the submit description per the resource translation
// matrix. Key order is fixed for byte-stable output.
func submitLines(t *ir.Task, env, scriptPath string) []string {
	var lines []string

	if container, ok := t.Container.GetWithDefault(env); ok {
		lines = append(lines, "universe = docker")
		lines = append(lines, fmt.Sprintf("docker_image = %s", strings.TrimPrefix(container, "docker://")))
	} else {
		lines = append(lines, "universe = vanilla")
	}

	if scriptPath != "" {
		lines = append(lines, fmt.Sprintf("executable = %s", scriptPath))
	}

	if cpu, ok := t.CPU.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("request_cpus = %d", cpu))
	}
	if mem, ok := t.MemMB.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("request_memory = %dMB", mem))
	}
	if disk, ok := t.DiskMB.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("request_disk = %dMB", disk))
	}
	if gpus, ok := t.GPU.GetWithDefault(env); ok && gpus > 0 {
		lines = append(lines, fmt.Sprintf("request_gpus = %d", gpus))
		if gpuMem, ok := t.GPUMemMB.GetWithDefault(env); ok {
			lines = append(lines, fmt.Sprintf("gpus_minimum_memory = %d", gpuMem))
		}
		if capability, ok := t.GPUCapability.GetWithDefault(env); ok {
			lines = append(lines, fmt.Sprintf("gpus_minimum_capability = %s", capability))
		}
	}

	if vars, ok := t.EnvVars.GetWithDefault(env); ok && len(vars) > 0 {
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, vars[k]))
		}
		lines = append(lines, fmt.Sprintf("environment = \"%s\"", strings.Join(pairs, " ")))
	}

	if dir, ok := t.Workdir.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("initialdir = %s", dir))
	}
	if logPath, ok := t.LogConfig.GetWithDefault(env); ok {
		lines = append(lines, fmt.Sprintf("log = %s", logPath))
	}

	if in := transferList(t.Inputs); in != "" {
		lines = append(lines, "should_transfer_files = YES")
		lines = append(lines, fmt.Sprintf("transfer_input_files = %s", in))
	}
	if out := transferList(t.Outputs); out != "" {
		lines = append(lines, fmt.Sprintf("transfer_output_files = %s", out))
	}

	attrs := make([]string, 0, len(t.ExtraAttributes))
	for k := range t.ExtraAttributes {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)
	for _, k := range attrs {
		v := t.ExtraAttributes[k]
		if s, ok := v.AsString(); ok {
			lines = append(lines, fmt.Sprintf("+%s = \"%s\"", k, s))
		} else {
			raw, _ := v.MarshalJSON()
			lines = append(lines, fmt.Sprintf("+%s = %s", k, string(raw)))
		}
	}

	return lines
}

// transferList renders the comma-separated transfer list. Modes auto and
// always transfer; shared and never are omitted.
func transferList(params []ir.ParameterSpec) string {
	var files []string
	for _, p := range params {
		switch p.TransferMode {
		case ir.TransferAuto, ir.TransferAlways, "":
			files = append(files, p.ID)
		}
	}
	return strings.Join(files, ",")
}
