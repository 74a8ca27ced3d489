package snakemake

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// Importer parses Snakefiles into the IR. The static parse always succeeds
// on well-formed input; dry-run enrichment is optional and non-fatal.
type Importer struct {
	opts formats.ImporterOptions
	log  interface {
		Debug(msg any, keyvals ...any)
		Warn(msg any, keyvals ...any)
	}
}

// NewImporter creates a Snakemake importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts, log: output.StageLogger("snakemake")}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatSnakemake
}

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	rules, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	w := ir.NewWorkflow(name, "1.0")
	env := formats.FormatSnakemake.DefaultEnvironment()

	// The "all" pseudo-rule declares workflow targets, not a task.
	var allInputs []string
	for _, r := range rules {
		if r.name == "all" && r.directives["shell"] == "" && r.directives["script"] == "" && r.directives["run"] == "" {
			allInputs = quotedStrings(r.directives["input"])
			continue
		}
		task := i.buildTask(r, env)
		if err := w.AddTask(task); err != nil {
			return nil, err
		}
	}

	i.connectEdges(w)

	for _, target := range allInputs {
		w.Outputs = append(w.Outputs, ir.ParameterSpec{
			ID: target, Type: ir.TypeFile, TransferMode: ir.TransferAuto,
		})
	}

	if i.opts.EnableDryRun {
		i.enrichFromDryRun(ctx, path, w)
	}

	i.log.Debug("parsed snakefile", "path", path, "rules", len(w.Tasks), "edges", len(w.Edges))
	return w, nil
}

func (i *Importer) buildTask(r rule, env string) *ir.Task {
	t := ir.NewTask(r.name)

	for _, in := range quotedStrings(r.directives["input"]) {
		t.Inputs = append(t.Inputs, ir.ParameterSpec{
			ID: in, Type: ir.TypeFile, TransferMode: ir.TransferAuto,
		})
	}
	for _, out := range quotedStrings(r.directives["output"]) {
		t.Outputs = append(t.Outputs, ir.ParameterSpec{
			ID: out, Type: ir.TypeFile, TransferMode: ir.TransferAuto,
		})
	}

	if shell := r.directives["shell"]; shell != "" {
		cmd := shell
		if lits := quotedStrings(shell); len(lits) == 1 {
			cmd = lits[0]
		}
		t.Command = ir.NewEnvValue(cmd)
	}
	if script := r.directives["script"]; script != "" {
		if lits := quotedStrings(script); len(lits) == 1 {
			script = lits[0]
		}
		t.Script = ir.NewEnvValue(script)
	}
	if run := r.directives["run"]; run != "" {
		t.Script = ir.NewEnvValue(run)
		t.Meta = map[string]ir.Value{"run_block": ir.Bool(true)}
	}

	if threads, ok := parseIntDirective(r.directives["threads"]); ok {
		t.Threads = ir.NewEnvValue(threads)
		t.CPU = ir.NewEnvValue(threads)
	}
	if prio, ok := parseIntDirective(r.directives["priority"]); ok {
		t.Priority = ir.NewEnvValue(prio)
	}
	if retries, ok := parseIntDirective(r.directives["retries"]); ok {
		t.RetryCount = ir.NewEnvValue(retries)
	}

	for key, value := range keyValues(r.directives["resources"]) {
		i.applyResource(t, env, key, value)
	}

	if conda := r.directives["conda"]; conda != "" {
		if lits := quotedStrings(conda); len(lits) == 1 {
			conda = lits[0]
		}
		t.Conda = ir.NewEnvValue(conda)
	}
	container := r.directives["container"]
	if container == "" {
		container = r.directives["singularity"]
	}
	if container != "" {
		if lits := quotedStrings(container); len(lits) == 1 {
			container = lits[0]
		}
		t.Container = ir.NewEnvValue(container)
	}

	if modules := quotedStrings(r.directives["envmodules"]); len(modules) > 0 {
		t.Modules = ir.NewEnvValue(modules)
	}

	if params := r.directives["params"]; params != "" {
		t.Params = map[string]ir.Value{}
		for k, v := range keyValues(params) {
			t.Params[k] = ir.String(v)
		}
	}

	if logs := quotedStrings(r.directives["log"]); len(logs) > 0 {
		t.LogConfig = ir.NewEnvValue(logs[0])
	}

	return t
}

// applyResource maps a resources directive key onto the IR resource fields.
func (i *Importer) applyResource(t *ir.Task, env, key, value string) {
	switch key {
	case "mem_mb", "disk_mb", "gpu", "gpu_mem_mb", "threads":
		if n, ok := parseIntDirective(value); ok {
			t.SetResourceDefault(key, n)
		}
	case "mem", "memory":
		if mb, err := formats.ParseMemoryMB(value); err == nil {
			t.SetResourceDefault("mem_mb", mb)
		}
	case "disk":
		if mb, err := formats.ParseMemoryMB(value); err == nil {
			t.SetResourceDefault("disk_mb", mb)
		}
	case "runtime":
		// Snakemake runtime is minutes.
		if n, ok := parseIntDirective(value); ok {
			t.SetResourceDefault("time_s", n*60)
		}
	case "gpu_capability":
		t.GPUCapability = ir.NewEnvValue(value)
	default:
		if t.Params == nil {
			t.Params = map[string]ir.Value{}
		}
		t.Params["resource_"+key] = ir.String(value)
	}
}

// connectEdges wires rules whose outputs feed other rules' inputs.
func (i *Importer) connectEdges(w *ir.Workflow) {
	producers := map[string]string{}
	for _, id := range w.TaskOrder() {
		for _, out := range w.Tasks[id].Outputs {
			producers[out.ID] = id
		}
	}
	for _, id := range w.TaskOrder() {
		for _, in := range w.Tasks[id].Inputs {
			if parent, ok := producers[in.ID]; ok && parent != id {
				if err := w.AddEdge(parent, id); err != nil {
					i.log.Warn("skipping dependency", "parent", parent, "child", id, "error", err)
				}
			}
		}
	}
}
