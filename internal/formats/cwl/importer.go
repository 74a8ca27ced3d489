// Package cwl imports and exports standards-based CLI workflow descriptions,
// in JSON or YAML, as a single document or a $graph of processes.
package cwl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// Importer parses CWL documents.
type Importer struct {
	opts formats.ImporterOptions
	log  interface {
		Debug(msg any, keyvals ...any)
		Warn(msg any, keyvals ...any)
	}
}

// NewImporter creates a CWL importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts, log: output.StageLogger("cwl")}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatCWL
}

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	w := ir.NewWorkflow(name, "1.0")
	env := formats.FormatCWL.DefaultEnvironment()

	graph := map[string]map[string]any{}
	var wfDoc map[string]any

	if rawGraph, ok := doc["$graph"].([]any); ok {
		for _, item := range rawGraph {
			proc, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := str(proc["id"])
			graph[strings.TrimPrefix(id, "#")] = proc
			if str(proc["class"]) == "Workflow" && wfDoc == nil {
				wfDoc = proc
			}
		}
		if wfDoc == nil {
			return nil, wferrors.Wrap(wferrors.ErrParse, "$graph contains no Workflow process")
		}
	} else {
		switch str(doc["class"]) {
		case "Workflow":
			wfDoc = doc
		case "CommandLineTool", "ExpressionTool":
			// A bare tool becomes a single-task workflow.
			return i.importBareTool(w, doc, env)
		default:
			return nil, wferrors.Wrap(wferrors.ErrParse,
				fmt.Sprintf("unsupported document class %q", str(doc["class"])))
		}
	}

	if v := str(doc["cwlVersion"]); v != "" {
		w.CWLVersion = v
	}
	if label := str(wfDoc["label"]); label != "" {
		w.Label = label
	}
	if docStr := str(wfDoc["doc"]); docStr != "" {
		w.Doc = docStr
	}

	w.Inputs = parseParams(wfDoc["inputs"], true)
	w.Outputs = parseParams(wfDoc["outputs"], false)
	w.Requirements = parseRequirements(wfDoc["requirements"])
	w.Hints = parseRequirements(wfDoc["hints"])

	steps, err := normaliseSteps(wfDoc["steps"])
	if err != nil {
		return nil, err
	}

	type stepWiring struct {
		id      string
		sources []string
	}
	var wiring []stepWiring

	for _, step := range steps {
		task, sources, err := i.buildStepTask(step, graph, filepath.Dir(path), env)
		if err != nil {
			return nil, err
		}
		if err := w.AddTask(task); err != nil {
			return nil, err
		}
		wiring = append(wiring, stepWiring{id: task.ID, sources: sources})
	}

	for _, sw := range wiring {
		for _, src := range sw.sources {
			parent := strings.SplitN(src, "/", 2)[0]
			if _, ok := w.Task(parent); ok && parent != sw.id {
				if err := w.AddEdge(parent, sw.id); err != nil {
					return nil, wferrors.Wrap(wferrors.ErrReference, err.Error())
				}
			}
		}
	}

	i.log.Debug("parsed cwl", "path", path, "steps", len(w.Tasks), "edges", len(w.Edges))
	return w, nil
}

func (i *Importer) importBareTool(w *ir.Workflow, doc map[string]any, env string) (*ir.Workflow, error) {
	id := strings.TrimPrefix(str(doc["id"]), "#")
	if id == "" {
		id = w.Name
	}
	task := toolToTask(id, doc, env)
	if err := w.AddTask(task); err != nil {
		return nil, err
	}
	w.Inputs = task.Inputs
	w.Outputs = task.Outputs
	if v := str(doc["cwlVersion"]); v != "" {
		w.CWLVersion = v
	}
	return w, nil
}

// buildStepTask resolves a step's run reference (inline tool, file, or #id)
// and builds the task. It returns the source references for edge wiring.
func (i *Importer) buildStepTask(step map[string]any, graph map[string]map[string]any, baseDir, env string) (*ir.Task, []string, error) {
	id := strings.TrimPrefix(str(step["id"]), "#")
	if id == "" {
		return nil, nil, wferrors.Wrap(wferrors.ErrParse, "step without id")
	}

	var tool map[string]any
	switch run := step["run"].(type) {
	case string:
		if strings.HasPrefix(run, "#") {
			proc, ok := graph[strings.TrimPrefix(run, "#")]
			if !ok {
				return nil, nil, wferrors.Wrap(wferrors.ErrReference,
					fmt.Sprintf("step %s: run %s not in $graph", id, run))
			}
			tool = proc
		} else {
			loaded, err := loadDocument(filepath.Join(baseDir, run))
			if err != nil {
				return nil, nil, wferrors.Wrap(wferrors.ErrReference,
					fmt.Sprintf("step %s: loading run file %s: %v", id, run, err))
			}
			tool = loaded
		}
	case map[string]any:
		tool = run
	default:
		return nil, nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("step %s: missing run", id))
	}

	task := toolToTask(id, tool, env)

	// Step-level requirements and hints override the tool's.
	task.Requirements = append(task.Requirements, parseRequirements(step["requirements"])...)
	task.Hints = append(task.Hints, parseRequirements(step["hints"])...)
	override := &ir.Task{Requirements: parseRequirements(step["requirements"]), Hints: parseRequirements(step["hints"])}
	applyResourceRequirements(override, env)
	for name, f := range override.ResourceFields() {
		if *f != nil {
			*task.ResourceFields()[name] = *f
		}
	}
	if override.Container != nil {
		task.Container = override.Container
	}
	if override.NetworkAccess != nil {
		task.NetworkAccess = override.NetworkAccess
	}

	if when := str(step["when"]); when != "" {
		task.When = when
	}

	if scatter := step["scatter"]; scatter != nil {
		spec := &ir.ScatterSpec{Method: ir.ScatterDotProduct}
		switch s := scatter.(type) {
		case string:
			spec.Scatter = []string{s}
		case []any:
			for _, e := range s {
				spec.Scatter = append(spec.Scatter, str(e))
			}
		}
		if m := str(step["scatterMethod"]); m != "" {
			spec.Method = m
		}
		task.Scatter = spec
	}

	sources := collectSources(step["in"])
	return task, sources, nil
}

// collectSources flattens the step's in block into source references.
func collectSources(in any) []string {
	var sources []string
	add := func(v any) {
		switch s := v.(type) {
		case string:
			sources = append(sources, s)
		case []any:
			for _, e := range s {
				if es, ok := e.(string); ok {
					sources = append(sources, es)
				}
			}
		case map[string]any:
			if src, ok := s["source"]; ok {
				switch ss := src.(type) {
				case string:
					sources = append(sources, ss)
				case []any:
					for _, e := range ss {
						if es, ok := e.(string); ok {
							sources = append(sources, es)
						}
					}
				}
			}
		}
	}

	switch block := in.(type) {
	case map[string]any:
		for _, v := range block {
			add(v)
		}
	case []any:
		for _, item := range block {
			if m, ok := item.(map[string]any); ok {
				if src, ok := m["source"]; ok {
					add(src)
				} else {
					add(m)
				}
			}
		}
	}
	return sources
}

// normaliseSteps accepts both the map form (id → step) and the list form
// ([{id: ...}]) and returns steps with their id field set, in a stable order.
func normaliseSteps(block any) ([]map[string]any, error) {
	var steps []map[string]any
	switch b := block.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		ids := make([]string, 0, len(b))
		for id := range b {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			step, ok := b[id].(map[string]any)
			if !ok {
				return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("step %s is not an object", id))
			}
			if str(step["id"]) == "" {
				step["id"] = id
			}
			steps = append(steps, step)
		}
	case []any:
		for _, item := range b {
			step, ok := item.(map[string]any)
			if !ok {
				return nil, wferrors.Wrap(wferrors.ErrParse, "step is not an object")
			}
			steps = append(steps, step)
		}
	default:
		return nil, wferrors.Wrap(wferrors.ErrParse, "steps must be a map or list")
	}
	return steps, nil
}

// loadDocument reads a JSON or YAML CWL document into a generic map.
func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}
	var doc map[string]any
	if err := sigsyaml.Unmarshal(data, &doc); err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("parsing %s: %v", path, err))
	}
	return doc, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
