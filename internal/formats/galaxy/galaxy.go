// Package galaxy imports and exports UI-exported workflows: the .ga JSON
// form with steps indexed by numeric id and connections between them.
package galaxy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
	"github.com/csmcal/wf2wf/internal/output"
)

// Importer parses .ga documents.
type Importer struct {
	opts formats.ImporterOptions
	log  interface {
		Debug(msg any, keyvals ...any)
	}
}

// NewImporter creates a Galaxy importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts, log: output.StageLogger("galaxy")}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatGalaxy
}

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("parsing %s: %v", path, err))
	}

	name, _ := doc["name"].(string)
	if name == "" {
		name = "galaxy_workflow"
	}
	w := ir.NewWorkflow(name, "1.0")
	if ann, ok := doc["annotation"].(string); ok && ann != "" {
		w.Doc = ann
	}
	steps, _ := doc["steps"].(map[string]any)

	// Steps are keyed by stringified numeric ids; process in numeric order.
	keys := make([]string, 0, len(steps))
	for k := range steps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		na, _ := strconv.Atoi(keys[a])
		nb, _ := strconv.Atoi(keys[b])
		return na < nb
	})

	idByStep := map[string]string{}
	type conn struct{ child, parentStep string }
	var conns []conn

	for _, key := range keys {
		step, _ := steps[key].(map[string]any)
		if step == nil {
			continue
		}
		stepType, _ := step["type"].(string)
		label, _ := step["label"].(string)
		stepName, _ := step["name"].(string)

		if stepType == "data_input" || stepType == "data_collection_input" {
			id := label
			if id == "" {
				id = fmt.Sprintf("input_%s", key)
			}
			w.Inputs = append(w.Inputs, ir.ParameterSpec{
				ID: id, Type: ir.TypeFile, Label: stepName, TransferMode: ir.TransferAuto,
			})
			idByStep[key] = ""
			continue
		}

		taskID := taskIDFor(label, stepName, key)
		task := ir.NewTask(taskID)
		task.Label = stepName
		if toolID, ok := step["tool_id"].(string); ok {
			if task.Meta == nil {
				task.Meta = map[string]ir.Value{}
			}
			task.Meta["tool_id"] = ir.String(toolID)
		}
		if toolVersion, ok := step["tool_version"].(string); ok {
			if task.Meta == nil {
				task.Meta = map[string]ir.Value{}
			}
			task.Meta["tool_version"] = ir.String(toolVersion)
		}
		if state, ok := step["tool_state"].(string); ok {
			if task.Params == nil {
				task.Params = map[string]ir.Value{}
			}
			task.Params["tool_state"] = ir.String(state)
		}
		if ann, ok := step["annotation"].(string); ok && ann != "" {
			task.Doc = ann
		}

		if outs, ok := step["outputs"].([]any); ok {
			for _, o := range outs {
				if om, ok := o.(map[string]any); ok {
					outName, _ := om["name"].(string)
					task.Outputs = append(task.Outputs, ir.ParameterSpec{
						ID: outName, Type: ir.TypeFile,
					})
				}
			}
		}

		if ic, ok := step["input_connections"].(map[string]any); ok {
			inNames := make([]string, 0, len(ic))
			for inName := range ic {
				inNames = append(inNames, inName)
			}
			sort.Strings(inNames)
			for _, inName := range inNames {
				task.Inputs = append(task.Inputs, ir.ParameterSpec{
					ID: inName, Type: ir.TypeFile, TransferMode: ir.TransferAuto,
				})
				if cm, ok := ic[inName].(map[string]any); ok {
					if srcID, ok := cm["id"].(float64); ok {
						conns = append(conns, conn{
							child:      taskID,
							parentStep: strconv.Itoa(int(srcID)),
						})
					}
				}
			}
		}

		if err := w.AddTask(task); err != nil {
			return nil, err
		}
		idByStep[key] = taskID
	}

	for _, c := range conns {
		parent := idByStep[c.parentStep]
		if parent == "" {
			continue // connection from a data input, not a task
		}
		if err := w.AddEdge(parent, c.child); err != nil {
			return nil, wferrors.Wrap(wferrors.ErrReference, err.Error())
		}
	}

	i.log.Debug("parsed galaxy workflow", "path", path, "steps", len(w.Tasks), "edges", len(w.Edges))
	return w, nil
}

func taskIDFor(label, name, key string) string {
	base := label
	if base == "" {
		base = name
	}
	if base == "" {
		base = "step"
	}
	base = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(base), " ", "_"))
	return fmt.Sprintf("%s_%s", base, key)
}

// Exporter emits the .ga JSON form. Most execution-model specifics have no
// home there and land in the side-car.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates a Galaxy exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatGalaxy
}

func (e *Exporter) env() string {
	if e.opts.TargetEnvironment != "" {
		return e.opts.TargetEnvironment
	}
	return formats.FormatGalaxy.DefaultEnvironment()
}

// DetectLosses implements formats.Exporter.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {
	env := e.env()
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]

		for _, field := range []string{"cpu", "mem_mb", "disk_mb", "gpu", "gpu_mem_mb", "time_s", "threads"} {
			if v, ok := t.ResourceFor(field, env); ok {
				reg.RecordLost(ir.TaskPointer(id, field), field,
					ir.Int(v),
					"the UI-exported form carries no resource requests",
					ir.CategoryResource, ir.SeverityWarn)
			}
		}
		if container, ok := t.Container.GetWithDefault(env); ok {
			reg.RecordLost(ir.TaskPointer(id, "container"), "container",
				ir.String(container),
				"container selection is a Galaxy deployment concern",
				ir.CategoryEnvironment, ir.SeverityWarn)
		}
		if retries, ok := t.RetryCount.GetWithDefault(env); ok {
			reg.RecordLost(ir.TaskPointer(id, "retry_count"), "retry_count",
				ir.Int(retries),
				"error handling is a Galaxy deployment concern",
				ir.CategoryErrorHandling, ir.SeverityInfo)
		}
		if t.When != "" {
			reg.RecordLost(ir.TaskPointer(id, "when"), "when",
				ir.String(t.When),
				"conditional guards are not expressible in the UI form",
				ir.CategoryAdvanced, ir.SeverityWarn)
		}
	}
}

// GenerateOutput implements formats.Exporter.
func (e *Exporter) GenerateOutput(w *ir.Workflow, path string) error {
	order, ok := w.TopologicalOrder()
	if !ok {
		return wferrors.Wrap(wferrors.ErrCycle, "task graph is cyclic")
	}

	steps := map[string]any{}
	stepOf := map[string]int{}
	next := 0

	// Workflow inputs become data_input steps.
	inputStep := map[string]int{}
	for _, p := range w.Inputs {
		steps[strconv.Itoa(next)] = map[string]any{
			"id":                next,
			"type":              "data_input",
			"name":              "Input dataset",
			"label":             p.ID,
			"annotation":        p.Doc,
			"input_connections": map[string]any{},
			"outputs":           []any{map[string]any{"name": "output", "type": "data"}},
		}
		inputStep[p.ID] = next
		next++
	}

	for _, id := range order {
		stepOf[id] = next
		next++
	}

	producers := map[string]string{}
	for _, id := range order {
		for _, out := range w.Tasks[id].Outputs {
			producers[out.ID] = id
		}
	}

	for _, id := range order {
		t := w.Tasks[id]
		conns := map[string]any{}
		for _, in := range t.Inputs {
			if producer, ok := producers[in.ID]; ok && producer != id {
				conns[in.ID] = map[string]any{
					"id":          stepOf[producer],
					"output_name": in.ID,
				}
			} else if stepID, ok := inputStep[in.ID]; ok {
				conns[in.ID] = map[string]any{
					"id":          stepID,
					"output_name": "output",
				}
			}
		}
		// Edges without a matching file connection still wire the steps.
		for _, parent := range w.Parents(id) {
			found := false
			for _, c := range conns {
				if cm, ok := c.(map[string]any); ok {
					if cid, ok := cm["id"].(int); ok && cid == stepOf[parent] {
						found = true
					}
				}
			}
			if !found {
				conns["input_"+parent] = map[string]any{
					"id":          stepOf[parent],
					"output_name": "output",
				}
			}
		}

		outs := make([]any, 0, len(t.Outputs))
		for _, out := range t.Outputs {
			outs = append(outs, map[string]any{"name": out.ID, "type": "data"})
		}

		toolID := id
		if t.Meta != nil {
			if tid, ok := t.Meta["tool_id"].AsString(); ok {
				toolID = tid
			}
		}
		step := map[string]any{
			"id":                stepOf[id],
			"type":              "tool",
			"name":              labelOr(t.Label, id),
			"label":             id,
			"tool_id":           toolID,
			"annotation":        t.Doc,
			"input_connections": conns,
			"outputs":           outs,
		}
		if t.Params != nil {
			if state, ok := t.Params["tool_state"].AsString(); ok {
				step["tool_state"] = state
			}
		}
		steps[strconv.Itoa(stepOf[id])] = step
	}

	doc := map[string]any{
		"a_galaxy_workflow": "true",
		"format-version":    "0.1",
		"name":              w.Name,
		"annotation":        w.Doc,
		"steps":             steps,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}
