package cwl

import (
	"os"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// defaultCWLVersion tags emitted documents when the IR carries none.
const defaultCWLVersion = "v1.2"

// Exporter emits a $graph of one Workflow plus one CommandLineTool per task.
// A workflow without tasks collapses to a single empty Workflow document.
type Exporter struct {
	opts formats.ExporterOptions
}

// NewExporter creates a CWL exporter.
func NewExporter(opts formats.ExporterOptions) *Exporter {
	return &Exporter{opts: opts}
}

// TargetFormat implements formats.Exporter.
func (e *Exporter) TargetFormat() formats.Format {
	return formats.FormatCWL
}

func (e *Exporter) env() string {
	if e.opts.TargetEnvironment != "" {
		return e.opts.TargetEnvironment
	}
	return formats.FormatCWL.DefaultEnvironment()
}

// DetectLosses implements formats.Exporter. CWL has no job priority, no
// native retry count (a hint carries it), only coarse GPU hints, and no
// scheduler ClassAds.
func (e *Exporter) DetectLosses(w *ir.Workflow, reg *loss.Registry) {
	env := e.env()
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]

		if prio, ok := t.Priority.GetWithDefault(env); ok {
			reg.RecordLost(ir.TaskPointer(id, "priority"), "priority",
				ir.Int(prio),
				"job priority has no CWL equivalent",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
		if retries, ok := t.RetryCount.GetWithDefault(env); ok {
			reg.Record(ir.LossEntry{
				JSONPointer: ir.TaskPointer(id, "retry_count"),
				Field:       "retry_count",
				LostValue:   ir.Int(retries),
				Reason:      "retry count carried as a non-standard hint",
				Category:    ir.CategoryErrorHandling,
				Severity:    ir.SeverityInfo,
				Status:      ir.StatusAdapted,
				Origin:      ir.OriginWf2wf,
				AdaptationDetails: map[string]ir.Value{
					"hint_class": ir.String("wf2wf:Retry"),
				},
			})
		}
		if gpus, ok := t.GPU.GetWithDefault(env); ok && gpus > 0 {
			reg.RecordLost(ir.TaskPointer(id, "gpu"), "gpu",
				loss.EnvLostValue(t.GPU),
				"GPU specifics exceed CWL's coarse resource hints",
				ir.CategoryResource, ir.SeverityWarn)
		}
		if capability, ok := t.GPUCapability.GetWithDefault(env); ok {
			reg.RecordLost(ir.TaskPointer(id, "gpu_capability"), "gpu_capability",
				ir.String(capability),
				"GPU capability has no CWL equivalent",
				ir.CategoryResource, ir.SeverityWarn)
		}
		for attr, value := range t.ExtraAttributes {
			reg.RecordLost(ir.TaskPointer(id, "extra_attributes", attr), attr,
				value,
				"scheduler attribute has no CWL equivalent",
				ir.CategoryScheduling, ir.SeverityWarn)
		}
	}
}

// GenerateOutput implements formats.Exporter.
func (e *Exporter) GenerateOutput(w *ir.Workflow, path string) error {
	env := e.env()

	wfDoc := map[string]any{
		"class":   "Workflow",
		"id":      "#main",
		"inputs":  e.workflowInputs(w),
		"outputs": e.workflowOutputs(w),
		"steps":   e.steps(w),
	}
	if w.Label != "" {
		wfDoc["label"] = w.Label
	}
	if w.Doc != "" {
		wfDoc["doc"] = w.Doc
	}

	cwlVersion := w.CWLVersion
	if cwlVersion == "" {
		cwlVersion = defaultCWLVersion
	}

	var doc map[string]any
	if len(w.Tasks) == 0 {
		doc = wfDoc
		doc["cwlVersion"] = cwlVersion
	} else {
		graph := []any{wfDoc}
		order, ok := w.TopologicalOrder()
		if !ok {
			return wferrors.Wrap(wferrors.ErrCycle, "task graph is cyclic")
		}
		for _, id := range order {
			graph = append(graph, e.tool(w.Tasks[id], env))
		}
		doc = map[string]any{
			"cwlVersion": cwlVersion,
			"$graph":     graph,
		}
	}

	data, err := sigsyaml.Marshal(doc)
	if err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wferrors.NewExportError(err.Error(), path)
	}
	return nil
}

func (e *Exporter) workflowInputs(w *ir.Workflow) map[string]any {
	inputs := map[string]any{}
	for _, p := range w.Inputs {
		inputs[p.ID] = paramDoc(p)
	}
	// Task inputs not produced by another task surface as workflow inputs.
	producers := producerIndex(w)
	for _, id := range w.TaskOrder() {
		for _, p := range w.Tasks[id].Inputs {
			if _, produced := producers[p.ID]; produced {
				continue
			}
			if _, exists := inputs[p.ID]; exists {
				continue
			}
			inputs[p.ID] = paramDoc(p)
		}
	}
	return inputs
}

func (e *Exporter) workflowOutputs(w *ir.Workflow) map[string]any {
	outputs := map[string]any{}
	for _, p := range w.Outputs {
		doc := paramDoc(p)
		if src, ok := outputSource(w, p.ID); ok {
			doc["outputSource"] = src
		}
		outputs[p.ID] = doc
	}
	return outputs
}

func (e *Exporter) steps(w *ir.Workflow) map[string]any {
	steps := map[string]any{}
	producers := producerIndex(w)

	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		in := map[string]any{}
		for _, p := range t.Inputs {
			if producer, ok := producers[p.ID]; ok && producer != id {
				in[sanitise(p.ID)] = map[string]any{"source": producer + "/" + sanitise(p.ID)}
			} else {
				in[sanitise(p.ID)] = map[string]any{"source": p.ID}
			}
		}

		out := make([]any, 0, len(t.Outputs))
		for _, p := range t.Outputs {
			out = append(out, sanitise(p.ID))
		}

		step := map[string]any{
			"run": "#" + id + "_tool",
			"in":  in,
			"out": out,
		}
		if t.Scatter != nil {
			if len(t.Scatter.Scatter) == 1 {
				step["scatter"] = t.Scatter.Scatter[0]
			} else {
				step["scatter"] = t.Scatter.Scatter
			}
			step["scatterMethod"] = t.Scatter.Method
		}
		if t.When != "" {
			step["when"] = t.When
		}
		steps[id] = step
	}
	return steps
}

// tool renders one task as a CommandLineTool process.
func (e *Exporter) tool(t *ir.Task, env string) map[string]any {
	inputs := map[string]any{}
	for _, p := range t.Inputs {
		inputs[sanitise(p.ID)] = paramDoc(p)
	}
	outputs := map[string]any{}
	for _, p := range t.Outputs {
		doc := paramDoc(p)
		if p.IsFileType() {
			doc["outputBinding"] = map[string]any{"glob": p.ID}
		}
		outputs[sanitise(p.ID)] = doc
	}

	tool := map[string]any{
		"class":   "CommandLineTool",
		"id":      "#" + t.ID + "_tool",
		"inputs":  inputs,
		"outputs": outputs,
	}
	if t.Label != "" {
		tool["label"] = t.Label
	}
	if t.Doc != "" {
		tool["doc"] = t.Doc
	}

	if cmd := t.CommandFor(env); cmd != "" {
		tool["baseCommand"] = []any{"bash", "-c"}
		tool["arguments"] = []any{cmd}
	} else if script := t.ScriptFor(env); script != "" {
		tool["baseCommand"] = []any{"bash", script}
	}

	var reqs []any
	if container, ok := t.Container.GetWithDefault(env); ok {
		reqs = append(reqs, map[string]any{
			"class":      "DockerRequirement",
			"dockerPull": strings.TrimPrefix(container, "docker://"),
		})
	}
	resReq := map[string]any{"class": "ResourceRequirement"}
	hasRes := false
	if cpu, ok := t.CPU.GetWithDefault(env); ok {
		resReq["coresMin"] = cpu
		hasRes = true
	}
	if mem, ok := t.MemMB.GetWithDefault(env); ok {
		resReq["ramMin"] = mem
		hasRes = true
	}
	if disk, ok := t.DiskMB.GetWithDefault(env); ok {
		resReq["tmpdirMin"] = disk
		hasRes = true
	}
	if hasRes {
		reqs = append(reqs, resReq)
	}
	if network, ok := t.NetworkAccess.GetWithDefault(env); ok {
		reqs = append(reqs, map[string]any{
			"class":         "NetworkAccess",
			"networkAccess": network,
		})
	}
	if len(reqs) > 0 {
		tool["requirements"] = reqs
	}

	if retries, ok := t.RetryCount.GetWithDefault(env); ok {
		tool["hints"] = []any{map[string]any{
			"class": "wf2wf:Retry",
			"count": retries,
		}}
	}

	return tool
}

func paramDoc(p ir.ParameterSpec) map[string]any {
	doc := map[string]any{"type": cwlType(p.Type)}
	if p.Label != "" {
		doc["label"] = p.Label
	}
	if p.Doc != "" {
		doc["doc"] = p.Doc
	}
	if p.Format != "" {
		doc["format"] = p.Format
	}
	if p.Default != nil {
		doc["default"] = p.Default.ToGo()
	}
	if len(p.SecondaryFiles) > 0 {
		sf := make([]any, 0, len(p.SecondaryFiles))
		for _, pattern := range p.SecondaryFiles {
			sf = append(sf, map[string]any{"pattern": pattern})
		}
		doc["secondaryFiles"] = sf
	}
	return doc
}

// cwlType converts an IR type string back to CWL notation.
func cwlType(t string) any {
	if strings.HasPrefix(t, "array<") && strings.HasSuffix(t, ">") {
		return map[string]any{
			"type":  "array",
			"items": strings.TrimSuffix(strings.TrimPrefix(t, "array<"), ">"),
		}
	}
	if strings.Contains(t, "|") {
		members := strings.Split(t, "|")
		out := make([]any, 0, len(members)+1)
		out = append(out, "null")
		for _, m := range members {
			out = append(out, m)
		}
		return out
	}
	if t == "" {
		return ir.TypeString
	}
	return t
}

// sanitise turns file paths used as parameter ids into CWL-safe port names.
func sanitise(id string) string {
	r := strings.NewReplacer("/", "_", ".", "_", " ", "_", "-", "_")
	return strings.Trim(r.Replace(id), "_")
}

func producerIndex(w *ir.Workflow) map[string]string {
	producers := map[string]string{}
	for _, id := range w.TaskOrder() {
		for _, out := range w.Tasks[id].Outputs {
			producers[out.ID] = id
		}
	}
	return producers
}

func outputSource(w *ir.Workflow, paramID string) (string, bool) {
	for _, id := range w.TaskOrder() {
		for _, out := range w.Tasks[id].Outputs {
			if out.ID == paramID {
				return id + "/" + sanitise(paramID), true
			}
		}
	}
	return "", false
}
