package cwl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/csmcal/wf2wf/internal/ir"
)

// toolToTask converts a CommandLineTool document into an IR task.
func toolToTask(id string, tool map[string]any, env string) *ir.Task {
	task := ir.NewTask(id)
	task.Label = str(tool["label"])
	task.Doc = str(tool["doc"])

	task.Inputs = parseParams(tool["inputs"], true)
	task.Outputs = parseParams(tool["outputs"], false)
	task.Requirements = parseRequirements(tool["requirements"])
	task.Hints = parseRequirements(tool["hints"])

	if cmd := commandString(tool); cmd != "" {
		task.Command = ir.NewEnvValue(cmd)
	}
	applyResourceRequirements(task, env)

	return task
}

// commandString joins baseCommand and arguments. Expression arguments are
// captured verbatim, never evaluated.
func commandString(tool map[string]any) string {
	var parts []string
	switch bc := tool["baseCommand"].(type) {
	case string:
		parts = append(parts, bc)
	case []any:
		for _, e := range bc {
			parts = append(parts, str(e))
		}
	}
	if args, ok := tool["arguments"].([]any); ok {
		for _, a := range args {
			switch arg := a.(type) {
			case string:
				parts = append(parts, arg)
			case map[string]any:
				if v := str(arg["valueFrom"]); v != "" {
					parts = append(parts, v)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// parseParams accepts both the map and list forms of inputs/outputs.
func parseParams(block any, isInput bool) []ir.ParameterSpec {
	var params []ir.ParameterSpec

	appendParam := func(id string, body any) {
		p := ir.ParameterSpec{ID: id, Type: ir.TypeString}
		switch spec := body.(type) {
		case string:
			p.Type = convertType(spec)
		case map[string]any:
			p.Type = convertType(spec["type"])
			p.Label = str(spec["label"])
			p.Doc = str(spec["doc"])
			p.Format = str(spec["format"])
			p.ValueFrom = str(spec["valueFrom"])
			if def, ok := spec["default"]; ok {
				v := ir.FromGo(def)
				p.Default = &v
			}
			switch sf := spec["secondaryFiles"].(type) {
			case string:
				p.SecondaryFiles = []string{sf}
			case []any:
				for _, e := range sf {
					switch entry := e.(type) {
					case string:
						p.SecondaryFiles = append(p.SecondaryFiles, entry)
					case map[string]any:
						if pat := str(entry["pattern"]); pat != "" {
							p.SecondaryFiles = append(p.SecondaryFiles, pat)
						}
					}
				}
			}
		}
		if isInput && p.IsFileType() {
			p.TransferMode = ir.TransferAuto
		}
		params = append(params, p)
	}

	switch block := block.(type) {
	case map[string]any:
		ids := make([]string, 0, len(block))
		for id := range block {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			appendParam(id, block[id])
		}
	case []any:
		for _, item := range block {
			if m, ok := item.(map[string]any); ok {
				appendParam(strings.TrimPrefix(str(m["id"]), "#"), m)
			}
		}
	}
	return params
}

// convertType maps a CWL type expression onto the IR type string. Union
// types with null collapse to their non-null member; richer unions keep the
// pipe spelling.
func convertType(t any) string {
	switch tt := t.(type) {
	case string:
		return strings.TrimSuffix(tt, "?")
	case []any:
		var members []string
		for _, m := range tt {
			s := convertType(m)
			if s == "null" {
				continue
			}
			members = append(members, s)
		}
		if len(members) == 1 {
			return members[0]
		}
		return strings.Join(members, "|")
	case map[string]any:
		switch str(tt["type"]) {
		case "array":
			return fmt.Sprintf("array<%s>", convertType(tt["items"]))
		case "record":
			return "record"
		case "enum":
			return "enum"
		}
	}
	return ir.TypeString
}

// parseRequirements accepts both the list form ([{class: ...}]) and the map
// form ({DockerRequirement: {...}}).
func parseRequirements(block any) []ir.RequirementSpec {
	var reqs []ir.RequirementSpec

	add := func(class string, body any) {
		spec := ir.RequirementSpec{ClassName: class, Data: map[string]ir.Value{}}
		if m, ok := body.(map[string]any); ok {
			for k, v := range m {
				if k == "class" {
					continue
				}
				spec.Data[k] = ir.FromGo(v)
			}
		}
		reqs = append(reqs, spec)
	}

	switch block := block.(type) {
	case []any:
		for _, item := range block {
			if m, ok := item.(map[string]any); ok {
				add(str(m["class"]), m)
			}
		}
	case map[string]any:
		classes := make([]string, 0, len(block))
		for class := range block {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			add(class, block[class])
		}
	}
	return reqs
}

// applyResourceRequirements projects Docker and Resource requirements onto
// the task's typed fields. CWL ram/tmpdir sizes are mebibytes; the IR keeps
// them as MB.
func applyResourceRequirements(t *ir.Task, env string) {
	for _, req := range append(append([]ir.RequirementSpec{}, t.Requirements...), t.Hints...) {
		switch req.ClassName {
		case ir.ReqDocker:
			if pull, ok := req.Data["dockerPull"].AsString(); ok && t.Container.IsEmpty() {
				t.Container = ir.NewEnvValue("docker://"+strings.TrimPrefix(pull, "docker://"))
			}
		case ir.ReqResource:
			if v, ok := req.Data["coresMin"].AsInt(); ok && t.CPU.IsEmpty() {
				t.CPU = ir.NewEnvValue(v)
			}
			if v, ok := req.Data["ramMin"].AsInt(); ok && t.MemMB.IsEmpty() {
				t.MemMB = ir.NewEnvValue(v)
			}
			if v, ok := req.Data["tmpdirMin"].AsInt(); ok && t.DiskMB.IsEmpty() {
				t.DiskMB = ir.NewEnvValue(v)
			}
		case ir.ReqNetworkAccess:
			if v, ok := req.Data["networkAccess"].AsBool(); ok {
				t.NetworkAccess = ir.NewEnvValue(v)
			}
		}
	}
}
