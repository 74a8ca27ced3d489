// Package wdl imports and exports task-based typed workflows: task blocks
// with typed inputs/outputs and runtime sections, called from a workflow
// block that may scatter over arrays.
package wdl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// Importer parses .wdl documents.
type Importer struct {
	opts formats.ImporterOptions
	log  interface {
		Debug(msg any, keyvals ...any)
		Warn(msg any, keyvals ...any)
	}
}

// NewImporter creates a WDL importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts, log: output.StageLogger("wdl")}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatWDL
}

var (
	taskRe     = regexp.MustCompile(`(?m)^\s*task\s+(\w+)\s*\{`)
	workflowRe = regexp.MustCompile(`(?m)^\s*workflow\s+(\w+)\s*\{`)
	callRe     = regexp.MustCompile(`call\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	scatterRe  = regexp.MustCompile(`scatter\s*\(\s*(\w+)\s+in\s+([\w.\[\]]+)\s*\)`)
	declRe     = regexp.MustCompile(`^\s*(Array\[\w+\??\]|\w+\??)\s+(\w+)(?:\s*=\s*(.+))?$`)
	runtimeRe  = regexp.MustCompile(`^\s*(\w+)\s*:\s*(.+)$`)
)

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}
	src := string(data)

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	env := formats.FormatWDL.DefaultEnvironment()

	w := ir.NewWorkflow(name, "1.0")

	for _, loc := range taskRe.FindAllStringSubmatchIndex(src, -1) {
		taskName := src[loc[2]:loc[3]]
		body, err := braceBlock(src, loc[1]-1)
		if err != nil {
			return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("task %s: %v", taskName, err))
		}
		task, err := i.buildTask(taskName, body, env)
		if err != nil {
			return nil, err
		}
		if err := w.AddTask(task); err != nil {
			return nil, err
		}
	}

	if loc := workflowRe.FindStringSubmatchIndex(src); loc != nil {
		w.Name = src[loc[2]:loc[3]]
		body, err := braceBlock(src, loc[1]-1)
		if err != nil {
			return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("workflow block: %v", err))
		}
		if err := i.wireCalls(w, body); err != nil {
			return nil, err
		}
	}

	i.log.Debug("parsed wdl", "path", path, "tasks", len(w.Tasks), "edges", len(w.Edges))
	return w, nil
}

func braceBlock(src string, open int) (string, error) {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return "", fmt.Errorf("expected '{'")
	}
	depth := 0
	for j := open; j < len(src); j++ {
		switch src[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[open+1 : j], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced braces")
}

// buildTask parses one task body: input/output declarations, the command
// block, and the runtime section.
func (i *Importer) buildTask(name, body, env string) (*ir.Task, error) {
	t := ir.NewTask(name)

	// Command block: command <<< ... >>> or command { ... }.
	if cmd, rest := extractCommand(body); cmd != "" {
		t.Command = ir.NewEnvValue(strings.TrimSpace(cmd))
		body = rest
	}

	section := ""
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "input {") || line == "input {":
			section = "input"
			continue
		case strings.HasPrefix(line, "output {") || line == "output {":
			section = "output"
			continue
		case strings.HasPrefix(line, "runtime {") || line == "runtime {":
			section = "runtime"
			continue
		case line == "}":
			section = ""
			continue
		}

		switch section {
		case "input":
			if p, ok := parseDecl(line, true); ok {
				t.Inputs = append(t.Inputs, p)
			}
		case "output":
			if p, ok := parseDecl(line, false); ok {
				t.Outputs = append(t.Outputs, p)
			}
		case "runtime":
			if m := runtimeRe.FindStringSubmatch(line); m != nil {
				i.applyRuntime(t, env, m[1], strings.TrimSpace(m[2]))
			}
		}
	}
	return t, nil
}

// extractCommand pulls out the command block and returns the remaining body.
func extractCommand(body string) (string, string) {
	if start := strings.Index(body, "command <<<"); start >= 0 {
		if end := strings.Index(body[start:], ">>>"); end >= 0 {
			cmd := body[start+len("command <<<") : start+end]
			return cmd, body[:start] + body[start+end+3:]
		}
	}
	if start := strings.Index(body, "command {"); start >= 0 {
		if block, err := braceBlock(body, start+len("command ")); err == nil {
			return block, body[:start] + body[start+len("command {")+len(block)+1:]
		}
	}
	return "", body
}

// parseDecl parses "File reads" / "Int threads = 4" typed declarations.
func parseDecl(line string, isInput bool) (ir.ParameterSpec, bool) {
	m := declRe.FindStringSubmatch(line)
	if m == nil {
		return ir.ParameterSpec{}, false
	}
	p := ir.ParameterSpec{ID: m[2], Type: convertType(m[1])}
	if m[3] != "" {
		v := ir.String(strings.Trim(strings.TrimSpace(m[3]), `"`))
		p.Default = &v
	}
	if isInput && p.IsFileType() {
		p.TransferMode = ir.TransferAuto
	}
	return p, true
}

// convertType maps WDL types onto IR type strings.
func convertType(t string) string {
	t = strings.TrimSuffix(t, "?")
	if strings.HasPrefix(t, "Array[") {
		inner := strings.TrimSuffix(strings.TrimPrefix(t, "Array["), "]")
		return "array<" + convertType(inner) + ">"
	}
	switch t {
	case "File":
		return ir.TypeFile
	case "Directory":
		return ir.TypeDirectory
	case "String":
		return ir.TypeString
	case "Int":
		return ir.TypeInt
	case "Float":
		return ir.TypeFloat
	case "Boolean":
		return ir.TypeBoolean
	}
	return ir.TypeString
}

// applyRuntime maps runtime attributes onto the IR resource fields.
func (i *Importer) applyRuntime(t *ir.Task, env, key, value string) {
	unquoted := strings.Trim(value, `"'`)
	switch key {
	case "cpu":
		if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
			t.CPU = ir.NewEnvValue(n)
		}
	case "memory":
		if mb, err := formats.ParseMemoryMB(unquoted); err == nil {
			t.MemMB = ir.NewEnvValue(mb)
		}
	case "disks":
		// "local-disk 50 SSD" sizes are gigabytes.
		fields := strings.Fields(unquoted)
		if len(fields) >= 2 {
			if gb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				t.DiskMB = ir.NewEnvValue(gb*1000)
			}
		}
	case "docker", "container":
		t.Container = ir.NewEnvValue(normaliseImage(unquoted))
	case "gpuCount":
		if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
			t.GPU = ir.NewEnvValue(n)
		}
	case "gpuType":
		t.GPUCapability = ir.NewEnvValue(unquoted)
	case "maxRetries", "preemptible":
		if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil && key == "maxRetries" {
			t.RetryCount = ir.NewEnvValue(n)
		}
	}
}

// wireCalls builds edges from call statements: a call whose inputs reference
// "other.field" depends on other. Scatter blocks mark their calls.
func (i *Importer) wireCalls(w *ir.Workflow, body string) error {
	lines := strings.Split(body, "\n")
	var scatterVar, scatterSrc string
	depth := 0
	scatterDepth := -1

	for n := 0; n < len(lines); n++ {
		line := strings.TrimSpace(lines[n])

		if m := scatterRe.FindStringSubmatch(line); m != nil {
			scatterVar, scatterSrc = m[1], m[2]
			scatterDepth = depth
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if scatterDepth >= 0 && depth <= scatterDepth {
			scatterVar, scatterSrc = "", ""
			scatterDepth = -1
		}

		m := callRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		callee := m[1]
		if m[2] != "" {
			callee = m[2]
		}
		task, ok := w.Task(callee)
		if !ok {
			return wferrors.Wrap(wferrors.ErrReference, fmt.Sprintf("call of unknown task %s", m[1]))
		}

		if scatterVar != "" {
			task.Scatter = &ir.ScatterSpec{Scatter: []string{scatterSrc}, Method: ir.ScatterDotProduct}
		}

		// Gather the call's input block (may span lines until braces close).
		block := line
		braces := strings.Count(line, "{") - strings.Count(line, "}")
		for braces > 0 && n+1 < len(lines) {
			n++
			block += "\n" + lines[n]
			braces += strings.Count(lines[n], "{") - strings.Count(lines[n], "}")
			depth += strings.Count(lines[n], "{") - strings.Count(lines[n], "}")
		}

		for _, ref := range regexp.MustCompile(`(\w+)\.(\w+)`).FindAllStringSubmatch(block, -1) {
			if _, ok := w.Task(ref[1]); ok && ref[1] != callee {
				if err := w.AddEdge(ref[1], callee); err != nil {
					return wferrors.Wrap(wferrors.ErrReference, err.Error())
				}
			}
		}
	}
	return nil
}

func normaliseImage(image string) string {
	if strings.Contains(image, "://") {
		return image
	}
	return "docker://" + image
}
