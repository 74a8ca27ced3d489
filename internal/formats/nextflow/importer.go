// Package nextflow imports and exports channel-based dataflow workflows:
// process blocks wired through channels in a workflow block.
package nextflow

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

// Importer parses .nf scripts.
type Importer struct {
	opts formats.ImporterOptions
	log  interface {
		Debug(msg any, keyvals ...any)
		Warn(msg any, keyvals ...any)
	}
}

// NewImporter creates a Nextflow importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts, log: output.StageLogger("nextflow")}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatNextflow
}

var (
	processRe  = regexp.MustCompile(`(?m)^\s*process\s+(\w+)\s*\{`)
	workflowRe = regexp.MustCompile(`(?m)^\s*workflow\s*(\w*)\s*\{`)
	// assignRe matches "ch = proc(args)" invocations inside workflow blocks.
	assignRe = regexp.MustCompile(`^\s*(?:def\s+)?(\w+)\s*=\s*(\w+)\s*\((.*)\)\s*$`)
	// callRe matches bare "proc(args)" invocations.
	callRe     = regexp.MustCompile(`^\s*(\w+)\s*\((.*)\)\s*$`)
	directiveRe = regexp.MustCompile(`^\s*(cpus|memory|disk|time|container|conda|maxRetries|errorStrategy|publishDir|label|tag|accelerator)\s+(.+)$`)
)

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}
	src := string(data)

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	w := ir.NewWorkflow(name, "1.0")
	env := formats.FormatNextflow.DefaultEnvironment()

	for _, loc := range processRe.FindAllStringSubmatchIndex(src, -1) {
		procName := src[loc[2]:loc[3]]
		body, err := braceBlock(src, loc[1]-1)
		if err != nil {
			return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("process %s: %v", procName, err))
		}
		task, err := i.buildTask(procName, body, env)
		if err != nil {
			return nil, err
		}
		if err := w.AddTask(task); err != nil {
			return nil, err
		}
	}

	if loc := workflowRe.FindStringSubmatchIndex(src); loc != nil {
		body, err := braceBlock(src, loc[1]-1)
		if err != nil {
			return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("workflow block: %v", err))
		}
		if err := i.wireChannels(w, body); err != nil {
			return nil, err
		}
	}

	i.log.Debug("parsed nextflow", "path", path, "processes", len(w.Tasks), "edges", len(w.Edges))
	return w, nil
}

// braceBlock returns the contents of the brace block opening at src[open].
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

// buildTask parses one process body.
func (i *Importer) buildTask(name, body, env string) (*ir.Task, error) {
	t := ir.NewTask(name)

	section := ""
	lines := strings.Split(body, "\n")
	for n := 0; n < len(lines); n++ {
		line := strings.TrimSpace(lines[n])
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		switch line {
		case "input:", "output:", "script:", "shell:", "exec:", "when:":
			section = strings.TrimSuffix(line, ":")
			continue
		}

		if section == "" || section == "directives" {
			if m := directiveRe.FindStringSubmatch(line); m != nil {
				i.applyDirective(t, env, m[1], strings.TrimSpace(m[2]))
				continue
			}
		}

		switch section {
		case "input":
			if p, ok := parseIOLine(line, true); ok {
				t.Inputs = append(t.Inputs, p)
			}
		case "output":
			if p, ok := parseIOLine(line, false); ok {
				t.Outputs = append(t.Outputs, p)
			}
		case "when":
			if t.When == "" {
				t.When = line
			}
		case "script", "shell":
			if strings.HasPrefix(line, `"""`) || strings.HasPrefix(line, "'''") {
				quote := line[:3]
				var block []string
				if rest := strings.TrimPrefix(line, quote); rest != "" && !strings.HasSuffix(rest, quote) {
					block = append(block, rest)
				}
				for n++; n < len(lines); n++ {
					if idx := strings.Index(lines[n], quote); idx >= 0 {
						if head := strings.TrimSpace(lines[n][:idx]); head != "" {
							block = append(block, head)
						}
						break
					}
					block = append(block, strings.TrimSpace(lines[n]))
				}
				t.Command = ir.NewEnvValue(strings.TrimSpace(strings.Join(block, "\n")))
			} else if t.Command.IsEmpty() && line != "" {
				t.Command = ir.NewEnvValue(strings.Trim(line, `"'`))
			}
		}
	}
	return t, nil
}

// applyDirective maps process directives onto IR fields.
func (i *Importer) applyDirective(t *ir.Task, env, key, value string) {
	unquoted := strings.Trim(value, `"'`)
	switch key {
	case "cpus":
		if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
			t.CPU = ir.NewEnvValue(n)
		}
	case "memory":
		if mb, err := formats.ParseMemoryMB(unquoted); err == nil {
			t.MemMB = ir.NewEnvValue(mb)
		}
	case "disk":
		if mb, err := formats.ParseMemoryMB(unquoted); err == nil {
			t.DiskMB = ir.NewEnvValue(mb)
		}
	case "time":
		if secs, err := formats.ParseTimeSeconds(unquoted); err == nil {
			t.TimeS = ir.NewEnvValue(secs)
		}
	case "container":
		t.Container = ir.NewEnvValue(normaliseImage(unquoted))
	case "conda":
		t.Conda = ir.NewEnvValue(unquoted)
	case "maxRetries":
		if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
			t.RetryCount = ir.NewEnvValue(n)
		}
	case "errorStrategy":
		if unquoted == "retry" {
			t.RetryPolicy = ir.NewEnvValue(ir.RetryLinear)
		}
		if t.Meta == nil {
			t.Meta = map[string]ir.Value{}
		}
		t.Meta["error_strategy"] = ir.String(unquoted)
	case "publishDir":
		if t.Meta == nil {
			t.Meta = map[string]ir.Value{}
		}
		t.Meta["publish_dir"] = ir.String(strings.Trim(strings.SplitN(unquoted, ",", 2)[0], `"' `))
	case "accelerator":
		if n, err := strconv.ParseInt(strings.Fields(unquoted)[0], 10, 64); err == nil {
			t.GPU = ir.NewEnvValue(n)
		}
	case "label", "tag":
		t.Intent = append(t.Intent, unquoted)
	}
}

// parseIOLine parses "path 'x.bam'" / "val sample" / "tuple val(s), path(f)"
// declarations.
var ioRefRe = regexp.MustCompile(`(path|file|val)\s*[\(\s]\s*['"]?([^'")\s,]+)['"]?\)?`)

func parseIOLine(line string, isInput bool) (ir.ParameterSpec, bool) {
	m := ioRefRe.FindStringSubmatch(line)
	if m == nil {
		return ir.ParameterSpec{}, false
	}
	p := ir.ParameterSpec{ID: m[2], Type: ir.TypeString}
	if m[1] == "path" || m[1] == "file" {
		p.Type = ir.TypeFile
		if isInput {
			p.TransferMode = ir.TransferAuto
		}
	}
	return p, true
}

// wireChannels connects processes through channel variables: an assignment
// "ch = proc1(...)" feeding "proc2(ch)" yields an edge proc1 → proc2. A
// process result referenced as "proc1.out" works the same way.
func (i *Importer) wireChannels(w *ir.Workflow, body string) error {
	producerOf := map[string]string{}

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		var callee, args, assigned string
		if m := assignRe.FindStringSubmatch(line); m != nil {
			assigned, callee, args = m[1], m[2], m[3]
		} else if m := callRe.FindStringSubmatch(line); m != nil {
			callee, args = m[1], m[2]
		} else {
			continue
		}

		if _, ok := w.Task(callee); !ok {
			continue
		}

		for _, arg := range strings.Split(args, ",") {
			arg = strings.TrimSpace(arg)
			// "proc.out" references name the producer directly.
			if dot := strings.Index(arg, ".out"); dot > 0 {
				parent := arg[:dot]
				if _, ok := w.Task(parent); ok {
					if err := w.AddEdge(parent, callee); err != nil {
						return wferrors.Wrap(wferrors.ErrReference, err.Error())
					}
					continue
				}
			}
			if parent, ok := producerOf[arg]; ok && parent != callee {
				if err := w.AddEdge(parent, callee); err != nil {
					return wferrors.Wrap(wferrors.ErrReference, err.Error())
				}
			}
		}

		if assigned != "" {
			producerOf[assigned] = callee
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
