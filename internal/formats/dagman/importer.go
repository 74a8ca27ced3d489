// Package dagman imports and exports distributed-job DAG workflows: a .dag
// file naming jobs plus submit descriptions, either as external .sub files
// or inline blocks.
package dagman

import (
	"bufio"
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

// Importer parses .dag files and their submit descriptions.
type Importer struct {
	opts formats.ImporterOptions
	log  interface {
		Debug(msg any, keyvals ...any)
		Warn(msg any, keyvals ...any)
	}
}

// NewImporter creates a DAGMan importer.
func NewImporter(opts formats.ImporterOptions) *Importer {
	return &Importer{opts: opts, log: output.StageLogger("dagman")}
}

// SourceFormat implements formats.Importer.
func (i *Importer) SourceFormat() formats.Format {
	return formats.FormatDAGMan
}

var (
	jobRe    = regexp.MustCompile(`^JOB\s+(\S+)\s+(\S+)\s*$`)
	jobInlRe = regexp.MustCompile(`^JOB\s+(\S+)\s+\{\s*$`)
	parentRe = regexp.MustCompile(`^PARENT\s+(.+?)\s+CHILD\s+(.+)$`)
	retryRe  = regexp.MustCompile(`^RETRY\s+(\S+)\s+(\d+)`)
	prioRe   = regexp.MustCompile(`^PRIORITY\s+(\S+)\s+(-?\d+)`)
	varsRe   = regexp.MustCompile(`^VARS\s+(\S+)\s+(.+)$`)
	varKVRe  = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
)

// ParseSource implements formats.Importer.
func (i *Importer) ParseSource(ctx context.Context, path string) (*ir.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	w := ir.NewWorkflow(name, "1.0")
	env := formats.FormatDAGMan.DefaultEnvironment()

	type pendingEdge struct{ parents, children []string }
	var edges []pendingEdge

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	for n := 0; n < len(lines); n++ {
		line := strings.TrimSpace(lines[n])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := jobInlRe.FindStringSubmatch(line); m != nil {
			// Inline form: submit description inside braces.
			var body []string
			for n++; n < len(lines); n++ {
				if strings.TrimSpace(lines[n]) == "}" {
					break
				}
				body = append(body, lines[n])
			}
			task := ir.NewTask(m[1])
			applySubmit(task, parseSubmit(strings.Join(body, "\n")), env)
			if err := w.AddTask(task); err != nil {
				return nil, err
			}
			continue
		}

		if m := jobRe.FindStringSubmatch(line); m != nil {
			task := ir.NewTask(m[1])
			subPath := m[2]
			if !filepath.IsAbs(subPath) {
				subPath = filepath.Join(filepath.Dir(path), subPath)
			}
			subData, err := os.ReadFile(subPath)
			if err != nil {
				i.log.Warn("submit description unreadable", "job", m[1], "path", subPath, "error", err)
			} else {
				applySubmit(task, parseSubmit(string(subData)), env)
			}
			if err := w.AddTask(task); err != nil {
				return nil, err
			}
			continue
		}

		if m := parentRe.FindStringSubmatch(line); m != nil {
			edges = append(edges, pendingEdge{
				parents:  strings.Fields(m[1]),
				children: strings.Fields(m[2]),
			})
			continue
		}

		if m := retryRe.FindStringSubmatch(line); m != nil {
			if t, ok := w.Task(m[1]); ok {
				count, _ := strconv.ParseInt(m[2], 10, 64)
				t.RetryCount = ir.NewEnvValue(count)
			}
			continue
		}

		if m := prioRe.FindStringSubmatch(line); m != nil {
			if t, ok := w.Task(m[1]); ok {
				prio, _ := strconv.ParseInt(m[2], 10, 64)
				t.Priority = ir.NewEnvValue(prio)
			}
			continue
		}

		if m := varsRe.FindStringSubmatch(line); m != nil {
			if t, ok := w.Task(m[1]); ok {
				if t.Params == nil {
					t.Params = map[string]ir.Value{}
				}
				for _, kv := range varKVRe.FindAllStringSubmatch(m[2], -1) {
					t.Params[kv[1]] = ir.String(kv[2])
				}
			}
			continue
		}
	}

	for _, pe := range edges {
		for _, p := range pe.parents {
			for _, c := range pe.children {
				if err := w.AddEdge(p, c); err != nil {
					return nil, wferrors.Wrap(wferrors.ErrReference, err.Error())
				}
			}
		}
	}

	i.log.Debug("parsed dag", "path", path, "jobs", len(w.Tasks), "edges", len(w.Edges))
	return w, nil
}

// parseSubmit parses a submit description into key/value pairs, keeping
// custom +Attr ClassAds with their prefix.
func parseSubmit(body string) map[string]string {
	kv := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.EqualFold(line, "queue") || strings.HasPrefix(strings.ToLower(line), "queue ") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if !strings.HasPrefix(key, "+") {
			key = strings.ToLower(key)
		}
		kv[key] = strings.Trim(value, `"`)
	}
	return kv
}

// applySubmit maps submit description keys onto the task per the resource
// translation matrix.
func applySubmit(t *ir.Task, kv map[string]string, env string) {
	cmd := kv["executable"]
	if args := kv["arguments"]; args != "" {
		cmd = strings.TrimSpace(cmd + " " + args)
	}
	if cmd != "" {
		t.Command = ir.NewEnvValue(cmd)
	}

	if v, ok := kv["request_cpus"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.CPU = ir.NewEnvValue(n)
		}
	}
	if v, ok := kv["request_memory"]; ok {
		if mb, err := formats.ParseMemoryMB(v); err == nil {
			t.MemMB = ir.NewEnvValue(mb)
		}
	}
	if v, ok := kv["request_disk"]; ok {
		if mb, err := formats.ParseMemoryMB(v); err == nil {
			t.DiskMB = ir.NewEnvValue(mb)
		}
	}
	if v, ok := kv["request_gpus"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.GPU = ir.NewEnvValue(n)
		}
	}
	if v, ok := kv["gpus_minimum_memory"]; ok {
		if mb, err := formats.ParseMemoryMB(v); err == nil {
			t.GPUMemMB = ir.NewEnvValue(mb)
		}
	}
	if v, ok := kv["gpus_minimum_capability"]; ok {
		t.GPUCapability = ir.NewEnvValue(v)
	}

	universe := strings.ToLower(kv["universe"])
	image := kv["docker_image"]
	if image == "" {
		image = kv["container_image"]
	}
	if image != "" {
		if universe == "docker" || universe == "container" || universe == "" {
			t.Container = ir.NewEnvValue(normaliseImage(image))
		}
	}

	if envStr, ok := kv["environment"]; ok {
		vars := map[string]string{}
		for _, pair := range strings.Fields(envStr) {
			if eq := strings.Index(pair, "="); eq > 0 {
				vars[pair[:eq]] = strings.Trim(pair[eq+1:], `"'`)
			}
		}
		if len(vars) > 0 {
			t.EnvVars = ir.NewEnvValue(vars)
		}
	}

	if dir, ok := kv["initialdir"]; ok {
		t.Workdir = ir.NewEnvValue(dir)
	}
	if logPath, ok := kv["log"]; ok {
		t.LogConfig = ir.NewEnvValue(logPath)
	}

	applyTransferList(t, kv["transfer_input_files"], true)
	applyTransferList(t, kv["transfer_output_files"], false)

	for key, value := range kv {
		if strings.HasPrefix(key, "+") {
			if t.ExtraAttributes == nil {
				t.ExtraAttributes = map[string]ir.Value{}
			}
			t.ExtraAttributes[strings.TrimPrefix(key, "+")] = ir.String(value)
		}
	}
}

// applyTransferList populates parameters from explicit transfer lists; a
// listed file always transfers.
func applyTransferList(t *ir.Task, list string, input bool) {
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		p := ir.ParameterSpec{ID: f, Type: ir.TypeFile, TransferMode: ir.TransferAlways}
		if input {
			t.Inputs = append(t.Inputs, p)
		} else {
			t.Outputs = append(t.Outputs, p)
		}
	}
}

// normaliseImage gives bare registry references the docker:// scheme the IR
// uses throughout.
func normaliseImage(image string) string {
	if strings.Contains(image, "://") {
		return image
	}
	return "docker://" + image
}
