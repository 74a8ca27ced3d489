package infer

import (
	"regexp"

	"github.com/csmcal/wf2wf/internal/ir"
)

// resourceRule maps a command pattern to the resources it implies.
// First match wins.
type resourceRule struct {
	pattern *regexp.Regexp
	fields  map[string]int64
}

// resourceRules is ordered from most to least specific. Values are
// conservative profiles for common scientific tools.
var resourceRules = []resourceRule{
	{regexp.MustCompile(`\bsamtools\s+sort\b`), map[string]int64{"mem_mb": 4096, "cpu": 2}},
	{regexp.MustCompile(`\b(bwa|bowtie2?|star|hisat2)\b`), map[string]int64{"mem_mb": 8192, "cpu": 4}},
	{regexp.MustCompile(`\b(gatk|picard)\b`), map[string]int64{"mem_mb": 16384, "cpu": 4}},
	{regexp.MustCompile(`\b(blast[npx]?|diamond)\b`), map[string]int64{"mem_mb": 8192, "cpu": 8}},
	{regexp.MustCompile(`\bsamtools\b`), map[string]int64{"mem_mb": 2048, "cpu": 1}},
	{regexp.MustCompile(`\b(python3?|Rscript)\b`), map[string]int64{"mem_mb": 4096, "cpu": 1}},
}

// minimumProfile is assigned when no rule matches, so every exported task
// carries at least a conservative resource request.
var minimumProfile = map[string]int64{
	"cpu":     1,
	"mem_mb":  2048,
	"disk_mb": 4096,
	"time_s":  3600,
}

// inferResources derives a resource profile for tasks that declare none at
// all. A task with any applicable resource keeps its declaration untouched.
func (e *Engine) inferResources(t *ir.Task, env string, shielded map[string]bool) int {
	if taskHasResources(t, env) {
		return 0
	}

	cmd := t.CommandFor(env)
	if cmd == "" {
		cmd = t.ScriptFor(env)
	}

	profile := minimumProfile
	for _, rule := range resourceRules {
		if cmd != "" && rule.pattern.MatchString(cmd) {
			profile = merged(rule.fields)
			break
		}
	}

	n := 0
	for field, value := range profile {
		if shielded[ir.TaskPointer(t.ID, field)] {
			continue
		}
		t.SetResourceFor(field, env, value)
		n++
	}
	return n
}

// taskHasResources reports whether any resource field carries a value
// applicable to env.
func taskHasResources(t *ir.Task, env string) bool {
	for field := range t.ResourceFields() {
		if _, ok := t.ResourceFor(field, env); ok {
			return true
		}
	}
	return false
}

// merged overlays a rule's fields onto the minimum profile so partial rules
// still yield complete requests.
func merged(fields map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(minimumProfile))
	for k, v := range minimumProfile {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
