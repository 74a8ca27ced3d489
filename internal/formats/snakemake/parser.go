// Package snakemake imports and exports rule-based build workflows.
package snakemake

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
)

// rule is the raw parse of one rule block before IR construction.
type rule struct {
	name       string
	directives map[string]string
	line       int
}

var (
	ruleRe      = regexp.MustCompile(`^(rule|checkpoint)\s+([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	includeRe   = regexp.MustCompile(`^include\s*:\s*["']([^"']+)["']`)
	directiveRe = regexp.MustCompile(`^\s+([a-z_]+)\s*:\s*(.*)$`)
	quotedRe    = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'`)
	kvRe        = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*("[^"]*"|'[^']*'|[^,]+)`)
)

// parseFile parses a Snakefile plus its includes into raw rules.
// The parse is static: expressions stay verbatim, wildcards unresolved.
func parseFile(path string) ([]rule, error) {
	seen := map[string]bool{}
	return parseFileRec(path, seen)
}

func parseFileRec(path string, seen map[string]bool) ([]rule, error) {
	abs, err := filepath.Abs(path)
	if err == nil {
		if seen[abs] {
			return nil, nil
		}
		seen[abs] = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wferrors.Wrap(wferrors.ErrParse, fmt.Sprintf("reading %s: %v", path, err))
	}

	lines := strings.Split(string(data), "\n")
	var rules []rule
	var cur *rule
	var curDirective string

	flush := func() {
		if cur != nil {
			rules = append(rules, *cur)
			cur = nil
		}
		curDirective = ""
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if m := includeRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			included := m[1]
			if !filepath.IsAbs(included) {
				included = filepath.Join(filepath.Dir(path), included)
			}
			sub, err := parseFileRec(included, seen)
			if err != nil {
				return nil, err
			}
			rules = append(rules, sub...)
			continue
		}

		if m := ruleRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &rule{name: m[2], directives: map[string]string{}, line: i + 1}
			continue
		}

		if cur == nil {
			continue
		}

		// A non-indented, non-empty line ends the rule block.
		if trimmed != "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			flush()
			continue
		}

		if m := directiveRe.FindStringSubmatch(line); m != nil && isDirective(m[1]) {
			curDirective = m[1]
			cur.directives[curDirective] = strings.TrimSpace(m[2])
			// Triple-quoted values swallow lines until the closing quotes.
			if open := tripleQuoteOpen(cur.directives[curDirective]); open != "" {
				var block []string
				block = append(block, strings.TrimPrefix(cur.directives[curDirective], open))
				for i++; i < len(lines); i++ {
					if idx := strings.Index(lines[i], open); idx >= 0 {
						block = append(block, lines[i][:idx])
						break
					}
					block = append(block, lines[i])
				}
				cur.directives[curDirective] = strings.TrimSpace(strings.Join(block, "\n"))
				curDirective = ""
			}
			continue
		}

		// Continuation of the current directive. A triple quote opening on
		// its own line swallows everything until the closing quotes.
		if curDirective != "" && trimmed != "" {
			if open := tripleQuoteOpen(trimmed); open != "" {
				var block []string
				if rest := strings.TrimPrefix(trimmed, open); rest != "" {
					block = append(block, rest)
				}
				for i++; i < len(lines); i++ {
					if idx := strings.Index(lines[i], open); idx >= 0 {
						if head := strings.TrimSpace(lines[i][:idx]); head != "" {
							block = append(block, head)
						}
						break
					}
					block = append(block, strings.TrimRight(lines[i], " \t"))
				}
				cur.directives[curDirective] = strings.TrimSpace(strings.Join(block, "\n"))
				curDirective = ""
				continue
			}
			cur.directives[curDirective] = strings.TrimSpace(cur.directives[curDirective] + " " + trimmed)
		}
	}
	flush()
	return rules, nil
}

func isDirective(name string) bool {
	switch name {
	case "input", "output", "params", "threads", "resources", "retries",
		"priority", "conda", "container", "singularity", "shell", "script",
		"run", "log", "benchmark", "envmodules", "wildcard_constraints",
		"message", "group":
		return true
	}
	return false
}

func tripleQuoteOpen(s string) string {
	if strings.HasPrefix(s, `"""`) && !strings.HasSuffix(s, `"""`) || s == `"""` {
		return `"""`
	}
	if strings.HasPrefix(s, `'''`) && !strings.HasSuffix(s, `'''`) || s == `'''` {
		return `'''`
	}
	return ""
}

// quotedStrings extracts the string literals of a directive value, dropping
// keyword names ("r1=..." keeps the value only).
func quotedStrings(s string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else if m[2] != "" {
			out = append(out, m[2])
		}
	}
	return out
}

// keyValues parses "mem_mb=8000, disk_mb=1024" directive bodies.
func keyValues(s string) map[string]string {
	out := map[string]string{}
	for _, m := range kvRe.FindAllStringSubmatch(s, -1) {
		out[m[1]] = strings.Trim(strings.TrimSpace(m[2]), `"'`)
	}
	return out
}

// parseIntDirective parses an integer directive body, tolerating quotes.
func parseIntDirective(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(s), `"'`), 10, 64)
	return n, err == nil
}
