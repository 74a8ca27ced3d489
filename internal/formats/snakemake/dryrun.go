package snakemake

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// defaultDryRunTimeout bounds the native-tool subprocess.
const defaultDryRunTimeout = 300 * time.Second

// jobStatsRe matches rows of snakemake's dry-run job-stats table:
// "<rule>  <count>".
var jobStatsRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s+(\d+)\s*$`)

// enrichFromDryRun invokes snakemake's own dry-run mode to resolve wildcard
// counts into concrete job numbers. Enrichment is best-effort: a missing
// binary, a timeout, or a parse failure logs a warning and keeps the static
// parse untouched.
func (i *Importer) enrichFromDryRun(ctx context.Context, path string, w *ir.Workflow) {
	timeout := defaultDryRunTimeout
	if i.opts.DryRunTimeoutSeconds > 0 {
		timeout = time.Duration(i.opts.DryRunTimeoutSeconds) * time.Second
	}

	workdir, err := os.MkdirTemp("", "wf2wf-dryrun-*")
	if err != nil {
		i.log.Warn("dry-run enrichment skipped", "error", err)
		return
	}
	defer os.RemoveAll(workdir)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	err = output.RunWithSpinner(runCtx, func() error {
		cmd := exec.CommandContext(runCtx, "snakemake",
			"--snakefile", path, "--dry-run", "--quiet")
		cmd.Dir = workdir
		cmd.Stdout = &stdout
		return cmd.Run()
	}, output.WithTitle("Resolving wildcards via dry run..."), output.WithTimeout(timeout))

	if err != nil {
		i.log.Warn("dry-run enrichment skipped", "error", err)
		return
	}

	counts := parseJobStats(stdout.Bytes())
	for id, n := range counts {
		if t, ok := w.Task(id); ok {
			if t.Meta == nil {
				t.Meta = map[string]ir.Value{}
			}
			t.Meta["concrete_jobs"] = ir.Int(n)
		}
	}
	i.log.Debug("dry-run enrichment applied", "rules", len(counts))
}

// parseJobStats extracts per-rule job counts from dry-run output.
func parseJobStats(out []byte) map[string]int64 {
	counts := map[string]int64{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := jobStatsRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if m[1] == "total" || m[1] == "job" {
			continue
		}
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err == nil {
			counts[m[1]] = n
		}
	}
	return counts
}
