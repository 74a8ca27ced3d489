package convert

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wferrors "github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
	"github.com/csmcal/wf2wf/internal/testutil"
)

// Rule → DAG with inline submit: resources and container flow into the
// submit attributes, the companion script carries the shell command.
func TestConvert_SnakemakeToDAGManInline(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Snakefile", `rule align:
    input:
        "r.fq",
    output:
        "r.bam",
    threads: 4
    resources:
        mem_mb=8000,
    container:
        "docker://bwa:latest"
    shell:
        "bwa mem r.fq > r.bam"
`)
	dst := filepath.Join(dir, "out.dag")

	report, err := Convert(context.Background(), src, dst, Options{
		InlineSubmit: true,
		Headless:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "snakemake", report.SourceFormat)
	assert.Equal(t, "dagman", report.TargetFormat)
	assert.Equal(t, 1, report.TaskCount)

	dag := testutil.ReadFile(t, dst)
	assert.Contains(t, dag, "JOB align {")
	assert.Contains(t, dag, "request_cpus = 4")
	assert.Contains(t, dag, "request_memory = 8000MB")
	assert.Contains(t, dag, "universe = docker")
	assert.Contains(t, dag, "docker_image = bwa:latest")
	assert.Contains(t, dag, "queue")

	script := testutil.ReadFile(t, filepath.Join(dir, "align.sh"))
	assert.Contains(t, script, "bwa mem r.fq > r.bam")

	// Side-car written next to the output; the conversion is lossless.
	sc, err := loss.Read(loss.SideCarPath(dst))
	require.NoError(t, err)
	assert.Equal(t, "dagman", sc.TargetEngine)
	assert.Empty(t, sc.Entries)
}

// Rule → standards-based: priority dropped (lost), retry carried as a hint
// (adapted).
func TestConvert_PriorityAndRetryLosses(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Snakefile", `rule align:
    output:
        "r.bam",
    priority: 10
    retries: 3
    shell:
        "bwa mem r.fq > r.bam"
`)
	dst := filepath.Join(dir, "out.cwl")

	_, err := Convert(context.Background(), src, dst, Options{Headless: true})
	require.NoError(t, err)

	sc, err := loss.Read(loss.SideCarPath(dst))
	require.NoError(t, err)

	var prio, retry *ir.LossEntry
	for i := range sc.Entries {
		switch sc.Entries[i].Field {
		case "priority":
			prio = &sc.Entries[i]
		case "retry_count":
			retry = &sc.Entries[i]
		}
	}

	require.NotNil(t, prio, "priority loss must be recorded")
	assert.Equal(t, ir.TaskPointer("align", "priority"), prio.JSONPointer)
	assert.Equal(t, ir.SeverityWarn, prio.Severity)
	assert.Equal(t, ir.StatusLost, prio.Status)

	require.NotNil(t, retry, "retry adaptation must be recorded")
	assert.Equal(t, ir.SeverityInfo, retry.Severity)
	assert.Equal(t, ir.StatusAdapted, retry.Status)
}

// Dataflow → rule round trip via side-car: GPU requirements the rule format
// loses transition to reapplied on re-import.
func TestConvert_SideCarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "main.nf", `process train {
    cpus 4
    memory '8 GB'
    accelerator 2
    container 'pytorch:2'

    input:
    path 'data.csv'

    output:
    path 'model.pt'

    script:
    """
    train.py data.csv
    """
}

workflow {
    train(data)
}
`)
	smk := filepath.Join(dir, "out.smk")

	_, err := Convert(context.Background(), src, smk, Options{Headless: true})
	require.NoError(t, err)

	// Record a user-origin GPU loss in the side-car so reapplication is
	// observable (wf2wf-origin entries behave identically).
	sc, err := loss.Read(loss.SideCarPath(smk))
	require.NoError(t, err)
	sc.Entries = append(sc.Entries, ir.LossEntry{
		JSONPointer: ir.TaskPointer("train", "gpu_mem_mb"),
		Field:       "gpu_mem_mb",
		LostValue:   ir.Int(16000),
		Reason:      "annotated by user",
		Origin:      ir.OriginUser,
		Status:      ir.StatusLost,
		Severity:    ir.SeverityWarn,
		Category:    ir.CategoryResource,
	})
	raw, err := json.MarshalIndent(sc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(loss.SideCarPath(smk), raw, 0o644))

	back := filepath.Join(dir, "back.nf")
	_, err = Convert(context.Background(), smk, back, Options{Headless: true})
	require.NoError(t, err)

	finalSC, err := loss.Read(loss.SideCarPath(back))
	require.NoError(t, err)

	for _, e := range finalSC.Entries {
		if e.Origin == ir.OriginUser {
			assert.NotEqual(t, ir.StatusLost, e.Status,
				"user entry %s must end reapplied or lost_again", e.JSONPointer)
		}
	}

	// The reapplied GPU memory value flows into the final export's IR.
	reapplied := false
	for _, e := range finalSC.Entries {
		if e.Field == "gpu_mem_mb" && e.Status == ir.StatusReapplied {
			reapplied = true
		}
	}
	assert.True(t, reapplied, "gpu_mem_mb should reapply cleanly, got %+v", finalSC.Entries)
}

// Headless mode: a container-isolation target fills defaults and records
// adapted entries without blocking.
func TestConvert_HeadlessContainerDefaults(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Snakefile", `rule plain:
    output:
        "x.txt",
    shell:
        "touch x.txt"
`)
	dst := filepath.Join(dir, "out.ga")

	_, err := Convert(context.Background(), src, dst, Options{Headless: true})
	require.NoError(t, err)

	sc, err := loss.Read(loss.SideCarPath(dst))
	require.NoError(t, err)

	found := false
	for _, e := range sc.Entries {
		if e.Field == "container" && e.Status == ir.StatusAdapted && e.Origin == ir.OriginWf2wf {
			found = true
		}
	}
	assert.True(t, found, "headless isolation default must be recorded per task")
}

func TestConvert_EmptyWorkflowAllTargets(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "empty.json", `{"name": "empty", "tasks": {}}`)

	for _, target := range []string{"out.smk", "out.dag", "out.cwl", "out.nf", "out.wdl", "out.ga"} {
		dst := filepath.Join(dir, target)
		_, err := Convert(context.Background(), src, dst, Options{Headless: true})
		require.NoError(t, err, "target %s", target)

		info, err := os.Stat(dst)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))

		sc, err := loss.Read(loss.SideCarPath(dst))
		require.NoError(t, err)
		assert.NotEmpty(t, sc.SourceChecksum)
	}
}

func TestConvert_SingleTaskGetsConservativeDefaults(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "bare.json",
		`{"name": "bare", "tasks": {"solo": {"id": "solo", "command": "./run-analysis"}}}`)
	dst := filepath.Join(dir, "out.dag")

	_, err := Convert(context.Background(), src, dst, Options{Headless: true})
	require.NoError(t, err)

	sub := testutil.ReadFile(t, filepath.Join(dir, "solo.sub"))
	assert.Contains(t, sub, "request_cpus = 1")
	assert.Contains(t, sub, "request_memory = 2048MB")

	sc, err := loss.Read(loss.SideCarPath(dst))
	require.NoError(t, err)
	assert.NotEmpty(t, sc.Entries, "a defaulted conversion still carries loss entries")
}

func TestConvert_FailOnLoss(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Snakefile", `rule align:
    output:
        "r.bam",
    priority: 10
    shell:
        "bwa mem r.fq > r.bam"
`)
	dst := filepath.Join(dir, "out.cwl")

	_, err := Convert(context.Background(), src, dst, Options{
		Headless:   true,
		FailOnLoss: ir.SeverityWarn,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail-on-loss")
}

func TestConvert_UnknownExtension(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "wf.xyz", "whatever")

	_, err := Convert(context.Background(), src, filepath.Join(dir, "out.dag"), Options{Headless: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, wferrors.ErrNotFound)
}

func TestConvert_ParseErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "broken.ga", "{not json")

	_, err := Convert(context.Background(), src, filepath.Join(dir, "out.cwl"), Options{Headless: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, wferrors.ErrParse)
}

func TestConvert_ChecksumMatchesReimport(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "Snakefile", `rule a:
    output:
        "x.txt",
    shell:
        "touch x.txt"
`)
	dst := filepath.Join(dir, "out.smk")

	_, err := Convert(context.Background(), src, dst, Options{Headless: true})
	require.NoError(t, err)

	sc, err := loss.Read(loss.SideCarPath(dst))
	require.NoError(t, err)

	imp, err := NewImporter(formats.FormatSnakemake, formats.ImporterOptions{})
	require.NoError(t, err)
	w, err := imp.ParseSource(context.Background(), dst)
	require.NoError(t, err)

	sum, err := ir.Checksum(w)
	require.NoError(t, err)
	assert.Equal(t, sum, sc.SourceChecksum,
		"side-car checksum must match the IR a re-import reconstructs")
	assert.True(t, strings.HasPrefix(sum, "sha256:"))
}

func TestCheckFailOnLoss_Thresholds(t *testing.T) {
	reg := loss.NewRegistry()
	reg.RecordLost("/a", "a", ir.Null(), "x", ir.CategoryMetadata, ir.SeverityInfo)

	assert.NoError(t, CheckFailOnLoss(reg, ""))
	assert.Error(t, CheckFailOnLoss(reg, ir.SeverityInfo))
	assert.NoError(t, CheckFailOnLoss(reg, ir.SeverityWarn))
}
