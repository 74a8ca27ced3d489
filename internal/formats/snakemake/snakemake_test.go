package snakemake

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

const sampleSnakefile = `rule all:
    input:
        "r.sorted.bam",

rule align:
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

rule sort:
    input:
        "r.bam",
    output:
        "r.sorted.bam",
    resources:
        mem_mb=4096, runtime=30
    conda:
        "envs/samtools.yaml"
    shell:
        "samtools sort r.bam -o r.sorted.bam"
`

func writeSnakefile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Snakefile")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_Basic(t *testing.T) {
	path := writeSnakefile(t, sampleSnakefile)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, w.Tasks, 2, "rule all is a target declaration, not a task")

	align, ok := w.Task("align")
	require.True(t, ok)

	env := ir.EnvSharedFilesystem
	cmd, ok := align.Command.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, "bwa mem r.fq > r.bam", cmd)

	threads, ok := align.Threads.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, int64(4), threads)

	mem, ok := align.MemMB.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, int64(8000), mem)

	container, ok := align.Container.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, "docker://bwa:latest", container)

	// Edges wired output → input.
	require.Len(t, w.Edges, 1)
	assert.Equal(t, ir.Edge{Parent: "align", Child: "sort"}, w.Edges[0])

	// runtime minutes became seconds.
	sortTask, _ := w.Task("sort")
	secs, ok := sortTask.TimeS.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, int64(1800), secs)

	// Workflow targets from rule all.
	require.Len(t, w.Outputs, 1)
	assert.Equal(t, "r.sorted.bam", w.Outputs[0].ID)
}

func TestImport_Includes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "rules.smk")
	require.NoError(t, os.WriteFile(sub, []byte(
		"rule extra:\n    output:\n        \"x.txt\",\n    shell:\n        \"touch x.txt\"\n"), 0o644))

	main := filepath.Join(dir, "Snakefile")
	require.NoError(t, os.WriteFile(main, []byte(
		"include: \"rules.smk\"\n\nrule use:\n    input:\n        \"x.txt\",\n    shell:\n        \"cat x.txt\"\n"), 0o644))

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), main)
	require.NoError(t, err)

	assert.Len(t, w.Tasks, 2)
	require.Len(t, w.Edges, 1)
	assert.Equal(t, "extra", w.Edges[0].Parent)
}

func TestImport_TripleQuotedShell(t *testing.T) {
	path := writeSnakefile(t, `rule multi:
    output:
        "out.txt",
    shell:
        """
        echo line1 > out.txt
        echo line2 >> out.txt
        """
`)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	task, ok := w.Task("multi")
	require.True(t, ok)
	cmd, _ := task.Command.GetWithDefault(ir.EnvSharedFilesystem)
	assert.Contains(t, cmd, "echo line1")
	assert.Contains(t, cmd, "echo line2")
}

func TestImport_MissingFile(t *testing.T) {
	imp := NewImporter(formats.ImporterOptions{})
	_, err := imp.ParseSource(context.Background(), "/does/not/exist.smk")
	assert.Error(t, err)
}

func TestExport_RoundTrip(t *testing.T) {
	path := writeSnakefile(t, sampleSnakefile)
	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "Snakefile")
	exp := NewExporter(formats.ExporterOptions{})
	require.NoError(t, exp.GenerateOutput(w, out))

	back, err := imp.ParseSource(context.Background(), out)
	require.NoError(t, err)

	assert.Len(t, back.Tasks, 2)
	align, ok := back.Task("align")
	require.True(t, ok)
	mem, ok := align.MemMB.GetWithDefault(ir.EnvSharedFilesystem)
	require.True(t, ok)
	assert.Equal(t, int64(8000), mem)
	cmd, _ := align.Command.GetWithDefault(ir.EnvSharedFilesystem)
	assert.Equal(t, "bwa mem r.fq > r.bam", cmd)
	require.Len(t, back.Edges, 1)
}

func TestExport_ByteStable(t *testing.T) {
	path := writeSnakefile(t, sampleSnakefile)
	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	exp := NewExporter(formats.ExporterOptions{})
	dir := t.TempDir()
	a := filepath.Join(dir, "a.smk")
	b := filepath.Join(dir, "b.smk")
	require.NoError(t, exp.GenerateOutput(w, a))
	require.NoError(t, exp.GenerateOutput(w, b))

	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	assert.Equal(t, string(da), string(db))
}

func TestDetectLosses_ScatterAndWhen(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("gather")
	task.Scatter = &ir.ScatterSpec{Scatter: []string{"sample"}, Method: ir.ScatterDotProduct}
	task.When = "$(inputs.enabled)"
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	NewExporter(formats.ExporterOptions{}).DetectLosses(w, reg)

	fields := map[string]bool{}
	for _, e := range reg.Entries() {
		fields[e.Field] = true
		assert.Equal(t, ir.StatusLost, e.Status)
	}
	assert.True(t, fields["scatter"])
	assert.True(t, fields["when"])
}

func TestExport_EmptyWorkflow(t *testing.T) {
	w := ir.NewWorkflow("empty", "1.0")
	out := filepath.Join(t.TempDir(), "Snakefile")

	require.NoError(t, NewExporter(formats.ExporterOptions{}).GenerateOutput(w, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# empty"))
}
