package nextflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

const sampleScript = `nextflow.enable.dsl=2

process align {
    cpus 4
    memory '8 GB'
    time '2h'
    container 'bwa:latest'
    errorStrategy 'retry'
    maxRetries 3

    input:
    path 'r.fq'

    output:
    path 'r.bam'

    script:
    """
    bwa mem r.fq > r.bam
    """
}

process sortbam {
    memory '4 GB'
    conda 'samtools=1.17'
    publishDir 'results'

    input:
    path 'r.bam'

    output:
    path 'r.sorted.bam'

    script:
    """
    samtools sort r.bam -o r.sorted.bam
    """
}

workflow {
    aligned = align(reads)
    sortbam(aligned)
}
`

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.nf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_Processes(t *testing.T) {
	path := writeScript(t, sampleScript)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, w.Tasks, 2)
	env := ir.EnvSharedFilesystem

	align, ok := w.Task("align")
	require.True(t, ok)
	cpu, _ := align.CPU.GetWithDefault(env)
	assert.Equal(t, int64(4), cpu)
	mem, _ := align.MemMB.GetWithDefault(env)
	assert.Equal(t, int64(8000), mem)
	secs, _ := align.TimeS.GetWithDefault(env)
	assert.Equal(t, int64(7200), secs)
	container, _ := align.Container.GetWithDefault(env)
	assert.Equal(t, "docker://bwa:latest", container)
	retries, _ := align.RetryCount.GetWithDefault(env)
	assert.Equal(t, int64(3), retries)
	cmd, _ := align.Command.GetWithDefault(env)
	assert.Equal(t, "bwa mem r.fq > r.bam", cmd)

	sortTask, _ := w.Task("sortbam")
	conda, _ := sortTask.Conda.GetWithDefault(env)
	assert.Equal(t, "samtools=1.17", conda)
	publish, _ := sortTask.Meta["publish_dir"].AsString()
	assert.Equal(t, "results", publish)

	require.Len(t, w.Edges, 1)
	assert.Equal(t, ir.Edge{Parent: "align", Child: "sortbam"}, w.Edges[0])
}

func TestImport_DotOutReference(t *testing.T) {
	script := `process first {
    output:
    path 'a.txt'

    script:
    "touch a.txt"
}

process second {
    input:
    path 'a.txt'

    script:
    "cat a.txt"
}

workflow {
    first()
    second(first.out)
}
`
	path := writeScript(t, script)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, w.Edges, 1)
	assert.Equal(t, ir.Edge{Parent: "first", Child: "second"}, w.Edges[0])
}

func TestExport_RoundTrip(t *testing.T) {
	path := writeScript(t, sampleScript)
	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.nf")
	require.NoError(t, NewExporter(formats.ExporterOptions{}).GenerateOutput(w, out))

	back, err := imp.ParseSource(context.Background(), out)
	require.NoError(t, err)

	require.Len(t, back.Tasks, 2)
	env := ir.EnvSharedFilesystem
	align, _ := back.Task("align")
	mem, _ := align.MemMB.GetWithDefault(env)
	assert.Equal(t, int64(8000), mem)
	retries, _ := align.RetryCount.GetWithDefault(env)
	assert.Equal(t, int64(3), retries)
	require.Len(t, back.Edges, 1)
	assert.Equal(t, ir.Edge{Parent: "align", Child: "sortbam"}, back.Edges[0])
}

func TestDetectLosses_ProvenanceAndPriority(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	w.BCO = &ir.BCOSpec{ObjectID: "https://example.org/bco/1"}
	task := ir.NewTask("a")
	task.Priority = ir.NewEnvValue(int64(5))
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	NewExporter(formats.ExporterOptions{}).DetectLosses(w, reg)

	fields := map[string]bool{}
	for _, e := range reg.Entries() {
		fields[e.Field] = true
	}
	assert.True(t, fields["bco"])
	assert.True(t, fields["priority"])
}

func TestExport_EmptyWorkflow(t *testing.T) {
	w := ir.NewWorkflow("empty", "1.0")
	out := filepath.Join(t.TempDir(), "out.nf")

	require.NoError(t, NewExporter(formats.ExporterOptions{}).GenerateOutput(w, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workflow {")
}
