package cwl

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

const graphDoc = `cwlVersion: v1.2
$graph:
  - class: Workflow
    id: "#main"
    inputs:
      reads:
        type: File
    outputs:
      aligned:
        type: File
        outputSource: align/aligned
    steps:
      align:
        run: "#align_tool"
        in:
          reads:
            source: reads
        out: [aligned]
        scatter: reads
        scatterMethod: dotproduct
      stats:
        run: "#stats_tool"
        in:
          aligned:
            source: align/aligned
        out: [report]
        when: "$(inputs.aligned != null)"
  - class: CommandLineTool
    id: "#align_tool"
    baseCommand: [bwa, mem]
    requirements:
      - class: DockerRequirement
        dockerPull: bwa:latest
      - class: ResourceRequirement
        coresMin: 4
        ramMin: 8192
    inputs:
      reads:
        type: File
        secondaryFiles:
          - pattern: .fai
    outputs:
      aligned:
        type: File
  - class: CommandLineTool
    id: "#stats_tool"
    baseCommand: samtools
    inputs:
      aligned:
        type: File
    outputs:
      report:
        type: File
`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_Graph(t *testing.T) {
	path := writeDoc(t, "wf.cwl", graphDoc)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "v1.2", w.CWLVersion)
	require.Len(t, w.Tasks, 2)

	align, ok := w.Task("align")
	require.True(t, ok)

	env := ir.EnvSharedFilesystem
	cpu, ok := align.CPU.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, int64(4), cpu)
	mem, _ := align.MemMB.GetWithDefault(env)
	assert.Equal(t, int64(8192), mem)
	container, _ := align.Container.GetWithDefault(env)
	assert.Equal(t, "docker://bwa:latest", container)

	require.NotNil(t, align.Scatter)
	assert.Equal(t, []string{"reads"}, align.Scatter.Scatter)
	assert.Equal(t, ir.ScatterDotProduct, align.Scatter.Method)

	require.Len(t, align.Inputs, 1)
	assert.Equal(t, []string{".fai"}, align.Inputs[0].SecondaryFiles)

	stats, _ := w.Task("stats")
	assert.Equal(t, "$(inputs.aligned != null)", stats.When)

	require.Len(t, w.Edges, 1)
	assert.Equal(t, ir.Edge{Parent: "align", Child: "stats"}, w.Edges[0])
}

func TestImport_SingleWorkflowJSON(t *testing.T) {
	doc := `{
	  "cwlVersion": "v1.0",
	  "class": "Workflow",
	  "inputs": {"x": "File"},
	  "outputs": {},
	  "steps": {
	    "step1": {
	      "run": {
	        "class": "CommandLineTool",
	        "baseCommand": "echo",
	        "inputs": {"x": "File"},
	        "outputs": {}
	      },
	      "in": {"x": "x"},
	      "out": []
	    }
	  }
	}`
	path := writeDoc(t, "wf.cwl", doc)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "v1.0", w.CWLVersion)
	task, ok := w.Task("step1")
	require.True(t, ok)
	cmd, _ := task.Command.GetWithDefault(ir.EnvSharedFilesystem)
	assert.Equal(t, "echo", cmd)
}

func TestImport_BareTool(t *testing.T) {
	doc := `class: CommandLineTool
cwlVersion: v1.2
id: "#mytool"
baseCommand: [echo, hello]
inputs: {}
outputs: {}
`
	path := writeDoc(t, "tool.cwl", doc)

	imp := NewImporter(formats.ImporterOptions{})
	w, err := imp.ParseSource(context.Background(), path)
	require.NoError(t, err)
	_, ok := w.Task("mytool")
	assert.True(t, ok)
}

func TestImport_UnknownRunRef(t *testing.T) {
	doc := `cwlVersion: v1.2
$graph:
  - class: Workflow
    id: "#main"
    inputs: {}
    outputs: {}
    steps:
      broken:
        run: "#missing_tool"
        in: {}
        out: []
`
	path := writeDoc(t, "wf.cwl", doc)

	imp := NewImporter(formats.ImporterOptions{})
	_, err := imp.ParseSource(context.Background(), path)
	assert.Error(t, err)
}

func TestExport_GraphRoundTrip(t *testing.T) {
	w := ir.NewWorkflow("demo", "1.0")
	env := ir.EnvSharedFilesystem

	align := ir.NewTask("align")
	align.Command = ir.EnvValueFor(env, "bwa mem r.fq > r.bam")
	align.CPU = ir.EnvValueFor(env, int64(4))
	align.MemMB = ir.EnvValueFor(env, int64(8192))
	align.Container = ir.EnvValueFor(env, "docker://bwa:latest")
	align.Inputs = []ir.ParameterSpec{{ID: "r.fq", Type: ir.TypeFile, TransferMode: ir.TransferAuto}}
	align.Outputs = []ir.ParameterSpec{{ID: "r.bam", Type: ir.TypeFile}}
	align.Scatter = &ir.ScatterSpec{Scatter: []string{"r.fq"}, Method: ir.ScatterDotProduct}
	require.NoError(t, w.AddTask(align))

	stats := ir.NewTask("stats")
	stats.Command = ir.EnvValueFor(env, "samtools flagstat r.bam")
	stats.Inputs = []ir.ParameterSpec{{ID: "r.bam", Type: ir.TypeFile}}
	stats.When = "$(inputs.r_bam != null)"
	require.NoError(t, w.AddTask(stats))
	require.NoError(t, w.AddEdge("align", "stats"))

	out := filepath.Join(t.TempDir(), "out.cwl")
	require.NoError(t, NewExporter(formats.ExporterOptions{}).GenerateOutput(w, out))

	back, err := NewImporter(formats.ImporterOptions{}).ParseSource(context.Background(), out)
	require.NoError(t, err)

	require.Len(t, back.Tasks, 2)
	alignBack, _ := back.Task("align")
	require.NotNil(t, alignBack.Scatter)
	assert.Equal(t, ir.ScatterDotProduct, alignBack.Scatter.Method)
	cpu, _ := alignBack.CPU.GetWithDefault(env)
	assert.Equal(t, int64(4), cpu)
	require.Len(t, back.Edges, 1)
	assert.Equal(t, "align", back.Edges[0].Parent)
}

func TestExport_EmptyWorkflowSingleDoc(t *testing.T) {
	w := ir.NewWorkflow("empty", "1.0")
	out := filepath.Join(t.TempDir(), "out.cwl")

	require.NoError(t, NewExporter(formats.ExporterOptions{}).GenerateOutput(w, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "class: Workflow")
	assert.NotContains(t, string(data), "$graph")
}

func TestExport_ByteStable(t *testing.T) {
	w := ir.NewWorkflow("demo", "1.0")
	task := ir.NewTask("a")
	task.Command = ir.NewEnvValue("echo hi")
	require.NoError(t, w.AddTask(task))

	exp := NewExporter(formats.ExporterOptions{})
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.cwl")
	p2 := filepath.Join(dir, "b.cwl")
	require.NoError(t, exp.GenerateOutput(w, p1))
	require.NoError(t, exp.GenerateOutput(w, p2))

	d1, _ := os.ReadFile(p1)
	d2, _ := os.ReadFile(p2)
	assert.Equal(t, string(d1), string(d2))
}

func TestDetectLosses_PriorityAndRetry(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	task.Priority = ir.NewEnvValue(int64(10))
	task.RetryCount = ir.NewEnvValue(int64(3))
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	NewExporter(formats.ExporterOptions{}).DetectLosses(w, reg)

	byField := map[string]ir.LossEntry{}
	for _, e := range reg.Entries() {
		byField[e.Field] = e
	}

	prio := byField["priority"]
	assert.Equal(t, ir.StatusLost, prio.Status)
	assert.Equal(t, ir.SeverityWarn, prio.Severity)
	assert.Equal(t, ir.TaskPointer("a", "priority"), prio.JSONPointer)

	retry := byField["retry_count"]
	assert.Equal(t, ir.StatusAdapted, retry.Status)
	assert.Equal(t, ir.SeverityInfo, retry.Severity)
}
