package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

func TestDetectExecutionModel_FormatDefault(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	require.NoError(t, w.AddTask(ir.NewTask("a")))

	e := NewEngine(formats.FormatDAGMan, formats.FormatCWL)
	model, confidence := e.detectExecutionModel(w)

	assert.Equal(t, ir.EnvDistributedComputing, model)
	assert.Greater(t, confidence, 0.0)

	stored, ok := w.Metadata["execution_model"]
	require.True(t, ok)
	s, _ := stored.AsString()
	assert.Equal(t, model, s)
}

func TestDetectExecutionModel_ContainerSignal(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	task.Container = ir.NewEnvValue("docker://bwa:latest")
	require.NoError(t, w.AddTask(task))

	e := NewEngine(formats.FormatGalaxy, formats.FormatCWL)
	model, _ := e.detectExecutionModel(w)
	assert.Equal(t, ir.EnvCloudNative, model)
}

func TestInferResources_CommandPattern(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("align")
	task.Command = ir.NewEnvValue("bwa mem ref.fa r.fq > r.bam")
	require.NoError(t, w.AddTask(task))

	e := NewEngine(formats.FormatSnakemake, formats.FormatDAGMan)
	e.Run(w, loss.NewRegistry())

	env, _ := w.Metadata["execution_model"].AsString()
	mem, ok := task.MemMB.GetFor(env)
	require.True(t, ok)
	assert.Equal(t, int64(8192), mem)
	cpu, ok := task.CPU.GetFor(env)
	require.True(t, ok)
	assert.Equal(t, int64(4), cpu)
}

func TestInferResources_FirstMatchWins(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("sort")
	task.Command = ir.NewEnvValue("samtools sort in.bam -o out.bam")
	require.NoError(t, w.AddTask(task))

	e := NewEngine(formats.FormatSnakemake, formats.FormatSnakemake)
	e.Run(w, loss.NewRegistry())

	env, _ := w.Metadata["execution_model"].AsString()
	mem, _ := task.MemMB.GetFor(env)
	assert.Equal(t, int64(4096), mem, "samtools sort beats the generic samtools rule")
}

func TestInferResources_MinimumProfile(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("mystery")
	task.Command = ir.NewEnvValue("./custom-binary --flag")
	require.NoError(t, w.AddTask(task))

	e := NewEngine(formats.FormatSnakemake, formats.FormatDAGMan)
	e.Run(w, loss.NewRegistry())

	env, _ := w.Metadata["execution_model"].AsString()
	mem, _ := task.MemMB.GetFor(env)
	cpu, _ := task.CPU.GetFor(env)
	assert.Equal(t, int64(2048), mem)
	assert.Equal(t, int64(1), cpu)
}

func TestInferResources_ExistingValueUntouched(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("align")
	task.Command = ir.NewEnvValue("bwa mem r.fq")
	task.MemMB = ir.NewEnvValue(int64(1234))
	require.NoError(t, w.AddTask(task))

	e := NewEngine(formats.FormatSnakemake, formats.FormatSnakemake)
	e.Run(w, loss.NewRegistry())

	env, _ := w.Metadata["execution_model"].AsString()
	mem, ok := task.MemMB.GetWithDefault(env)
	require.True(t, ok)
	assert.Equal(t, int64(1234), mem, "an existing default shields the field")
}

func TestInfer_Idempotent(t *testing.T) {
	build := func() *ir.Workflow {
		w := ir.NewWorkflow("wf", "1.0")
		task := ir.NewTask("align")
		task.Command = ir.NewEnvValue("bwa mem r.fq")
		task.Conda = ir.NewEnvValue("envs/align.yaml")
		task.Inputs = []ir.ParameterSpec{{ID: "/tmp/x.dat", Type: ir.TypeFile, TransferMode: ir.TransferAuto}}
		require.NoError(t, w.AddTask(task))
		return w
	}

	w := build()
	e := NewEngine(formats.FormatSnakemake, formats.FormatCWL)
	e.Run(w, loss.NewRegistry())

	first, err := ir.CanonicalJSON(w)
	require.NoError(t, err)

	e2 := NewEngine(formats.FormatSnakemake, formats.FormatCWL)
	e2.Run(w, loss.NewRegistry())

	second, err := ir.CanonicalJSON(w)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "inference must be idempotent")
}

func TestInferEnvironment_CondaToContainer(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("align")
	task.Conda = ir.NewEnvValue("envs/align.yaml")
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	e := NewEngine(formats.FormatSnakemake, formats.FormatCWL)
	e.Run(w, reg)

	env, _ := w.Metadata["execution_model"].AsString()
	container, ok := task.Container.GetFor(env)
	require.True(t, ok)
	assert.Contains(t, container, "docker://wf2wf/auto:")

	// Derivation recorded as an adapted entry.
	found := false
	for _, entry := range reg.Entries() {
		if entry.Field == "conda" && entry.Status == ir.StatusAdapted {
			found = true
		}
	}
	assert.True(t, found)

	// Deterministic across runs.
	assert.Equal(t, SynthesiseContainer("envs/align.yaml"), container)
}

func TestInferEnvironment_ContainerToCondaName(t *testing.T) {
	assert.Equal(t, "bwa", condaNameFromImage("docker://biocontainers/bwa:0.7.17"))
	assert.Equal(t, "samtools", condaNameFromImage("quay.io/biocontainers/samtools@sha256:"+repeat64("a")))
}

func repeat64(s string) string {
	out := ""
	for len(out) < 64 {
		out += s
	}
	return out
}

func TestInferRetries_DistributedTarget(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	require.NoError(t, w.AddTask(task))

	e := NewEngine(formats.FormatDAGMan, formats.FormatDAGMan)
	e.Run(w, loss.NewRegistry())

	count, ok := task.RetryCount.GetFor(ir.EnvDistributedComputing)
	require.True(t, ok)
	assert.Equal(t, int64(2), count)
	policy, ok := task.RetryPolicy.GetFor(ir.EnvDistributedComputing)
	require.True(t, ok)
	assert.Equal(t, ir.RetryExponential, policy)
}

func TestClassifyTransfer(t *testing.T) {
	cases := map[string]string{
		"/nfs/ref/genome.fa":  ir.TransferShared,
		"s3://bucket/data":    ir.TransferShared,
		"https://host/x":      ir.TransferShared,
		"/tmp/scratch.dat":    ir.TransferNever,
		"run.log":             ir.TransferNever,
		"temp_intermediate":   ir.TransferNever,
		"job.err":             ir.TransferNever,
		"reads.fastq":         ir.TransferAuto,
		"annotations.gtf":     ir.TransferShared,
		"results/aligned.bam": ir.TransferShared,
	}
	for path, want := range cases {
		assert.Equal(t, want, ClassifyTransfer(path), "path %q", path)
	}
}
