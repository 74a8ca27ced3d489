package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/ir"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidateWorkflow_Valid(t *testing.T) {
	v := newValidator(t)

	w := ir.NewWorkflow("ok", "1.0")
	task := ir.NewTask("align")
	task.CPU = ir.NewEnvValue(int64(4))
	task.MemMB = ir.NewEnvValue(int64(8192))
	require.NoError(t, w.AddTask(task))

	assert.NoError(t, v.ValidateWorkflow(w))
}

func TestValidateWorkflow_EmptyWorkflow(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.ValidateWorkflow(ir.NewWorkflow("empty", "1.0")))
}

func TestValidateWorkflow_DanglingEdge(t *testing.T) {
	v := newValidator(t)

	w := ir.NewWorkflow("bad", "1.0")
	require.NoError(t, w.AddTask(ir.NewTask("a")))
	// Bypass AddEdge to simulate a corrupted document.
	w.Edges = append(w.Edges, ir.Edge{Parent: "a", Child: "ghost"})

	err := v.ValidateWorkflow(w)
	require.Error(t, err)
	issues, ok := err.(Issues)
	require.True(t, ok)
	found := false
	for _, i := range issues {
		if i.Rule == "reference-integrity" {
			found = true
		}
	}
	assert.True(t, found, "expected a reference-integrity issue, got %v", issues)
}

func TestValidateWorkflow_CycleDetected(t *testing.T) {
	v := newValidator(t)

	w := ir.NewWorkflow("bad", "1.0")
	require.NoError(t, w.AddTask(ir.NewTask("a")))
	require.NoError(t, w.AddTask(ir.NewTask("b")))
	w.Edges = []ir.Edge{{Parent: "a", Child: "b"}, {Parent: "b", Child: "a"}}

	err := v.ValidateWorkflow(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateWorkflow_ResourceBounds(t *testing.T) {
	v := newValidator(t)

	w := ir.NewWorkflow("bad", "1.0")
	task := ir.NewTask("a")
	task.CPU = ir.NewEnvValue(int64(0))
	require.NoError(t, w.AddTask(task))

	err := v.ValidateWorkflow(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu")
}

func TestValidateWorkflow_DuplicateParamID(t *testing.T) {
	v := newValidator(t)

	w := ir.NewWorkflow("bad", "1.0")
	w.Inputs = []ir.ParameterSpec{
		{ID: "x", Type: ir.TypeFile},
		{ID: "x", Type: ir.TypeString},
	}

	err := v.ValidateWorkflow(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate parameter id")
}

func TestValidateSideCar(t *testing.T) {
	v := newValidator(t)

	good := []byte(`{
		"wf2wf_version": "0.1.0",
		"target_engine": "dagman",
		"source_checksum": "sha256:` + strRepeat("ab", 32) + `",
		"entries": [{
			"json_pointer": "/tasks/a/priority",
			"field": "priority",
			"lost_value": 10,
			"reason": "target cannot express priority",
			"origin": "wf2wf",
			"status": "lost",
			"severity": "warn",
			"category": "scheduling"
		}]
	}`)
	assert.NoError(t, v.ValidateSideCar(good))

	bad := []byte(`{"wf2wf_version": "0.1.0", "entries": []}`)
	assert.Error(t, v.ValidateSideCar(bad), "missing required keys must fail")
}

func strRepeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestIsValidResource(t *testing.T) {
	assert.True(t, IsValidResource("cpu", 1))
	assert.True(t, IsValidResource("cpu", 1024))
	assert.False(t, IsValidResource("cpu", 0))
	assert.False(t, IsValidResource("cpu", 2048))
	assert.True(t, IsValidResource("gpu", 0))
	assert.False(t, IsValidResource("mem_mb", 0))
	assert.False(t, IsValidResource("nonsense", 1))
}

func TestIsValidEnvironmentName(t *testing.T) {
	assert.True(t, IsValidEnvironmentName("shared_filesystem"))
	assert.True(t, IsValidEnvironmentName("local"))
	assert.False(t, IsValidEnvironmentName("mainframe"))
}

func TestClassifyPath(t *testing.T) {
	cases := map[string]string{
		"/data/genome.fa":        PathUnix,
		"./relative/file.txt":    PathUnix,
		`C:\Users\x\file.txt`:    PathWindows,
		"https://example.org/x":  PathURL,
		"s3://bucket/key":        PathURL,
		"docker://bwa:latest":    PathDockerImage,
		"biocontainers/bwa:v0.7": PathDockerImage,
		"envs/align.yaml":        PathCondaEnv,
		"samtools-env":           PathCondaEnv,
		"":                       PathUnknown,
	}
	for input, want := range cases {
		assert.Equal(t, want, ClassifyPath(input), "input %q", input)
	}
}

func TestClampResource(t *testing.T) {
	assert.Equal(t, int64(1), ClampResource("cpu", 0))
	assert.Equal(t, int64(1024), ClampResource("cpu", 9999))
	assert.Equal(t, int64(8), ClampResource("cpu", 8))
	assert.Equal(t, int64(77), ClampResource("unknown", 77))
}
