package adapt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

func TestAdapt_SharedToDistributed(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("big")
	task.MemMB = ir.EnvValueFor(ir.EnvSharedFilesystem, int64(10240))
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	res := Adapt(w, ir.EnvSharedFilesystem, ir.EnvDistributedComputing, reg)
	assert.Equal(t, 1, res.ValuesAdapted)

	// 10240 × 1.10 for the distributed target.
	adapted, ok := task.MemMB.GetFor(ir.EnvDistributedComputing)
	require.True(t, ok)
	assert.Equal(t, int64(11264), adapted)

	// Source value untouched.
	original, ok := task.MemMB.GetFor(ir.EnvSharedFilesystem)
	require.True(t, ok)
	assert.Equal(t, int64(10240), original)

	entries := reg.Entries()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, ir.CategoryEnvironment, entry.Category)
	assert.Equal(t, ir.StatusAdapted, entry.Status)
	orig, _ := entry.AdaptationDetails["original_value"].AsInt()
	assert.Equal(t, int64(10240), orig)
	after, _ := entry.AdaptationDetails["adapted_value"].AsInt()
	assert.Equal(t, int64(11264), after)
	method, _ := entry.AdaptationDetails["adaptation_method"].AsString()
	assert.Equal(t, "scale×1.10", method)
}

func TestAdapt_TargetValuePresentNoChange(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	task.MemMB = ir.EnvValueFor(ir.EnvSharedFilesystem, int64(1000))
	task.MemMB.SetFor(ir.EnvCloudNative, 5000)
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	res := Adapt(w, ir.EnvSharedFilesystem, ir.EnvCloudNative, reg)

	assert.Equal(t, 0, res.ValuesAdapted)
	assert.Equal(t, 0, reg.Len(), "no entry recorded when the target already carries a value")
	v, _ := task.MemMB.GetFor(ir.EnvCloudNative)
	assert.Equal(t, int64(5000), v)
}

func TestAdapt_SameEnvironmentIsNoop(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	task.MemMB = ir.EnvValueFor(ir.EnvLocal, int64(1000))
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	res := Adapt(w, ir.EnvLocal, ir.EnvLocal, reg)
	assert.Equal(t, 0, res.ValuesAdapted)
	assert.Equal(t, 0, reg.Len())
}

func TestAdapt_CPUScalesByOne(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	task.CPU = ir.EnvValueFor(ir.EnvSharedFilesystem, int64(4))
	require.NoError(t, w.AddTask(task))

	Adapt(w, ir.EnvSharedFilesystem, ir.EnvDistributedComputing, loss.NewRegistry())

	v, ok := task.CPU.GetFor(ir.EnvDistributedComputing)
	require.True(t, ok)
	assert.Equal(t, int64(4), v)
}

func TestAdapt_ClampsToBounds(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("a")
	task.CPU = ir.EnvValueFor(ir.EnvSharedFilesystem, int64(1000))
	require.NoError(t, w.AddTask(task))

	Adapt(w, ir.EnvSharedFilesystem, ir.EnvCloudNative, loss.NewRegistry())

	v, _ := task.CPU.GetFor(ir.EnvCloudNative)
	assert.Equal(t, int64(1024), v, "1000 × 1.10 clamps to the cpu ceiling")
}

func TestAdapt_GPUFallback(t *testing.T) {
	w := ir.NewWorkflow("wf", "1.0")
	task := ir.NewTask("train")
	task.GPU = ir.EnvValueFor(ir.EnvDistributedComputing, int64(2))
	task.CPU = ir.EnvValueFor(ir.EnvDistributedComputing, int64(4))
	require.NoError(t, w.AddTask(task))

	reg := loss.NewRegistry()
	res := Adapt(w, ir.EnvDistributedComputing, ir.EnvLocal, reg)
	assert.Equal(t, 1, res.GPUFallbacks)

	gpu, ok := task.GPU.GetFor(ir.EnvLocal)
	require.True(t, ok)
	assert.Equal(t, int64(0), gpu)

	// Source GPU value preserved.
	gpu, _ = task.GPU.GetFor(ir.EnvDistributedComputing)
	assert.Equal(t, int64(2), gpu)

	// CPU headroom doubled for the fallback.
	cpu, _ := task.CPU.GetFor(ir.EnvLocal)
	assert.Equal(t, int64(8), cpu)

	found := false
	for _, e := range reg.Entries() {
		if e.Field == "gpu" && e.Status == ir.StatusAdapted {
			found = true
			method, _ := e.AdaptationDetails["adaptation_method"].AsString()
			assert.Equal(t, "gpu_to_cpu_fallback", method)
		}
	}
	assert.True(t, found)
}

func TestScalingFactor_ReverseDivides(t *testing.T) {
	f := scalingFactor(ir.EnvCloudNative, ir.EnvSharedFilesystem, "disk_mb")
	assert.InDelta(t, 0.5, f, 1e-9)

	assert.Equal(t, 1.0, scalingFactor(ir.EnvLocal, ir.EnvHybrid, "mem_mb"))
}
