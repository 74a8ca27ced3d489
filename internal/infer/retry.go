package infer

import (
	"github.com/csmcal/wf2wf/internal/ir"
)

// distributedRetryCount is the default retry count for distributed targets;
// transient node failures are routine there.
const distributedRetryCount = 2

// inferRetries assigns a retry policy when the target runs under a
// distributed execution model and the task has none.
func (e *Engine) inferRetries(t *ir.Task, env string, shielded map[string]bool) int {
	if env != ir.EnvDistributedComputing && env != ir.EnvCloudNative {
		return 0
	}
	if shielded[ir.TaskPointer(t.ID, "retry_count")] {
		return 0
	}
	if _, ok := t.RetryCount.GetWithDefault(env); ok {
		return 0
	}

	if t.RetryCount == nil {
		t.RetryCount = &ir.EnvValue[int64]{}
	}
	t.RetryCount.SetFor(env, distributedRetryCount)

	if _, ok := t.RetryPolicy.GetWithDefault(env); !ok {
		if t.RetryPolicy == nil {
			t.RetryPolicy = &ir.EnvValue[string]{}
		}
		t.RetryPolicy.SetFor(env, ir.RetryExponential)
	}
	return 1
}
