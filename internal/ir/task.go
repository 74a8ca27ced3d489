package ir

// Retry policies.
const (
	RetryNone        = "none"
	RetryLinear      = "linear"
	RetryExponential = "exponential"
)

// Task is the unit of execution. Every resource, environment, command and
// advanced-feature field is environment-indexed: the same logical field may
// carry different concrete values under different execution environments.
type Task struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Doc   string `json:"doc,omitempty"`

	Inputs  []ParameterSpec `json:"inputs,omitempty"`
	Outputs []ParameterSpec `json:"outputs,omitempty"`

	Command *EnvValue[string] `json:"command,omitempty"`
	Script  *EnvValue[string] `json:"script,omitempty"`

	Requirements []RequirementSpec `json:"requirements,omitempty"`
	Hints        []RequirementSpec `json:"hints,omitempty"`

	// When is a guard expression captured verbatim from the source format.
	When    string       `json:"when,omitempty"`
	Scatter *ScatterSpec `json:"scatter,omitempty"`

	// Resources. Memory and disk are megabytes, time is seconds.
	CPU      *EnvValue[int64] `json:"cpu,omitempty"`
	MemMB    *EnvValue[int64] `json:"mem_mb,omitempty"`
	DiskMB   *EnvValue[int64] `json:"disk_mb,omitempty"`
	GPU      *EnvValue[int64] `json:"gpu,omitempty"`
	GPUMemMB *EnvValue[int64] `json:"gpu_mem_mb,omitempty"`
	TimeS    *EnvValue[int64] `json:"time_s,omitempty"`
	Threads  *EnvValue[int64] `json:"threads,omitempty"`

	// GPUCapability is a minimum compute capability string (e.g. "7.5").
	GPUCapability *EnvValue[string] `json:"gpu_capability,omitempty"`

	// Software environment.
	Conda     *EnvValue[string]            `json:"conda,omitempty"`
	Container *EnvValue[string]            `json:"container,omitempty"`
	Workdir   *EnvValue[string]            `json:"workdir,omitempty"`
	EnvVars   *EnvValue[map[string]string] `json:"env_vars,omitempty"`
	Modules   *EnvValue[[]string]          `json:"modules,omitempty"`

	// Error handling.
	RetryCount  *EnvValue[int64]  `json:"retry_count,omitempty"`
	RetryPolicy *EnvValue[string] `json:"retry_policy,omitempty"`
	Priority    *EnvValue[int64]  `json:"priority,omitempty"`

	// File transfer and advanced features.
	FileTransferMode *EnvValue[string] `json:"file_transfer_mode,omitempty"`
	Checkpointing    *EnvValue[bool]   `json:"checkpointing,omitempty"`
	LogConfig        *EnvValue[string] `json:"log_config,omitempty"`
	Security         *EnvValue[string] `json:"security,omitempty"`
	NetworkAccess    *EnvValue[bool]   `json:"network_access,omitempty"`

	// ExtraAttributes preserves scheduler-specific attributes (e.g. custom
	// ClassAds) that no IR field covers. Keys keep their native spelling.
	ExtraAttributes map[string]Value `json:"extra_attributes,omitempty"`

	Intent []string         `json:"intent,omitempty"`
	Params map[string]Value `json:"params,omitempty"`
	Meta   map[string]Value `json:"meta,omitempty"`
}

// NewTask returns a task with the given id.
func NewTask(id string) *Task {
	return &Task{ID: id}
}

// CommandFor returns the task command for env, falling back to the default.
func (t *Task) CommandFor(env string) string {
	if s, ok := t.Command.GetWithDefault(env); ok {
		return s
	}
	return ""
}

// ScriptFor returns the task script for env, falling back to the default.
func (t *Task) ScriptFor(env string) string {
	if s, ok := t.Script.GetWithDefault(env); ok {
		return s
	}
	return ""
}

// ResourceFields enumerates the integer resource fields by IR name. The map
// values point at the task's own containers, so callers can read and write
// through them; absent fields are allocated lazily by the setter.
func (t *Task) ResourceFields() map[string]**EnvValue[int64] {
	return map[string]**EnvValue[int64]{
		"cpu":        &t.CPU,
		"mem_mb":     &t.MemMB,
		"disk_mb":    &t.DiskMB,
		"gpu":        &t.GPU,
		"gpu_mem_mb": &t.GPUMemMB,
		"time_s":     &t.TimeS,
		"threads":    &t.Threads,
	}
}

// ResourceFor reads one named resource for env (with default fallback).
func (t *Task) ResourceFor(name, env string) (int64, bool) {
	f, ok := t.ResourceFields()[name]
	if !ok || *f == nil {
		return 0, false
	}
	return (*f).GetWithDefault(env)
}

// SetResourceFor writes one named resource for env, allocating the container
// on first use. Unknown names are ignored.
func (t *Task) SetResourceFor(name, env string, v int64) {
	f, ok := t.ResourceFields()[name]
	if !ok {
		return
	}
	if *f == nil {
		*f = &EnvValue[int64]{}
	}
	(*f).SetFor(env, v)
}

// SetResourceDefault writes one named resource into the default slot.
// Importers use this: a value parsed from source text is not bound to any
// particular execution environment.
func (t *Task) SetResourceDefault(name string, v int64) {
	f, ok := t.ResourceFields()[name]
	if !ok {
		return
	}
	if *f == nil {
		*f = &EnvValue[int64]{}
	}
	(*f).SetDefault(v)
}

// HasRequirement reports whether a requirement or hint with the given class
// is present.
func (t *Task) HasRequirement(class string) bool {
	for _, r := range t.Requirements {
		if r.ClassName == class {
			return true
		}
	}
	for _, h := range t.Hints {
		if h.ClassName == class {
			return true
		}
	}
	return false
}
