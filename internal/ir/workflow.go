package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors for IR mutation failures.
var (
	// ErrDuplicateID indicates a task id already present in the workflow.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrUnknownTaskRef indicates an edge endpoint that is not a task id.
	ErrUnknownTaskRef = errors.New("unknown task reference")

	// ErrCycleIntroduced indicates an edge that would make the graph cyclic.
	ErrCycleIntroduced = errors.New("cycle introduced")
)

// Edge is a directed dependency parent → child between task ids.
type Edge struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Workflow is the root IR container. Tasks are keyed by id; insertion order
// is preserved for reproducible export.
type Workflow struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Label      string `json:"label,omitempty"`
	Doc        string `json:"doc,omitempty"`
	CWLVersion string `json:"cwl_version,omitempty"`

	Inputs  []ParameterSpec `json:"inputs,omitempty"`
	Outputs []ParameterSpec `json:"outputs,omitempty"`

	Tasks map[string]*Task `json:"tasks,omitempty"`
	Edges []Edge           `json:"edges,omitempty"`

	Requirements []RequirementSpec `json:"requirements,omitempty"`
	Hints        []RequirementSpec `json:"hints,omitempty"`

	Provenance    *ProvenanceSpec    `json:"provenance,omitempty"`
	Documentation *DocumentationSpec `json:"documentation,omitempty"`
	BCO           *BCOSpec           `json:"bco,omitempty"`

	Metadata map[string]Value `json:"metadata,omitempty"`
	LossMap  []LossEntry      `json:"loss_map,omitempty"`

	taskOrder []string
}

// NewWorkflow returns an empty workflow with the given name and version.
func NewWorkflow(name, version string) *Workflow {
	return &Workflow{
		Name:    name,
		Version: version,
		Tasks:   map[string]*Task{},
	}
}

// AddTask adds t, failing with ErrDuplicateID if the id is taken.
func (w *Workflow) AddTask(t *Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	if w.Tasks == nil {
		w.Tasks = map[string]*Task{}
	}
	if _, exists := w.Tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	w.Tasks[t.ID] = t
	w.taskOrder = append(w.taskOrder, t.ID)
	return nil
}

// AddEdge adds a parent → child dependency. Both endpoints must exist and the
// edge must not close a cycle; the reachability check is incremental and
// bounded by O(V+E).
func (w *Workflow) AddEdge(parent, child string) error {
	if _, ok := w.Tasks[parent]; !ok {
		return fmt.Errorf("%w: parent %s", ErrUnknownTaskRef, parent)
	}
	if _, ok := w.Tasks[child]; !ok {
		return fmt.Errorf("%w: child %s", ErrUnknownTaskRef, child)
	}
	if parent == child {
		return fmt.Errorf("%w: self edge %s", ErrCycleIntroduced, parent)
	}
	// parent reachable from child ⇒ the new edge closes a cycle.
	if w.reachable(child, parent) {
		return fmt.Errorf("%w: %s -> %s", ErrCycleIntroduced, parent, child)
	}
	for _, e := range w.Edges {
		if e.Parent == parent && e.Child == child {
			return nil
		}
	}
	w.Edges = append(w.Edges, Edge{Parent: parent, Child: child})
	return nil
}

// TaskOrder returns task ids in insertion order. Workflows decoded from JSON
// fall back to lexical order, which is equally reproducible.
func (w *Workflow) TaskOrder() []string {
	if len(w.taskOrder) == len(w.Tasks) {
		return append([]string(nil), w.taskOrder...)
	}
	ids := make([]string, 0, len(w.Tasks))
	for id := range w.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Task returns the task with the given id.
func (w *Workflow) Task(id string) (*Task, bool) {
	t, ok := w.Tasks[id]
	return t, ok
}

// Parents returns the parent ids of a task, in edge order.
func (w *Workflow) Parents(id string) []string {
	var out []string
	for _, e := range w.Edges {
		if e.Child == id {
			out = append(out, e.Parent)
		}
	}
	return out
}

// Children returns the child ids of a task, in edge order.
func (w *Workflow) Children(id string) []string {
	var out []string
	for _, e := range w.Edges {
		if e.Parent == id {
			out = append(out, e.Child)
		}
	}
	return out
}

// RecordLoss appends an entry to the workflow's loss map.
func (w *Workflow) RecordLoss(entry LossEntry) {
	w.LossMap = append(w.LossMap, entry)
}

type workflowAlias Workflow

// UnmarshalJSON decodes a workflow and rebuilds the derived task order.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var a workflowAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*w = Workflow(a)
	w.taskOrder = nil
	for _, id := range w.TaskOrder() {
		w.taskOrder = append(w.taskOrder, id)
	}
	return nil
}
