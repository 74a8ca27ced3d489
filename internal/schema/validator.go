// Package schema validates IR documents and loss side-cars against the
// bundled v0.1 schemas and enforces the cross-field invariants the schemas
// cannot express (acyclicity, reference integrity, resource bounds).
package schema

import (
	"embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/csmcal/wf2wf/internal/ir"
)

//go:embed cue/workflow.cue cue/loss.cue
var schemaFS embed.FS

// SchemaVersion is the bundled schema version.
const SchemaVersion = "v0.1"

// Issue is one structured validation finding.
type Issue struct {
	JSONPointer string
	Rule        string
	Message     string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s: %s", i.JSONPointer, i.Rule, i.Message)
}

// Issues is a collection of validation findings.
type Issues []Issue

// Error implements the error interface.
func (e Issues) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for _, i := range e {
		sb.WriteString(fmt.Sprintf("  %s\n", i.Error()))
	}
	return sb.String()
}

// Validator validates workflows and side-cars against the embedded CUE
// schemas. Compile once, validate many.
type Validator struct {
	ctx      *cue.Context
	workflow cue.Value
	loss     cue.Value
}

// NewValidator creates a validator with the bundled schemas compiled.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	wf, err := compileSchema(ctx, "cue/workflow.cue")
	if err != nil {
		return nil, err
	}
	loss, err := compileSchema(ctx, "cue/loss.cue")
	if err != nil {
		return nil, err
	}

	return &Validator{ctx: ctx, workflow: wf, loss: loss}, nil
}

func compileSchema(ctx *cue.Context, name string) (cue.Value, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return cue.Value{}, fmt.Errorf("reading embedded schema %s: %w", name, err)
	}
	v := ctx.CompileBytes(data, cue.Filename(name))
	if v.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling schema %s: %w", name, v.Err())
	}
	return v, nil
}

// ValidateWorkflow checks a workflow's canonical serialisation against the
// schema, then the cross-field invariants. Returns nil or an Issues value.
func (v *Validator) ValidateWorkflow(w *ir.Workflow) error {
	canon, err := ir.CanonicalJSON(w)
	if err != nil {
		return fmt.Errorf("canonicalising workflow: %w", err)
	}

	issues := v.unify(v.workflow, canon, "workflow")
	issues = append(issues, checkInvariants(w)...)

	if len(issues) > 0 {
		return Issues(issues)
	}
	return nil
}

// ValidateSideCar checks a raw side-car document against the loss schema.
func (v *Validator) ValidateSideCar(doc []byte) error {
	issues := v.unify(v.loss, doc, "side-car")
	if len(issues) > 0 {
		return Issues(issues)
	}
	return nil
}

// unify decodes raw JSON into CUE and unifies it with the schema, converting
// CUE errors into structured issues.
func (v *Validator) unify(schema cue.Value, raw []byte, what string) []Issue {
	val := v.ctx.CompileBytes(raw)
	if val.Err() != nil {
		return []Issue{{JSONPointer: "", Rule: "json", Message: val.Err().Error()}}
	}

	unified := schema.Unify(val)
	err := unified.Validate(cue.Concrete(true), cue.Final())
	if err == nil {
		return nil
	}

	var issues []Issue
	for _, e := range cueerrors.Errors(err) {
		issues = append(issues, Issue{
			JSONPointer: pathToPointer(e.Path()),
			Rule:        what + "-schema",
			Message:     e.Error(),
		})
	}
	return issues
}

func pathToPointer(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return "/" + strings.Join(path, "/")
}

// checkInvariants enforces the cross-field invariants of the IR contract.
func checkInvariants(w *ir.Workflow) []Issue {
	var issues []Issue

	// Edge endpoints resolve to task ids.
	for i, e := range w.Edges {
		if _, ok := w.Tasks[e.Parent]; !ok {
			issues = append(issues, Issue{
				JSONPointer: fmt.Sprintf("/edges/%d/parent", i),
				Rule:        "reference-integrity",
				Message:     fmt.Sprintf("parent %q is not a task", e.Parent),
			})
		}
		if _, ok := w.Tasks[e.Child]; !ok {
			issues = append(issues, Issue{
				JSONPointer: fmt.Sprintf("/edges/%d/child", i),
				Rule:        "reference-integrity",
				Message:     fmt.Sprintf("child %q is not a task", e.Child),
			})
		}
	}

	// Acyclicity.
	if !w.IsAcyclic() {
		issues = append(issues, Issue{
			JSONPointer: "/edges",
			Rule:        "acyclicity",
			Message:     "the task graph contains a cycle",
		})
	}

	// Parameter ids unique per collection.
	issues = append(issues, checkParamIDs("/inputs", w.Inputs)...)
	issues = append(issues, checkParamIDs("/outputs", w.Outputs)...)
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		base := ir.TaskPointer(id)
		issues = append(issues, checkParamIDs(base+"/inputs", t.Inputs)...)
		issues = append(issues, checkParamIDs(base+"/outputs", t.Outputs)...)
		issues = append(issues, checkTaskResources(id, t)...)
	}

	// Loss map pointers resolve (status reapplied was resolvable earlier and
	// is exempt).
	for i, entry := range w.LossMap {
		if entry.Status == ir.StatusReapplied {
			continue
		}
		if !ir.PointerResolvable(w, entry.JSONPointer) && !ir.PointerParentResolvable(w, entry.JSONPointer) {
			issues = append(issues, Issue{
				JSONPointer: fmt.Sprintf("/loss_map/%d/json_pointer", i),
				Rule:        "loss-pointer",
				Message:     fmt.Sprintf("pointer %q does not resolve", entry.JSONPointer),
			})
		}
	}

	return issues
}

func checkParamIDs(base string, params []ir.ParameterSpec) []Issue {
	var issues []Issue
	seen := map[string]bool{}
	for i, p := range params {
		if seen[p.ID] {
			issues = append(issues, Issue{
				JSONPointer: fmt.Sprintf("%s/%d/id", base, i),
				Rule:        "unique-parameter-id",
				Message:     fmt.Sprintf("duplicate parameter id %q", p.ID),
			})
		}
		seen[p.ID] = true
	}
	return issues
}

// checkTaskResources enforces the resource rule table across every
// environment a value applies to, including the default slot.
func checkTaskResources(taskID string, t *ir.Task) []Issue {
	var issues []Issue
	for name, field := range t.ResourceFields() {
		ev := *field
		if ev == nil {
			continue
		}
		check := func(v int64) {
			if err := CheckResource(name, v); err != nil {
				issues = append(issues, Issue{
					JSONPointer: ir.TaskPointer(taskID, name),
					Rule:        "resource-range",
					Message:     err.Error(),
				})
			}
		}
		if d, ok := ev.Default(); ok {
			check(d)
		}
		for _, b := range ev.Bindings() {
			check(b.Value)
		}
	}
	return issues
}
