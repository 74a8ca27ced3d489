package loss

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// ApplyResult summarises one reinjection pass.
type ApplyResult struct {
	Reapplied int
	LostAgain int

	// Entries carries every input entry with its post-apply status; the
	// registry records them so the next side-car reflects the outcome.
	Entries []ir.LossEntry
}

// Apply reinjects side-car entries into the workflow. For each entry the
// lost value is patched in at its JSON pointer; success transitions the
// entry to reapplied, any failure (unresolvable pointer, type mismatch,
// partial environment reconstruction) to lost_again.
//
// Entries already marked reapplied pass through untouched so a re-imported
// workflow does not double-apply them.
func Apply(w *ir.Workflow, entries []ir.LossEntry) (ApplyResult, error) {
	var res ApplyResult

	doc, err := ir.CanonicalJSON(w)
	if err != nil {
		return res, fmt.Errorf("serialising workflow for reinjection: %w", err)
	}

	for _, entry := range entries {
		if entry.Status == ir.StatusReapplied {
			res.Entries = append(res.Entries, entry)
			continue
		}

		patched, err := patchEntry(doc, entry)
		if err == nil {
			// The patched document must still decode as a workflow; a type
			// mismatch only surfaces here.
			if _, decodeErr := ir.FromJSON(patched); decodeErr == nil {
				doc = patched
				entry.Status = ir.StatusReapplied
				res.Reapplied++
				res.Entries = append(res.Entries, entry)
				continue
			} else {
				err = decodeErr
			}
		}

		output.Debug("loss entry not reapplied",
			"pointer", entry.JSONPointer, "error", err)
		entry.Status = ir.StatusLostAgain
		res.LostAgain++
		res.Entries = append(res.Entries, entry)
	}

	restored, err := ir.FromJSON(doc)
	if err != nil {
		return res, fmt.Errorf("decoding reinjected workflow: %w", err)
	}
	restored.LossMap = append([]ir.LossEntry(nil), res.Entries...)
	*w = *restored
	return res, nil
}

// patchEntry applies one entry's value at its pointer via a JSON-Patch add
// operation (add replaces existing members per RFC 6902).
func patchEntry(doc []byte, entry ir.LossEntry) ([]byte, error) {
	value, err := reinjectionValue(entry)
	if err != nil {
		return nil, err
	}

	op := []map[string]any{{
		"op":    "add",
		"path":  entry.JSONPointer,
		"value": value,
	}}
	rawPatch, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.DecodePatch(rawPatch)
	if err != nil {
		return nil, err
	}
	return patch.Apply(doc)
}

// reinjectionValue reconstructs the value to inject. Environment-specific
// lost values carry their full map under all_environment_values; the whole
// container is rebuilt, not merely a default.
func reinjectionValue(entry ir.LossEntry) (any, error) {
	obj, isObj := entry.LostValue.AsObject()
	if !isObj {
		return entry.LostValue.ToGo(), nil
	}

	allEnvs, hasAll := obj["all_environment_values"].AsObject()
	if !hasAll {
		return entry.LostValue.ToGo(), nil
	}

	container := map[string]any{}
	if def, ok := obj["default_value"]; ok && !def.IsNull() {
		container["default_value"] = def.ToGo()
	}

	// Group environments sharing a value into one binding.
	type binding struct {
		envs  []string
		value ir.Value
	}
	var bindings []binding
	for _, env := range sortedKeys(allEnvs) {
		if !ir.IsEnvironment(env) {
			return nil, fmt.Errorf("unknown environment %q in lost value", env)
		}
		v := allEnvs[env]
		placed := false
		for i := range bindings {
			if bindings[i].value.Equal(v) {
				bindings[i].envs = append(bindings[i].envs, env)
				placed = true
				break
			}
		}
		if !placed {
			bindings = append(bindings, binding{envs: []string{env}, value: v})
		}
	}

	values := make([]any, 0, len(bindings))
	for _, b := range bindings {
		values = append(values, map[string]any{
			"environments": b.envs,
			"value":        b.value.ToGo(),
		})
	}
	if len(values) > 0 {
		container["values"] = values
	}
	return container, nil
}

func sortedKeys(m map[string]ir.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// EnvLostValue builds the lost_value payload for an environment-specific
// field so Apply can later reconstruct the full container.
func EnvLostValue[T any](ev *ir.EnvValue[T]) ir.Value {
	fields := map[string]ir.Value{}
	if d, ok := ev.Default(); ok {
		fields["default_value"] = ir.FromGo(any(d))
		fields["value"] = ir.FromGo(any(d))
	}
	all := map[string]ir.Value{}
	for _, b := range ev.Bindings() {
		for _, env := range b.Environments {
			all[env] = ir.FromGo(any(b.Value))
		}
	}
	if len(all) > 0 {
		fields["all_environment_values"] = ir.Object(all)
	}
	return ir.Object(fields)
}
