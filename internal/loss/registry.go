// Package loss implements the loss side-car system: a conversion-scoped
// registry of loss entries, side-car serialisation, and reinjection of
// recorded values on re-import.
package loss

import (
	"github.com/csmcal/wf2wf/internal/ir"
)

// Registry buffers loss entries for one conversion. It is append-only
// between resets and not safe for concurrent conversions; the orchestrator
// threads a single instance through the pipeline.
type Registry struct {
	entries []ir.LossEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Reset clears the buffer at the start of a conversion.
func (r *Registry) Reset() {
	r.entries = nil
}

// Record appends an entry, filling defaults for status (lost), origin
// (wf2wf) and severity (warn) when unset.
func (r *Registry) Record(entry ir.LossEntry) {
	if entry.Status == "" {
		entry.Status = ir.StatusLost
	}
	if entry.Origin == "" {
		entry.Origin = ir.OriginWf2wf
	}
	if entry.Severity == "" {
		entry.Severity = ir.SeverityWarn
	}
	r.entries = append(r.entries, entry)
}

// RecordLost is shorthand for recording a plainly lost field.
func (r *Registry) RecordLost(pointer, field string, value ir.Value, reason, category, severity string) {
	r.Record(ir.LossEntry{
		JSONPointer: pointer,
		Field:       field,
		LostValue:   value,
		Reason:      reason,
		Category:    category,
		Severity:    severity,
		Status:      ir.StatusLost,
		Origin:      ir.OriginWf2wf,
	})
}

// Entries returns the recorded entries in record order.
func (r *Registry) Entries() []ir.LossEntry {
	return append([]ir.LossEntry(nil), r.entries...)
}

// Len returns the number of recorded entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// CountBySeverity returns how many entries with one of the given statuses
// meet or exceed the severity threshold.
func (r *Registry) CountBySeverity(threshold string, statuses ...string) int {
	rank := map[string]int{ir.SeverityInfo: 0, ir.SeverityWarn: 1, ir.SeverityError: 2}
	min, ok := rank[threshold]
	if !ok {
		return 0
	}
	statusSet := map[string]bool{}
	for _, s := range statuses {
		statusSet[s] = true
	}
	n := 0
	for _, e := range r.entries {
		if len(statusSet) > 0 && !statusSet[e.Status] {
			continue
		}
		if rank[e.Severity] >= min {
			n++
		}
	}
	return n
}
