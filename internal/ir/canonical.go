package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serialises a workflow to its canonical form: object keys
// sorted lexically, unset optional fields omitted, numbers preserved
// verbatim. The canonical form is the input to checksumming and the
// byte-stable interchange representation.
//
// encoding/json already sorts map keys; struct field order is normalised by
// round-tripping through a generic document.
func CanonicalJSON(w *Workflow) ([]byte, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("serialising workflow: %w", err)
	}
	return canonicalise(raw)
}

// CanonicalIndentJSON is CanonicalJSON with two-space indentation, used when
// writing IR files for humans.
func CanonicalIndentJSON(w *Workflow) ([]byte, error) {
	canon, err := CanonicalJSON(w)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canon, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// canonicalise re-serialises arbitrary JSON with sorted keys and preserved
// number literals.
func canonicalise(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("canonicalising: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("canonicalising: %w", err)
	}
	return out, nil
}

// FromJSON decodes a workflow from canonical or legacy JSON.
func FromJSON(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding workflow: %w", err)
	}
	if w.Tasks == nil {
		w.Tasks = map[string]*Task{}
	}
	return &w, nil
}
