package ir

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ResolvePointer resolves an RFC 6901 JSON pointer against a decoded JSON
// document (maps, slices, scalars). The empty pointer resolves to the
// document itself.
func ResolvePointer(doc any, pointer string) (any, bool) {
	if pointer == "" {
		return doc, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	cur := doc
	for _, raw := range strings.Split(pointer[1:], "/") {
		token := decodePointerToken(raw)
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[token]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// PointerResolvable reports whether the pointer resolves against the
// workflow's canonical JSON document.
func PointerResolvable(w *Workflow, pointer string) bool {
	raw, err := CanonicalJSON(w)
	if err != nil {
		return false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	_, ok := ResolvePointer(doc, pointer)
	return ok
}

// PointerParentResolvable reports whether the pointer's parent container
// resolves; a reinjection can add a leaf there even when the leaf itself is
// currently absent.
func PointerParentResolvable(w *Workflow, pointer string) bool {
	i := strings.LastIndex(pointer, "/")
	if i < 0 {
		return false
	}
	return PointerResolvable(w, pointer[:i])
}

func decodePointerToken(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

// EncodePointerToken escapes a token for embedding in a JSON pointer.
func EncodePointerToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// TaskPointer builds the JSON pointer for a task field, escaping the id.
func TaskPointer(taskID string, field ...string) string {
	parts := []string{"", "tasks", EncodePointerToken(taskID)}
	for _, f := range field {
		parts = append(parts, EncodePointerToken(f))
	}
	return strings.Join(parts, "/")
}
