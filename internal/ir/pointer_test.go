package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPointer_Escaping(t *testing.T) {
	assert.Equal(t, "/tasks/align/priority", TaskPointer("align", "priority"))
	assert.Equal(t, "/tasks/a~1b/cpu", TaskPointer("a/b", "cpu"))
	assert.Equal(t, "/tasks/x~0y", TaskPointer("x~y"))
}

func TestResolvePointer(t *testing.T) {
	doc := map[string]any{
		"tasks": map[string]any{
			"align": map[string]any{
				"cpu": map[string]any{"default_value": float64(4)},
			},
		},
		"edges": []any{
			map[string]any{"parent": "a", "child": "b"},
		},
	}

	v, ok := ResolvePointer(doc, "/tasks/align/cpu/default_value")
	require.True(t, ok)
	assert.Equal(t, float64(4), v)

	v, ok = ResolvePointer(doc, "/edges/0/parent")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = ResolvePointer(doc, "/tasks/ghost")
	assert.False(t, ok)
	_, ok = ResolvePointer(doc, "/edges/7")
	assert.False(t, ok)
	_, ok = ResolvePointer(doc, "no-slash")
	assert.False(t, ok)

	v, ok = ResolvePointer(doc, "")
	require.True(t, ok)
	assert.Equal(t, doc, v)
}

func TestPointerResolvable(t *testing.T) {
	w := NewWorkflow("wf", "1.0")
	task := NewTask("align")
	task.Priority = NewEnvValue(int64(10))
	require.NoError(t, w.AddTask(task))

	assert.True(t, PointerResolvable(w, "/tasks/align/priority"))
	assert.False(t, PointerResolvable(w, "/tasks/align/gpu"))
	// The parent resolves, so a reinjection could add the leaf.
	assert.True(t, PointerParentResolvable(w, "/tasks/align/gpu"))
	assert.False(t, PointerParentResolvable(w, "/tasks/ghost/gpu"))
}
