package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_FromGoRoundTrip(t *testing.T) {
	v := FromGo(map[string]any{
		"name":  "align",
		"count": float64(3),
		"ratio": 1.5,
		"flags": []any{true, nil},
	})

	obj, ok := v.AsObject()
	require.True(t, ok)

	i, ok := obj["count"].AsInt()
	require.True(t, ok, "integral floats decode as ints")
	assert.Equal(t, int64(3), i)

	f, ok := obj["ratio"].AsFloat()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	arr, ok := obj["flags"].AsArray()
	require.True(t, ok)
	require.Len(t, arr, 2)
	assert.True(t, arr[1].IsNull())
}

func TestValue_MarshalSortsKeys(t *testing.T) {
	v := Object(map[string]Value{
		"zeta":  Int(1),
		"alpha": Int(2),
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zeta":1}`, string(data))
}

func TestValue_UnmarshalPreservesIntegers(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"big": 9007199254740993}`), &v))

	i, ok := v.Field("big").AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), i)
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Int(4).Equal(Float(4.0)), "numeric equality crosses kinds")
	assert.False(t, Int(4).Equal(Float(4.5)))
	assert.True(t, Null().Equal(Null()))
	assert.False(t, String("a").Equal(Int(1)))
	assert.True(t,
		Object(map[string]Value{"a": Array(Int(1))}).
			Equal(Object(map[string]Value{"a": Array(Int(1))})))
	assert.False(t,
		Object(map[string]Value{"a": Int(1)}).
			Equal(Object(map[string]Value{"a": Int(1), "b": Int(2)})))
}
