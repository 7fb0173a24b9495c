package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueFromAny(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected IRValue
	}{
		{"string", "relu", IRString("relu")},
		{"bool", true, IRBool(true)},
		{"int", 7, IRInt(7)},
		{"int64", int64(-3), IRInt(-3)},
		{"uint64", uint64(12), IRInt(12)},
		{"integral float", float64(16), IRInt(16)},
		{"json number", json.Number("9007199254740993"), IRInt(9007199254740993)},
		{"array", []any{"a", 1}, IRArray{IRString("a"), IRInt(1)}},
		{"object", map[string]any{"k": map[string]any{"n": 2}}, IRObject{"k": IRObject{"n": IRInt(2)}}},
		{"ir value passthrough", IRInt(5), IRInt(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValueFromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestValueFromAnyRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"null", nil},
		{"fractional float", 0.5},
		{"fractional json number", json.Number("1.5")},
		{"nested float", []any{1, 2.5}},
		{"nested null", map[string]any{"k": nil}},
		{"unsupported", struct{}{}},
		{"uint64 overflow", uint64(1 << 63)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValueFromAny(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestValueToAnyRoundTrip(t *testing.T) {
	obj := IRObject{
		"s": IRString("x"),
		"n": IRInt(3),
		"b": IRBool(false),
		"a": IRArray{IRInt(1), IRObject{"k": IRString("v")}},
	}

	plain := obj.ToMap()
	assert.Equal(t, map[string]any{
		"s": "x",
		"n": int64(3),
		"b": false,
		"a": []any{int64(1), map[string]any{"k": "v"}},
	}, plain)

	back, err := ObjectFromMap(plain)
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}

func TestObjectFromNilMap(t *testing.T) {
	obj, err := ObjectFromMap(nil)
	require.NoError(t, err)
	assert.Nil(t, obj)
	assert.Nil(t, IRObject(nil).ToMap())
	assert.Nil(t, IRObject(nil).Clone())
}

func TestCloneValueDeep(t *testing.T) {
	orig := IRObject{"a": IRArray{IRObject{"k": IRInt(1)}}}
	c := orig.Clone()
	c["a"].(IRArray)[0].(IRObject)["k"] = IRInt(2)

	assert.Equal(t, IRInt(1), orig["a"].(IRArray)[0].(IRObject)["k"])
}
