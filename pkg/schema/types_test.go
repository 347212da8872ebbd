package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes_Validate(t *testing.T) {
	now := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	tests := []struct {
		name  string
		typ   Type
		value any
		ok    bool
	}{
		{"string", String(), "Accept", true},
		{"string rejects number", String(), 1, false},
		{"int", Int(), 3, true},
		{"int from json", Int(), json.Number("3"), true},
		{"whole float is int", Int(), float64(3), true},
		{"fraction is not int", Int(), 3.5, false},
		{"bad json number", Int(), json.Number("3.5"), false},
		{"float", Float(), 0.25, true},
		{"int is float", Float(), int64(2), true},
		{"time is not float", Float(), now, false},
		{"bool", Bool(), true, true},
		{"bool rejects string", Bool(), "true", false},
		{"date from time", Date(), now, true},
		{"date from rfc3339", Date(), "2025-03-01T23:59:00Z", true},
		{"date from epoch ms", Date(), float64(now.UnixMilli()), true},
		{"date rejects free text", Date(), "next week", false},
		{"any", Any(), map[string]any{}, true},
		{"any rejects nil", Any(), nil, false},
		{"list", Slice(String()), []any{"a", "b"}, true},
		{"typed list", Slice(Int()), []int{1, 2}, true},
		{"list item", Slice(String()), []any{"a", 2}, false},
		{"list rejects scalar", Slice(String()), "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSlice_ItemError(t *testing.T) {
	err := Slice(Int()).Validate([]any{1, "two"})
	require.Error(t, err)
	assert.Equal(t, "item 1: expected int, got string", err.Error())
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"string", "int", "float", "bool", "date", "any", "[string]", "[[int]]"} {
		typ, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, typ.Name())
	}

	list, err := ParseType("[date]")
	require.NoError(t, err)
	st, ok := list.(*SliceType)
	require.True(t, ok)
	assert.Equal(t, "date", st.Elem().Name())

	for _, name := range []string{"", "decimal", "[]", "[string", "[map]"} {
		_, err := ParseType(name)
		assert.Error(t, err, name)
	}
}
