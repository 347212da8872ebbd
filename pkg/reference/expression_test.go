package reference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStack() Stack {
	return Stack{
		{"signatures": []any{"~Ada_Lovelace1"}, "content": map[string]any{"title": map[string]any{"value": "Re: review"}}},
		{"id": "ICML.cc/2025/Paper7/-/Official_Comment"},
		{"id": "note-7", "number": 7, "content": map[string]any{"noteNumber": map[string]any{"value": 7}}},
		{"venue_id": "ICML.cc/2025", "nullable": nil},
	}
}

func TestResolve(t *testing.T) {
	stack := testStack()

	tests := []struct {
		name string
		expr Expression
		want any
	}{
		{"innermost list", At(0, "signatures"), []any{"~Ada_Lovelace1"}},
		{"list index", At(0, "signatures/0"), "~Ada_Lovelace1"},
		{"nested map", At(2, "content/noteNumber/value"), 7},
		{"outer frame", At(3, "venue_id"), "ICML.cc/2025"},
		{"whole frame", At(1, ""), map[string]any{"id": "ICML.cc/2025/Paper7/-/Official_Comment"}},
		{"present null is a value", At(3, "nullable"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.expr, stack)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_DepthOutOfRange(t *testing.T) {
	stack := testStack()

	for _, depth := range []int{len(stack), len(stack) + 3, -1} {
		got, err := Resolve(At(depth, "venue_id"), stack)
		assert.Nil(t, got, "must never return a default value")
		assert.ErrorIs(t, err, ErrDepthOutOfRange)

		var dErr *DepthOutOfRangeError
		require.True(t, errors.As(err, &dErr))
		assert.Equal(t, len(stack), dErr.Frames)
	}

	_, err := Resolve(At(0, "x"), nil)
	assert.ErrorIs(t, err, ErrDepthOutOfRange)
}

func TestResolve_PathNotFound(t *testing.T) {
	stack := testStack()

	tests := []struct {
		expr    Expression
		segment string
	}{
		{At(2, "content/missing/value"), "missing"},
		{At(0, "signatures/4"), "4"},
		{At(0, "signatures/first"), "first"},
		{At(3, "nullable/deeper"), "deeper"},
	}

	for _, tt := range tests {
		_, err := Resolve(tt.expr, stack)
		assert.ErrorIs(t, err, ErrPathNotFound, tt.expr.String())

		var pErr *PathNotFoundError
		require.True(t, errors.As(err, &pErr))
		assert.Equal(t, tt.segment, pErr.Segment)
	}
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		in      string
		want    Expression
		wantErr bool
	}{
		{"${2/content/noteNumber/value}", At(2, "content/noteNumber/value"), false},
		{"3/signatures", At(3, "signatures"), false},
		{"${1}", At(1, ""), false},
		{"${x/path}", Expression{}, true},
		{"${-1/path}", Expression{}, true},
		{"${2/path", Expression{}, true},
	}

	for _, tt := range tests {
		got, err := ParseExpression(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformed, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestLayout_Bind(t *testing.T) {
	layout := Layout{FrameNote, FrameDefinition, FrameEntity, FrameVenue}

	bound, err := layout.Bind(Anchored(FrameEntity, "number"))
	require.NoError(t, err)
	assert.Equal(t, At(2, "number"), bound)

	_, err = layout.Without(FrameEntity).Bind(Anchored(FrameEntity, "number"))
	assert.ErrorIs(t, err, ErrDepthOutOfRange)

	_, err = layout.Without(FrameNote).Bind(At(3, "venue_id"))
	assert.ErrorIs(t, err, ErrDepthOutOfRange)
}
