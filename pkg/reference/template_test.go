package reference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_ParseAndString(t *testing.T) {
	wire := "ICML.cc/2025/Paper${2/number}/Reviewer_${0/content/slot}"

	tpl, err := ParseTemplate(wire)
	require.NoError(t, err)
	assert.Len(t, tpl.Parts, 4)
	assert.Equal(t, wire, tpl.String())
	assert.False(t, tpl.IsLiteral())
	assert.Equal(t, []Expression{At(2, "number"), At(0, "content/slot")}, tpl.Expressions())

	_, err = ParseTemplate("broken${2/number")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTemplate_Render(t *testing.T) {
	stack := testStack()

	tpl := Concat(Lit("ICML.cc/2025/Paper"), Ref(At(2, "number")), Lit("/Reviewers"))
	got, err := tpl.Render(stack)
	require.NoError(t, err)
	assert.Equal(t, "ICML.cc/2025/Paper7/Reviewers", got)

	_, err = Concat(Lit("x"), Ref(At(2, "missing"))).Render(stack)
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = Ref(At(3, "nullable")).Render(stack)
	assert.Error(t, err, "null must not render as empty text")
}

func TestTemplate_Value(t *testing.T) {
	stack := testStack()

	v, err := Ref(At(0, "signatures")).Value(stack)
	require.NoError(t, err)
	assert.Equal(t, []any{"~Ada_Lovelace1"}, v)

	v, err = Lit("plain").Value(stack)
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

func TestTemplate_ConcatMergesLiterals(t *testing.T) {
	tpl := Concat(Lit("a"), Lit("b"), Ref(At(1, "id")), Lit("c"), Lit("d"))
	require.Len(t, tpl.Parts, 3)
	assert.Equal(t, "ab", tpl.Parts[0].Literal)
	assert.Equal(t, "cd", tpl.Parts[2].Literal)

	text, ok := Concat(Lit("x"), Lit("y")).Literal()
	assert.True(t, ok)
	assert.Equal(t, "xy", text)
}

func TestTemplate_JSON(t *testing.T) {
	tpl := Concat(Lit("Paper"), Ref(At(2, "number")))

	data, err := json.Marshal(tpl)
	require.NoError(t, err)
	assert.JSONEq(t, `"Paper${2/number}"`, string(data))

	var decoded Template
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tpl, decoded)
}

func TestTemplate_Bind(t *testing.T) {
	layout := Layout{FrameNote, FrameDefinition, FrameVenue}

	bound, err := Concat(Lit("v:"), Ref(Anchored(FrameVenue, "venue_id"))).Bind(layout)
	require.NoError(t, err)
	assert.Equal(t, "v:${2/venue_id}", bound.String())

	_, err = Ref(Anchored(FrameEntity, "number")).Bind(layout)
	assert.ErrorIs(t, err, ErrDepthOutOfRange)
}
