package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraint_Check_Required(t *testing.T) {
	c := Constraint{Type: String()}
	assert.Error(t, c.Check(nil, false))
	assert.NoError(t, c.Check("x", true))

	c.Optional = true
	assert.NoError(t, c.Check(nil, false))
}

func TestConstraint_Check_Enum(t *testing.T) {
	c := Constraint{Type: String(), Enum: []any{"Accept", "Reject"}}
	assert.NoError(t, c.Check("Accept", true))
	assert.Error(t, c.Check("Maybe", true))

	multi := Constraint{Type: Slice(String()), Enum: []any{"a", "b", "c"}}
	assert.NoError(t, multi.Check([]any{"a", "c"}, true))
	assert.Error(t, multi.Check([]any{"a", "z"}, true))
}

func TestConstraint_Check_Const(t *testing.T) {
	c := Constraint{Type: Int(), Const: 3}
	assert.NoError(t, c.Check(json.Number("3"), true))
	assert.NoError(t, c.Check(float64(3), true))
	assert.Error(t, c.Check(4, true))
}

func TestConstraint_Check_Regex(t *testing.T) {
	c := Constraint{Type: String(), Regex: `~.*`}
	assert.NoError(t, c.Check("~Alice_Smith1", true))
	assert.Error(t, c.Check("alice@example.com", true))
	assert.Error(t, c.Check(42, true))

	list := Constraint{Regex: `[a-z]+`}
	assert.NoError(t, list.Check([]string{"abc", "def"}, true))
	assert.Error(t, list.Check([]any{"abc", "DEF"}, true))
}

func TestConstraint_Check_Range(t *testing.T) {
	c := Constraint{Type: Int(), Range: Closed(1, 5)}
	assert.NoError(t, c.Check(1, true))
	assert.NoError(t, c.Check(5, true))
	assert.Error(t, c.Check(6, true))

	open := Constraint{Type: Float(), Range: HalfOpen(0, 1)}
	assert.NoError(t, open.Check(0.0, true))
	assert.Error(t, open.Check(1.0, true))

	assert.Error(t, Constraint{Range: AtLeast(0)}.Check("abc", true))
}

func TestConstraint_Check_DeleteMarker(t *testing.T) {
	c := Constraint{Type: String()}
	assert.Error(t, c.Check(DeleteMarker(), true), "non-deletable field rejects the marker")

	c.Deletable = true
	assert.NoError(t, c.Check(DeleteMarker(), true))
	assert.NoError(t, c.Check(nil, false), "deletable fields may be omitted")
	assert.Error(t, c.Check(map[string]any{"delete": false}, true))
}

func TestIsDeleteMarker(t *testing.T) {
	assert.True(t, IsDeleteMarker(map[string]any{"delete": true}))
	assert.False(t, IsDeleteMarker(map[string]any{"delete": true, "x": 1}))
	assert.False(t, IsDeleteMarker(map[string]any{"delete": "true"}))
	assert.False(t, IsDeleteMarker(nil))
}

func TestConstraint_ConflictsWith(t *testing.T) {
	a := Constraint{Const: "Withdrawn"}
	b := Constraint{Const: "Desk Rejected"}
	assert.True(t, a.ConflictsWith(b))
	assert.False(t, a.ConflictsWith(Constraint{Const: "Withdrawn"}))
	assert.False(t, a.ConflictsWith(Constraint{}))

	ref := reference.MustParseTemplate("${2/content/title/value}")
	r := Constraint{ConstRef: &ref}
	assert.True(t, r.ConflictsWith(a))
	assert.False(t, r.ConflictsWith(Constraint{ConstRef: &ref}))
}

func TestConstraint_Verify(t *testing.T) {
	assert.NoError(t, Constraint{Type: String(), Enum: []any{"a"}, Const: "a"}.Verify())
	assert.Error(t, Constraint{Regex: "("}.Verify())
	assert.Error(t, Constraint{Type: Int(), Enum: []any{"a"}}.Verify())
	assert.Error(t, Constraint{Type: String(), Enum: []any{"a"}, Const: "b"}.Verify())
}

func TestConstraint_WithConst(t *testing.T) {
	ref := reference.MustParseTemplate("${1/id}")
	c := Constraint{Type: String(), ConstRef: &ref}.WithConst("venue/-/Paper1")
	assert.Nil(t, c.ConstRef)
	assert.NoError(t, c.Check("venue/-/Paper1", true))
	assert.Error(t, c.Check("venue/-/Paper2", true))
}

func TestConstraint_JSON(t *testing.T) {
	in := Constraint{Type: Slice(String()), Enum: []any{"a", "b"}, Optional: true, Range: Closed(0, 2)}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"[string]"`)

	var out Constraint
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "[string]", out.Type.Name())
	assert.True(t, out.Optional)
	assert.Len(t, out.Enum, 2)
	assert.True(t, out.Range.Contains(1))

	assert.Error(t, json.Unmarshal([]byte(`{"type":"widget"}`), &out))
}

func TestCheckFields(t *testing.T) {
	fields := Fields{
		"title":    {Type: String()},
		"abstract": {Type: String(), Optional: true},
	}

	assert.NoError(t, CheckFields(fields, map[string]any{"title": "A"}))

	err := CheckFields(fields, map[string]any{"abstract": 1, "extra": true})
	require.Error(t, err)
	errs := ValidationErrors(err)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), "abstract")
	assert.Contains(t, errs[1].Error(), "title")
	assert.Contains(t, errs[2].Error(), "extra")
}

func TestConstraint_Verify_SliceEnum(t *testing.T) {
	assert.NoError(t, Constraint{Type: Slice(String()), Enum: []any{"a", "b"}}.Verify())
	assert.Error(t, Constraint{Type: Slice(Int()), Enum: []any{"a"}}.Verify())
}

func TestConstraint_Check_Length(t *testing.T) {
	c := Constraint{Type: String(), MinLength: 1, MaxLength: 5000}
	require.NoError(t, c.Verify())
	assert.NoError(t, c.Check("A short abstract.", true))
	assert.NoError(t, c.Check(strings.Repeat("é", 5000), true), "length counts characters, not bytes")
	assert.ErrorContains(t, c.Check(strings.Repeat("a", 5001), true), "exceeds the maximum of 5000")
	assert.ErrorContains(t, c.Check("", true), "below the minimum of 1")
	assert.ErrorContains(t, Constraint{MaxLength: 10}.Check(3, true), "requires text")

	long := Constraint{Type: String(), MinLength: 1, MaxLength: 200000}
	assert.NoError(t, long.Verify())
	assert.NoError(t, long.Check(strings.Repeat("x\n", 100000), true))

	assert.Error(t, Constraint{MinLength: 10, MaxLength: 2}.Verify())
	assert.Error(t, Constraint{MinLength: -1}.Verify())
	assert.NoError(t, Constraint{MinLength: 10}.Verify(), "a zero max is unbounded")
}

func TestConstraint_JSON_Length(t *testing.T) {
	c := Constraint{Type: String(), MinLength: 1, MaxLength: 2500}
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"max_length":2500`)

	var back Constraint
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 1, back.MinLength)
	assert.Equal(t, 2500, back.MaxLength)
}
