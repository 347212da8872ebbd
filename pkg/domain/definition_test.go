package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDefinition() *WorkflowDefinition {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &WorkflowDefinition{
		ID:      "Conf/2025/-/Request1/Decision",
		Stage:   StageDecision,
		Version: 1,
		Readers: PermissionSet{Literal: []reference.Template{reference.Lit("everyone")}},
		Reply: ReplyTemplate{
			Signatures: PermissionSet{Mode: ModeOneOf, Matchers: []Matcher{{Value: reference.Lit("Conf/2025/Program_Chairs")}}},
			Bindings:   map[string]reference.Template{"forum": reference.MustParseTemplate("${2/entity/id}")},
			Content: map[string]FieldSpec{
				"decision": {Order: 1, Value: schema.Constraint{Type: schema.String(), Enum: []any{"Accept", "Reject"}}},
			},
		},
		Window:  Window{Due: &due},
		Status:  DefinitionActive,
		Process: &FunctionRef{Name: "decision_process", Version: 1, Config: map[string]any{"notify": true}},
	}
}

func TestWorkflowDefinition_CloneIsDeep(t *testing.T) {
	d := sampleDefinition()
	c, err := d.Clone()
	require.NoError(t, err)
	assert.True(t, SameContent(d, c))

	c.Reply.Content["decision"] = FieldSpec{Order: 9}
	c.Process.Config["notify"] = false
	assert.Equal(t, 1, d.Reply.Content["decision"].Order)
	assert.Equal(t, true, d.Process.Config["notify"])
}

func TestWorkflowDefinition_JSONRoundTrip(t *testing.T) {
	d := sampleDefinition()
	data, err := d.Canonical()
	require.NoError(t, err)

	var out WorkflowDefinition
	require.NoError(t, DecodeJSON(data, &out))
	again, err := out.Canonical()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, "${2/entity/id}", out.Reply.Bindings["forum"].String())
	assert.Equal(t, "string", out.Reply.Content["decision"].Value.Type.Name())
}

func TestSameContent_IgnoresVersion(t *testing.T) {
	a := sampleDefinition()
	b, err := a.Clone()
	require.NoError(t, err)
	b.Version = 7
	assert.True(t, SameContent(a, b))

	b.Status = DefinitionExpired
	assert.False(t, SameContent(a, b))
	assert.True(t, SameContent(nil, nil))
	assert.False(t, SameContent(a, nil))
}

func TestWindow_Open(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := start.Add(48 * time.Hour)
	w := Window{Start: &start, Expiration: &exp}
	assert.False(t, w.Open(start.Add(-time.Second)))
	assert.True(t, w.Open(start))
	assert.False(t, w.Open(exp))
	assert.True(t, Window{}.Open(start))
}

func TestFrames(t *testing.T) {
	form := NewRequestForm("form-1", "Conf/2025", 1, map[string]any{"ethics": true}, time.Time{})
	stack := reference.Stack{
		Note{Signatures: []string{"~Alice1"}, Content: map[string]any{"title": "T"}}.Frame(),
		sampleDefinition().Frame(),
		Entity{ID: "paper-7", Number: 7}.Frame(),
		VenueFrame(form),
	}
	v, err := reference.Resolve(reference.At(2, "number"), stack)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = reference.Resolve(reference.At(3, "content/ethics"), stack)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = reference.Resolve(reference.At(0, "signatures/0"), stack)
	require.NoError(t, err)
	assert.Equal(t, "~Alice1", v)

	_, err = json.Marshal(stack)
	assert.NoError(t, err)
}

func TestWorkflowDefinition_CloneUnserializable(t *testing.T) {
	d := sampleDefinition()
	spec := d.Reply.Content["decision"]
	spec.Value.Const = math.NaN()
	d.Reply.Content["decision"] = spec

	c, err := d.Clone()
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "is not serializable")

	var nilDef *WorkflowDefinition
	c, err = nilDef.Clone()
	assert.NoError(t, err)
	assert.Nil(t, c)
}
