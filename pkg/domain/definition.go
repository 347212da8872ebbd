package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
)

// DefinitionStatus is the materialization status of a workflow definition.
type DefinitionStatus string

const (
	DefinitionDraft   DefinitionStatus = "draft"
	DefinitionActive  DefinitionStatus = "active"
	DefinitionExpired DefinitionStatus = "expired"
)

// Window is the activation window of a definition.
type Window struct {
	Start      *time.Time `json:"start,omitempty"`
	Due        *time.Time `json:"due,omitempty"`
	Expiration *time.Time `json:"expiration,omitempty"`
}

// Open reports whether submissions are accepted at t.
func (w Window) Open(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.Expiration != nil && !t.Before(*w.Expiration) {
		return false
	}
	return true
}

// FunctionRef names a registered process function and its versioned configuration.
type FunctionRef struct {
	Name    string         `json:"name"`
	Version int            `json:"version"`
	Config  map[string]any `json:"config,omitempty"`
}

// EntityRef identifies the downstream entity a child definition was created for.
type EntityRef struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
}

// FieldSpec is one entry of a reply template's content.
type FieldSpec struct {
	Order       int               `json:"order"`
	Description string            `json:"description,omitempty"`
	Value       schema.Constraint `json:"value"`
	Readers     *PermissionSet    `json:"readers,omitempty"`
}

// ReplyTemplate is the shape of the record a definition permits creating.
type ReplyTemplate struct {
	Readers    PermissionSet                 `json:"readers,omitzero"`
	Writers    PermissionSet                 `json:"writers,omitzero"`
	Signatures PermissionSet                 `json:"signatures,omitzero"`
	Bindings   map[string]reference.Template `json:"bindings,omitempty"`
	Content    map[string]FieldSpec          `json:"content,omitempty"`
}

// WorkflowDefinition is a named, versioned schema describing an allowed future submission.
type WorkflowDefinition struct {
	ID      string    `json:"id"`
	Stage   StageType `json:"stage"`
	Version int       `json:"version"`

	// Parent is the venue-level definition a per-entity child was derived from.
	Parent string     `json:"parent,omitempty"`
	Entity *EntityRef `json:"entity,omitempty"`

	Readers    PermissionSet `json:"readers,omitzero"`
	Writers    PermissionSet `json:"writers,omitzero"`
	Signatures PermissionSet `json:"signatures,omitzero"`
	Invitees   PermissionSet `json:"invitees,omitzero"`

	Reply   ReplyTemplate    `json:"reply"`
	Window  Window           `json:"window,omitzero"`
	Status  DefinitionStatus `json:"status"`
	Process *FunctionRef     `json:"process,omitempty"`
}

// Clone returns a deep copy through the JSON codec, which is the definition's
// canonical form. A definition holding values the codec rejects, such as NaN,
// cannot be cloned.
func (d *WorkflowDefinition) Clone() (*WorkflowDefinition, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("definition %s is not serializable: %w", d.ID, err)
	}
	var out WorkflowDefinition
	if err := DecodeJSON(data, &out); err != nil {
		return nil, fmt.Errorf("definition %s does not round-trip: %w", d.ID, err)
	}
	return &out, nil
}

// Canonical returns the serialized form used for equality and persistence.
func (d *WorkflowDefinition) Canonical() ([]byte, error) {
	return json.Marshal(d)
}

// SameContent reports whether two definitions differ only by version.
func SameContent(a, b *WorkflowDefinition) bool {
	if a == nil || b == nil {
		return a == b
	}
	ac, bc := *a, *b
	ac.Version, bc.Version = 0, 0
	ab, err := json.Marshal(&ac)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(&bc)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Frame exposes the definition to reference resolution.
func (d *WorkflowDefinition) Frame() reference.Frame {
	frame := reference.Frame{
		"id":      d.ID,
		"stage":   string(d.Stage),
		"version": d.Version,
		"status":  string(d.Status),
	}
	if d.Entity != nil {
		frame["entity"] = map[string]any{"id": d.Entity.ID, "number": d.Entity.Number}
	}
	if d.Process != nil {
		frame["process"] = map[string]any{
			"name":    d.Process.Name,
			"version": d.Process.Version,
			"config":  maps.Clone(d.Process.Config),
		}
	}
	return frame
}

// DecodeJSON decodes data keeping numbers as json.Number.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
