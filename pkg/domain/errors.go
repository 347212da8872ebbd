package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
)

// ErrFormNotFound is returned when a request form ID cannot be found in the store.
var ErrFormNotFound = errors.New("request form not found")

// ErrDefinitionNotFound is returned when a workflow definition ID cannot be found.
var ErrDefinitionNotFound = errors.New("workflow definition not found")

// ErrUnknownStage is returned for a stage tag outside the known set.
var ErrUnknownStage = errors.New("unknown stage type")

// ErrPreconditionNotMet is returned when a stage runs before its dependencies are satisfied.
var ErrPreconditionNotMet = errors.New("precondition not met")

// ErrInvalidEvent is returned for a malformed stage event envelope.
var ErrInvalidEvent = errors.New("invalid stage event")

// ErrorKind classifies stage failures.
type ErrorKind string

const (
	KindSchema       ErrorKind = "schema"
	KindPrecondition ErrorKind = "precondition"
	KindResolution   ErrorKind = "resolution"
	KindCollaborator ErrorKind = "collaborator"
	KindInternal     ErrorKind = "internal"
)

// StageError is the structured failure of one stage event.
type StageError struct {
	Stage   StageType
	Kind    ErrorKind
	EventID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// MarshalJSON writes the cause as text.
func (e *StageError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Stage   StageType `json:"stage"`
		Kind    ErrorKind `json:"kind"`
		EventID string    `json:"event_id,omitempty"`
		Message string    `json:"message"`
	}{e.Stage, e.Kind, e.EventID, msg})
}

// UnmarshalJSON restores the cause as a plain error carrying its text.
func (e *StageError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Stage   StageType `json:"stage"`
		Kind    ErrorKind `json:"kind"`
		EventID string    `json:"event_id"`
		Message string    `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Stage, e.Kind, e.EventID = raw.Stage, raw.Kind, raw.EventID
	e.Err = errors.New(raw.Message)
	return nil
}

// NewStageError wraps err, classifying it unless it already is a StageError.
func NewStageError(stage StageType, eventID string, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Stage: stage, Kind: KindOf(err), EventID: eventID, Err: err}
}

// CollaboratorError marks a failure of an external port.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// PreconditionError describes the unmet requirements of a stage.
type PreconditionError struct {
	Stage     StageType
	Missing   []StageType
	Milestone string
	Flag      string
}

func (e *PreconditionError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		names := make([]string, len(e.Missing))
		for i, m := range e.Missing {
			names[i] = string(m)
		}
		parts = append(parts, "requires active "+strings.Join(names, ", "))
	}
	if e.Milestone != "" {
		parts = append(parts, "requires milestone "+e.Milestone)
	}
	if e.Flag != "" {
		parts = append(parts, "requires venue setting "+e.Flag)
	}
	return fmt.Sprintf("%s: %s: %s", ErrPreconditionNotMet, e.Stage, strings.Join(parts, "; "))
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionNotMet
}

// KindOf classifies an error.
func KindOf(err error) ErrorKind {
	var se *StageError
	var ce *CollaboratorError
	var agg *schema.AggregateError
	var schemaErr *SchemaError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, ErrPreconditionNotMet):
		return KindPrecondition
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.Is(err, reference.ErrPathNotFound):
		return KindResolution
	case errors.As(err, &ce):
		return KindCollaborator
	case errors.Is(err, reference.ErrDepthOutOfRange),
		errors.Is(err, reference.ErrMalformed),
		errors.Is(err, schema.ErrConflictingConst),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrUnknownStage),
		errors.As(err, &agg):
		return KindSchema
	default:
		return KindInternal
	}
}

// SchemaError reports a malformed definition. It blocks publication.
type SchemaError struct {
	Definition string
	Location   string
	Err        error
}

func (e *SchemaError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("definition %s: %v", e.Definition, e.Err)
	}
	return fmt.Sprintf("definition %s: %s: %v", e.Definition, e.Location, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
