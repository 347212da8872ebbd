package domain

import (
	"context"
	"time"
)

// StageRunEvent describes the start or finish of a stage event.
type StageRunEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	FormID    string      `json:"form_id"`
	EventID   string      `json:"event_id"`
	Stage     StageType   `json:"stage"`
	From      StageStatus `json:"from,omitempty"`
	To        StageStatus `json:"to,omitempty"`

	// Set on finish only.
	Success  bool          `json:"success,omitempty"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// DefinitionEvent describes a persisted workflow definition.
type DefinitionEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	FormID       string    `json:"form_id"`
	Stage        StageType `json:"stage"`
	DefinitionID string    `json:"definition_id"`
	Version      int       `json:"version"`
	Child        bool      `json:"child,omitempty"`
}

// LifecycleHooks defines callbacks for dispatcher observability.
type LifecycleHooks struct {
	OnStageStart          func(context.Context, *StageRunEvent)
	OnStageFinish         func(context.Context, *StageRunEvent)
	OnDefinitionPersisted func(context.Context, *DefinitionEvent)
}
