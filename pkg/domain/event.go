package domain

import (
	"fmt"
	"time"
)

// KeyDeactivate is the content key of an explicit deactivation event.
const KeyDeactivate = "deactivate"

// StageEvent is one configuration submission for a stage type.
type StageEvent struct {
	StageType     StageType      `json:"stage_type"`
	Content       map[string]any `json:"content"`
	RequestFormID string         `json:"request_form_id"`
	Sequence      int64          `json:"sequence"`
	CreatedAt     time.Time      `json:"created_at,omitzero"`
}

// ID identifies the event within the journal.
func (e StageEvent) ID() string {
	return fmt.Sprintf("%s:%s:%d", e.RequestFormID, e.StageType, e.Sequence)
}

// Deactivates reports whether the event explicitly expires its stage.
func (e StageEvent) Deactivates() bool {
	v, ok := e.Content[KeyDeactivate].(bool)
	return ok && v
}

// Validate checks the envelope of the event.
func (e StageEvent) Validate() error {
	if e.RequestFormID == "" {
		return fmt.Errorf("%w: missing request_form_id", ErrInvalidEvent)
	}
	if e.Sequence <= 0 {
		return fmt.Errorf("%w: sequence must be positive, got %d", ErrInvalidEvent, e.Sequence)
	}
	if _, err := ParseStageType(string(e.StageType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}
