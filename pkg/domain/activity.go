package domain

import (
	"fmt"
	"time"
)

// ActivityRecord is a status or error note appended to a venue's activity log.
type ActivityRecord struct {
	ID           string    `json:"id"`
	FormID       string    `json:"form_id"`
	EventID      string    `json:"event_id"`
	Stage        StageType `json:"stage"`
	Title        string    `json:"title"`
	Comment      string    `json:"comment"`
	Error        string    `json:"error,omitempty"`
	ReferenceURL string    `json:"reference_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsError reports whether the record describes a failure.
func (r ActivityRecord) IsError() bool {
	return r.Error != ""
}

// ActivityRecordID derives the record identifier of the event with the given
// sequence. kind is empty for a success. Redelivered events with the same
// outcome map onto the same record, which logs keep as first written.
func ActivityRecordID(formID string, sequence int64, kind ErrorKind) string {
	if kind == "" {
		return fmt.Sprintf("%s/Activity%d", formID, sequence)
	}
	return fmt.Sprintf("%s/Activity%d/%s", formID, sequence, kind)
}

// Outcome is the result of handling one stage event.
type Outcome struct {
	EventID string    `json:"event_id"`
	Stage   StageType `json:"stage"`
	Success bool      `json:"success"`

	// Skipped is set when a redelivered event produced no new mutations.
	Skipped bool `json:"skipped,omitempty"`

	// Regenerated is set when per-entity children were rebuilt.
	Regenerated bool `json:"regenerated,omitempty"`

	Transition  StageStatus     `json:"transition,omitempty"`
	Definitions []string        `json:"definitions,omitempty"`
	Summary     []string        `json:"summary,omitempty"`
	Record      *ActivityRecord `json:"record,omitempty"`
	Err         *StageError     `json:"error,omitempty"`

	// ReportError is set when the activity record could not be posted.
	ReportError string `json:"report_error,omitempty"`
}
