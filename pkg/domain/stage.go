package domain

import (
	"fmt"
	"strings"
	"time"
)

// StageType is the tag of a stage-configuration event.
type StageType string

const (
	StageSubmission         StageType = "Submission_Stage"
	StagePostSubmission     StageType = "Post_Submission_Stage"
	StageMatchingSetup      StageType = "Matching_Setup"
	StageBid                StageType = "Bid_Stage"
	StageReview             StageType = "Review_Stage"
	StageRebuttal           StageType = "Rebuttal_Stage"
	StageEthicsReview       StageType = "Ethics_Review_Stage"
	StageMetaReview         StageType = "Meta_Review_Stage"
	StageDecision           StageType = "Decision_Stage"
	StageSubmissionRevision StageType = "Submission_Revision_Stage"
	StageComment            StageType = "Comment_Stage"
	StagePostDecision       StageType = "Post_Decision_Stage"
	StageReviewRating       StageType = "Review_Rating_Stage"
)

var stageTypes = []StageType{
	StageSubmission,
	StagePostSubmission,
	StageMatchingSetup,
	StageBid,
	StageReview,
	StageRebuttal,
	StageEthicsReview,
	StageMetaReview,
	StageDecision,
	StageSubmissionRevision,
	StageComment,
	StagePostDecision,
	StageReviewRating,
}

// StageTypes returns every known stage type in workflow order.
func StageTypes() []StageType {
	out := make([]StageType, len(stageTypes))
	copy(out, stageTypes)
	return out
}

// ParseStageType converts a tag into a StageType.
func ParseStageType(s string) (StageType, error) {
	for _, st := range stageTypes {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

// Valid reports whether s is one of the known stage types.
func (s StageType) Valid() bool {
	_, err := ParseStageType(string(s))
	return err == nil
}

// Label returns a human-readable stage name, e.g. "Post Submission".
func (s StageType) Label() string {
	name := strings.TrimSuffix(string(s), "_Stage")
	return strings.ReplaceAll(name, "_", " ")
}

// StageStatus is a node of the per-stage state machine.
type StageStatus string

const (
	StatusUninitialized StageStatus = "uninitialized"
	StatusActive        StageStatus = "active"
	StatusReconfigured  StageStatus = "reconfigured"
	StatusExpired       StageStatus = "expired"
)

// MilestoneDeadline is the milestone recorded for a stage's due date.
const MilestoneDeadline = "deadline"

// StageState tracks one stage type of one request form.
type StageState struct {
	FormID string    `json:"form_id"`
	Stage  StageType `json:"stage"`

	Status StageStatus `json:"status"`

	// Revision counts the events applied to this stage.
	Revision int `json:"revision"`

	// LastApplied is the sequence of the last successfully applied event.
	LastApplied int64 `json:"last_applied"`

	// Previous is the sequence applied before LastApplied, 0 if none.
	Previous int64 `json:"previous,omitempty"`

	// Attempted is the sequence of the last failed attempt, 0 if none.
	Attempted int64 `json:"attempted,omitempty"`

	// Definitions lists the identifiers owned by the stage.
	Definitions []string `json:"definitions,omitempty"`

	Milestones map[string]time.Time `json:"milestones,omitempty"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// NewStageState returns the initial state of a stage.
func NewStageState(formID string, stage StageType) *StageState {
	return &StageState{
		FormID: formID,
		Stage:  stage,
		Status: StatusUninitialized,
	}
}

// IsActive reports whether the stage has been applied and not expired.
func (s *StageState) IsActive() bool {
	return s != nil && (s.Status == StatusActive || s.Status == StatusReconfigured)
}

// Next returns the status the stage moves to when an event is applied.
// An expired stage is re-opened as active.
func (s *StageState) Next() StageStatus {
	switch s.Status {
	case StatusActive, StatusReconfigured:
		return StatusReconfigured
	default:
		return StatusActive
	}
}

// Owns records a definition as owned by the stage.
func (s *StageState) Owns(id string) {
	for _, existing := range s.Definitions {
		if existing == id {
			return
		}
	}
	s.Definitions = append(s.Definitions, id)
}

// MilestonePassed reports whether a milestone exists and lies at or before now.
func (s *StageState) MilestonePassed(name string, now time.Time) bool {
	if s == nil {
		return false
	}
	at, ok := s.Milestones[name]
	return ok && !at.After(now)
}

// Clone returns a deep copy.
func (s *StageState) Clone() *StageState {
	if s == nil {
		return nil
	}
	out := *s
	out.Definitions = append([]string(nil), s.Definitions...)
	if s.Milestones != nil {
		out.Milestones = make(map[string]time.Time, len(s.Milestones))
		for k, v := range s.Milestones {
			out.Milestones[k] = v
		}
	}
	return &out
}
