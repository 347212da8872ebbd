package domain

import "time"

// Notification is a message the dispatcher hands to the notifier.
type Notification struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
	Definition string   `json:"definition,omitempty"`
}

// SolverRun asks the matching solver to compute inputs for an assignment definition.
type SolverRun struct {
	Definition string         `json:"definition"`
	Group      string         `json:"group"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

// Plan is a handler's output. The dispatcher validates it as a whole before
// the first write.
type Plan struct {
	Stage StageType `json:"stage"`

	// Definitions are venue-level definitions, persisted first.
	Definitions []*WorkflowDefinition `json:"definitions,omitempty"`

	// Children are per-entity definitions.
	Children []*WorkflowDefinition `json:"children,omitempty"`

	// Expire lists stages superseded by this event.
	Expire []StageType `json:"expire,omitempty"`

	Notifications []Notification       `json:"notifications,omitempty"`
	SolverRuns    []SolverRun          `json:"solver_runs,omitempty"`
	Milestones    map[string]time.Time `json:"milestones,omitempty"`
	Summary       []string             `json:"summary,omitempty"`

	// Regenerated is set when Children were rebuilt because tracked fields changed.
	Regenerated bool `json:"regenerated,omitempty"`
}

// AllDefinitions returns venue-level definitions followed by children.
func (p *Plan) AllDefinitions() []*WorkflowDefinition {
	out := make([]*WorkflowDefinition, 0, len(p.Definitions)+len(p.Children))
	out = append(out, p.Definitions...)
	return append(out, p.Children...)
}

// Note appends a line to the plan summary.
func (p *Plan) Note(line string) {
	p.Summary = append(p.Summary, line)
}

// Milestone records a named timestamp on the stage state.
func (p *Plan) Milestone(name string, at time.Time) {
	if p.Milestones == nil {
		p.Milestones = make(map[string]time.Time)
	}
	p.Milestones[name] = at
}
