package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/venue"
)

// Milestone names a timestamp recorded on another stage's state.
type Milestone struct {
	Stage domain.StageType
	Name  string
}

func (m Milestone) String() string {
	return fmt.Sprintf("%s.%s", m.Stage, m.Name)
}

// Requirements are the ordering preconditions of a stage.
type Requirements struct {
	Active     []domain.StageType
	Milestones []Milestone
	Flag       string
}

// Check returns a *domain.PreconditionError when a requirement is not met.
func (r Requirements) Check(stage domain.StageType, states map[domain.StageType]*domain.StageState, settings *venue.Settings, now time.Time) error {
	perr := &domain.PreconditionError{Stage: stage}
	for _, st := range r.Active {
		if !states[st].IsActive() {
			perr.Missing = append(perr.Missing, st)
		}
	}
	for _, m := range r.Milestones {
		if !states[m.Stage].MilestonePassed(m.Name, now) {
			perr.Milestone = m.String()
			break
		}
	}
	if r.Flag != "" && (settings == nil || !settings.Flag(r.Flag)) {
		perr.Flag = r.Flag
	}
	if len(perr.Missing) > 0 || perr.Milestone != "" || perr.Flag != "" {
		return perr
	}
	return nil
}

// Definitions looks up persisted definitions. A missing id returns nil without error.
type Definitions interface {
	Lookup(ctx context.Context, id string) (*domain.WorkflowDefinition, error)
}

// Input is everything a handler may read while planning.
type Input struct {
	Event    domain.StageEvent
	Form     *domain.RequestForm
	Settings *venue.Settings
	Naming   venue.Naming

	// State is the stage's state before the event is applied.
	State  *domain.StageState
	States map[domain.StageType]*domain.StageState

	// History holds the applied events of this stage, up to the processed sequence.
	History []domain.StageEvent

	// Changed is the diff engine's verdict over TrackedFields.
	Changed bool

	Definitions Definitions
	Entities    []domain.Entity
	Now         time.Time
}

// Fresh reports whether the stage is being activated rather than reconfigured.
func (in *Input) Fresh() bool {
	return !in.State.IsActive()
}

// Prior returns the persisted definition with id, or nil.
func (in *Input) Prior(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	if in.Definitions == nil {
		return nil, nil
	}
	return in.Definitions.Lookup(ctx, id)
}

// ActiveEntities returns the entities still under review.
func (in *Input) ActiveEntities() []domain.Entity {
	out := make([]domain.Entity, 0, len(in.Entities))
	for _, e := range in.Entities {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	return out
}

// Handler plans the effects of one stage type.
type Handler interface {
	Stage() domain.StageType
	Requirements() Requirements
	Supersedes() []domain.StageType
	TrackedFields() []string
	Apply(ctx context.Context, in *Input) (*domain.Plan, error)
}
