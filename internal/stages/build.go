package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/venue"
)

// Group identities shared by several stages.
const (
	everyone  = "everyone"
	loggedIn  = "~"
	profileID = "~.*"
)

// base carries the metadata part of a handler.
type base struct {
	stage      domain.StageType
	reqs       registry.Requirements
	supersedes []domain.StageType
	tracked    []string
}

func (b base) Stage() domain.StageType { return b.stage }

func (b base) Requirements() registry.Requirements { return b.reqs }

func (b base) Supersedes() []domain.StageType { return b.supersedes }

func (b base) TrackedFields() []string { return b.tracked }

func requires(stages ...domain.StageType) registry.Requirements {
	return registry.Requirements{Active: stages}
}

// decode reads the event content into cfg.
func decode(in *registry.Input, cfg any) error {
	if err := venue.Decode(in.Event.Content, cfg); err != nil {
		return &domain.SchemaError{Definition: string(in.Event.StageType), Location: "content", Err: err}
	}
	return nil
}

// Window is the activation window most stages accept.
type Window struct {
	Start      *time.Time `mapstructure:"start_date"`
	Due        *time.Time `mapstructure:"due_date"`
	Expiration *time.Time `mapstructure:"expiration_date"`
}

// apply sets the dates present in the event. A key sent as null clears the date.
func (w Window) apply(d *dsl.DefinitionBuilder, content map[string]any) {
	switch {
	case w.Start != nil:
		d.Start(*w.Start)
	case cleared(content, "start_date"):
		d.ClearStart()
	}
	switch {
	case w.Due != nil:
		d.Due(*w.Due)
	case cleared(content, "due_date"):
		d.ClearDue()
	}
	switch {
	case w.Expiration != nil:
		d.Expiration(*w.Expiration)
	case cleared(content, "expiration_date"):
		d.ClearExpiration()
	}
}

func cleared(content map[string]any, key string) bool {
	v, ok := content[key]
	return ok && v == nil
}

// build accumulates the plan of one event.
type build struct {
	ctx  context.Context
	in   *registry.Input
	plan *domain.Plan
}

func newBuild(ctx context.Context, in *registry.Input) *build {
	return &build{ctx: ctx, in: in, plan: &domain.Plan{Stage: in.Event.StageType}}
}

func (b *build) prior(id string) (*domain.WorkflowDefinition, error) {
	prior, err := b.in.Prior(b.ctx, id)
	if err != nil {
		return nil, &domain.CollaboratorError{Op: "lookup definition " + id, Err: err}
	}
	return prior, nil
}

// venue patches or creates the venue-level definition name. shape receives
// fresh=true when no prior definition exists.
func (b *build) venue(name string, shape func(d *dsl.DefinitionBuilder, fresh bool)) (*domain.WorkflowDefinition, error) {
	id := b.in.Naming.Stage(name)
	prior, err := b.prior(id)
	if err != nil {
		return nil, err
	}
	d := dsl.PatchOr(prior, id).Stage(b.in.Event.StageType).Status(domain.DefinitionActive)
	shape(d, prior == nil)
	def, err := d.Build()
	if err != nil {
		return nil, err
	}
	b.plan.Definitions = append(b.plan.Definitions, def)
	return def, nil
}

// stored returns the process configuration persisted on the venue-level
// definition name. Settings that are absent from an event fall back to it.
func (b *build) stored(name string) (map[string]any, error) {
	prior, err := b.prior(b.in.Naming.Stage(name))
	if err != nil || prior == nil || prior.Process == nil {
		return nil, err
	}
	return prior.Process.Config, nil
}

// pick returns the event's value, else the stored one, else def.
func pick[T any](v *T, stored map[string]any, key string, def T) T {
	if v != nil {
		return *v
	}
	if s, ok := stored[key].(T); ok {
		return s
	}
	return def
}

func pickInt(v *int, stored map[string]any, key string, def int) int {
	if v != nil {
		return *v
	}
	switch n := stored[key].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// parseNumbers reads entity numbers given as a comma-separated list.
func parseNumbers(in *registry.Input, key string, values []string) (map[int]bool, error) {
	out := make(map[int]bool, len(values))
	for _, v := range values {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, &domain.SchemaError{Definition: string(in.Event.StageType), Location: "content/" + key, Err: fmt.Errorf("invalid entity number %q", v)}
		}
		out[n] = true
	}
	return out, nil
}

// regenerate reports whether per-entity children are rebuilt by this event.
func (b *build) regenerate() bool {
	return b.in.Fresh() || b.in.Changed
}

// children rebuilds the child definition name of every entity. Children carry
// no window of their own unless shape sets one; the parent's window governs.
func (b *build) children(name, parent string, entities []domain.Entity, shape func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool)) error {
	if !b.regenerate() {
		return nil
	}
	for _, e := range entities {
		id := b.in.Naming.Child(e.Number, name)
		prior, err := b.prior(id)
		if err != nil {
			return err
		}
		d := dsl.PatchOr(prior, id).
			Stage(b.in.Event.StageType).
			Entity(e).
			Parent(parent).
			Status(domain.DefinitionActive).
			Bind("forum", dsl.Ref(reference.FrameEntity, "id"))
		shape(d, e, prior == nil)
		def, err := d.Build()
		if err != nil {
			return err
		}
		b.plan.Children = append(b.plan.Children, def)
	}
	b.plan.Regenerated = true
	b.plan.Note(fmt.Sprintf("%d %s definitions built", len(entities), name))
	return nil
}

// expire marks the venue-level definition name expired if it is active.
func (b *build) expire(name string) error {
	id := b.in.Naming.Stage(name)
	prior, err := b.prior(id)
	if err != nil || prior == nil || prior.Status == domain.DefinitionExpired {
		return err
	}
	def, err := dsl.Patch(prior).Status(domain.DefinitionExpired).Build()
	if err != nil {
		return err
	}
	b.plan.Definitions = append(b.plan.Definitions, def)
	b.plan.Note(name + " expired")
	return nil
}

// deadline records the due date of def as the stage's deadline milestone.
func (b *build) deadline(def *domain.WorkflowDefinition) {
	if def.Window.Due != nil {
		b.plan.Milestone(domain.MilestoneDeadline, *def.Window.Due)
	}
}

func (b *build) pc() string { return b.in.Naming.ProgramChairs() }

func (b *build) venueID() string { return b.in.Naming.VenueID }

func (b *build) group(name string) string { return b.in.Naming.Group(name) }

func (b *build) entityGroup(e domain.Entity, name string) string {
	return b.in.Naming.EntityGroup(e.Number, name)
}

func (b *build) authors(e domain.Entity) string { return b.entityGroup(e, b.in.Naming.Names.Authors) }

func (b *build) reviewers(e domain.Entity) string {
	return b.entityGroup(e, b.in.Naming.Names.Reviewers)
}

func (b *build) areaChairs(e domain.Entity) string {
	return b.entityGroup(e, b.in.Naming.Names.AreaChairs)
}

func (b *build) seniorAreaChairs(e domain.Entity) string {
	return b.entityGroup(e, b.in.Naming.Names.SeniorAreaChairs)
}

// committee lists the per-entity groups above reviewers enabled for the venue,
// program chairs first.
func (b *build) committee(e domain.Entity) []any {
	out := []any{b.pc()}
	if b.in.Settings.SeniorAreaChairs {
		out = append(out, b.seniorAreaChairs(e))
	}
	if b.in.Settings.AreaChairs {
		out = append(out, b.areaChairs(e))
	}
	return out
}

// anonymous matches the anonymized member ids of an entity group, such as
// "Conf/Paper7/Reviewer_abcd".
func (b *build) anonymous(e domain.Entity, name string) dsl.Item {
	return dsl.Prefix(regexp.QuoteMeta(b.entityGroup(e, name)) + ".*")
}

func (b *build) result() *domain.Plan {
	return b.plan
}

// singular turns a group name such as "Reviewers" into its member prefix "Reviewer_".
func singular(group string) string {
	if n := len(group); n > 1 && group[n-1] == 's' {
		group = group[:n-1]
	}
	return group + "_"
}

func identities(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// venueName is the short name used in notification subjects.
func venueName(in *registry.Input) string {
	switch {
	case in.Settings.Abbreviation != "":
		return in.Settings.Abbreviation
	case in.Settings.Title != "":
		return in.Settings.Title
	default:
		return in.Naming.VenueID
	}
}

func strs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
