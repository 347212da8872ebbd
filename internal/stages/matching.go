package stages

import (
	"context"
	"fmt"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/schema"
)

type matchingConfig struct {
	Group           *string `mapstructure:"matching_group"`
	ComputeConflict *bool   `mapstructure:"compute_conflicts"`
	ComputeAffinity *bool   `mapstructure:"compute_affinity_scores"`
	AffinityModel   *string `mapstructure:"affinity_score_model"`
}

// Matching creates the edge definitions the assignment solver reads and writes.
type Matching struct{ base }

// NewMatching creates the Matching_Setup handler.
func NewMatching() *Matching {
	return &Matching{base{
		stage:   domain.StageMatchingSetup,
		reqs:    requires(domain.StageSubmission),
		tracked: []string{"matching_group", "compute_conflicts", "compute_affinity_scores"},
	}}
}

func (h *Matching) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg matchingConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)

	group := in.Naming.Names.Reviewers
	if in.Settings.AreaChairs {
		group = in.Naming.Names.AreaChairs
	}
	if cfg.Group != nil {
		group = *cfg.Group
	}
	groupID := b.group(group)

	edge := func(label *dsl.FieldBuilder, weight *dsl.FieldBuilder) func(*dsl.DefinitionBuilder, bool) {
		return func(d *dsl.DefinitionBuilder, fresh bool) {
			d.Readers(dsl.Literal(b.venueID(), b.pc())).
				Writers(dsl.Literal(b.venueID())).
				Invitees(dsl.Literal(b.venueID(), b.pc())).
				ReplySignatures(dsl.OneOf(dsl.Value(b.venueID()), dsl.Value(b.pc()))).
				Field("head", dsl.Field().Order(1).Type(schema.String()).Description("submission id")).
				Field("tail", dsl.Field().Order(2).Type(schema.String()).Description(groupID+" member")).
				Field("label", label.Order(3)).
				Field("weight", weight.Order(4))
		}
	}

	assignment, err := b.venue("Paper_Assignment", edge(
		dsl.Field().Type(schema.String()).Optional(),
		dsl.Field().Type(schema.Float()).Range(schema.AtLeast(0)),
	))
	if err != nil {
		return nil, err
	}
	affinity, err := b.venue("Affinity_Score", edge(
		dsl.Field().Type(schema.String()).Optional(),
		dsl.Field().Type(schema.Float()).Range(schema.Closed(0, 1)),
	))
	if err != nil {
		return nil, err
	}
	conflict, err := b.venue("Conflict", edge(
		dsl.Field().Type(schema.String()).Enum("Conflict"),
		dsl.Field().Type(schema.Float()).Range(schema.Closed(-1, 0)),
	))
	if err != nil {
		return nil, err
	}
	b.plan.Note(fmt.Sprintf("matching group %s, assignments in %s", groupID, assignment.ID))

	if !b.regenerate() {
		return b.result(), nil
	}
	if cfg.ComputeAffinity != nil && *cfg.ComputeAffinity {
		inputs := map[string]any{"entities": len(in.ActiveEntities())}
		if cfg.AffinityModel != nil {
			inputs["model"] = *cfg.AffinityModel
		}
		b.plan.SolverRuns = append(b.plan.SolverRuns, domain.SolverRun{
			Definition: affinity.ID,
			Group:      groupID,
			Inputs:     inputs,
		})
	}
	if cfg.ComputeConflict != nil && *cfg.ComputeConflict {
		b.plan.SolverRuns = append(b.plan.SolverRuns, domain.SolverRun{
			Definition: conflict.ID,
			Group:      groupID,
			Inputs:     map[string]any{"entities": len(in.ActiveEntities())},
		})
	}
	return b.result(), nil
}

type bidConfig struct {
	Window `mapstructure:",squash"`

	Options []string `mapstructure:"bid_options"`
	Count   *int     `mapstructure:"bid_count"`
}

// DefaultBidOptions are offered when a fresh Bid definition has no options.
var DefaultBidOptions = []string{"Very High", "High", "Neutral", "Low", "Very Low"}

// Bid lets committee members express interest in submissions.
type Bid struct{ base }

// NewBid creates the Bid_Stage handler.
func NewBid() *Bid {
	return &Bid{base{
		stage:   domain.StageBid,
		reqs:    requires(domain.StageSubmission),
		tracked: []string{"bid_options", "due_date"},
	}}
}

func (h *Bid) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg bidConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)

	bidders := []any{b.group(in.Naming.Names.Reviewers)}
	if in.Settings.AreaChairs {
		bidders = append(bidders, b.group(in.Naming.Names.AreaChairs))
	}
	if in.Settings.SeniorAreaChairs {
		bidders = append(bidders, b.group(in.Naming.Names.SeniorAreaChairs))
	}

	def, err := b.venue("Bid", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(append([]any{b.venueID()}, bidders...)...)).
			Invitees(dsl.Literal(bidders...)).
			ReplySignatures(dsl.OneOf(dsl.Prefix(profileID))).
			ReplyReaders(dsl.Items(dsl.Value(b.venueID()), dsl.Value(b.pc()), dsl.Value(dsl.Ref(reference.FrameNote, "signatures/0"))))
		if fresh {
			d.Field("head", dsl.Field().Order(1).Type(schema.String())).
				Field("label", dsl.Field().Order(2).Type(schema.String()).Enum(strs(DefaultBidOptions)...))
		}
		if cfg.Options != nil {
			d.Field("label", dsl.Field().Enum(strs(cfg.Options)...))
		}
		if cfg.Count != nil {
			d.Process(FuncBidCount, 1, map[string]any{"count": *cfg.Count})
		}
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(def)

	if b.regenerate() {
		msg := "Bidding is open."
		if def.Window.Due != nil {
			msg = "Bidding is open until " + def.Window.Due.Format("2006-01-02 15:04 MST") + "."
		}
		b.plan.Notifications = append(b.plan.Notifications, domain.Notification{
			Recipients: identities(bidders),
			Subject:    venueName(in) + ": bidding is open",
			Message:    msg,
			Definition: def.ID,
		})
	}
	return b.result(), nil
}
