package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/schema"
)

// DefaultDecisionOptions are offered when a fresh Decision has no options.
var DefaultDecisionOptions = []string{"Accept (Oral)", "Accept (Poster)", "Reject"}

type decisionConfig struct {
	Window `mapstructure:",squash"`

	Options            []string   `mapstructure:"decision_options"`
	Deadline           *time.Time `mapstructure:"decision_deadline"`
	ReleaseToAuthors   *bool      `mapstructure:"release_decisions_to_authors"`
	ReleaseToReviewers *bool      `mapstructure:"release_decisions_to_reviewers"`
}

// Decision opens paper decisions for the program chairs.
type Decision struct{ base }

// NewDecision creates the Decision_Stage handler.
func NewDecision() *Decision {
	return &Decision{base{
		stage: domain.StageDecision,
		reqs:  requires(domain.StageSubmission),
		tracked: []string{
			"decision_options",
			"release_decisions_to_authors",
			"release_decisions_to_reviewers",
		},
	}}
}

func (h *Decision) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg decisionConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	if cfg.Deadline != nil && cfg.Due == nil {
		cfg.Due = cfg.Deadline
	}
	b := newBuild(ctx, in)
	stored, err := b.stored("Decision")
	if err != nil {
		return nil, err
	}
	toAuthors := pick(cfg.ReleaseToAuthors, stored, "release_to_authors", false)
	toReviewers := pick(cfg.ReleaseToReviewers, stored, "release_to_reviewers", false)

	form := func(d *dsl.DefinitionBuilder, fresh bool) {
		if fresh {
			d.Field("title", dsl.Field().Order(1).Type(schema.String()).Const("Paper Decision")).
				Field("decision", dsl.Field().Order(2).Type(schema.String()).Enum(strs(DefaultDecisionOptions)...)).
				Field("comment", dsl.Field().Order(3).Type(schema.String()).Optional())
		}
		if cfg.Options != nil {
			d.Field("decision", dsl.Field().Enum(strs(cfg.Options)...))
		}
	}

	parent, err := b.venue("Decision", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.pc())).
			ReplySignatures(dsl.OneOf(dsl.Value(b.pc()))).
			Process(FuncDecisionRelease, 1, map[string]any{
				"release_to_authors":   toAuthors,
				"release_to_reviewers": toReviewers,
			})
		form(d, fresh)
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)
	if enum := parent.Reply.Content["decision"].Value.Enum; len(enum) > 0 {
		b.plan.Note(fmt.Sprintf("decision options: %v", enum))
	}

	err = b.children("Decision", parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		readers := append([]any{}, b.committee(e)...)
		if toReviewers {
			readers = append(readers, b.reviewers(e))
		}
		if toAuthors {
			readers = append(readers, b.authors(e))
		}
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.pc())).
			ReplySignatures(dsl.OneOf(dsl.Value(b.pc()))).
			ReplyReaders(dsl.Literal(readers...)).
			Bind("replyto", dsl.Ref(reference.FrameEntity, "id"))
		form(d, fresh)
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

type postDecisionConfig struct {
	ReleaseConfig `mapstructure:",squash"`

	ReleaseSubmissions *bool `mapstructure:"release_submissions"`
	RevealAuthors      *bool `mapstructure:"reveal_authors"`
}

// PostDecision publishes submissions once decisions are final.
type PostDecision struct{ Release }

// NewPostDecision creates the Post_Decision_Stage handler. It requires the
// decision deadline to have passed and supersedes Post_Submission_Stage.
func NewPostDecision() *PostDecision {
	return &PostDecision{Release{
		base: base{
			stage: domain.StagePostDecision,
			reqs: registry.Requirements{
				Active:     []domain.StageType{domain.StageDecision},
				Milestones: []registry.Milestone{{Stage: domain.StageDecision, Name: domain.MilestoneDeadline}},
			},
			supersedes: []domain.StageType{domain.StagePostSubmission},
			tracked:    []string{"release_submissions", "reveal_authors", "hide_fields", "submission_readers"},
		},
		name: "Post_Decision",
	}}
}

func (h *PostDecision) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg postDecisionConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	release := cfg.ReleaseSubmissions != nil && *cfg.ReleaseSubmissions
	reveal := cfg.RevealAuthors == nil || *cfg.RevealAuthors
	if !reveal && cfg.HideFields == nil {
		cfg.HideFields = []string{"authors", "authorids"}
	}
	readers := ReadersChairsAuthor
	if release {
		readers = ReadersEveryone
	}
	return h.apply(ctx, in, cfg.ReleaseConfig, readers, map[string]any{
		"release_submissions": release,
		"reveal_authors":      reveal,
	})
}

type revisionConfig struct {
	Window `mapstructure:",squash"`

	AcceptedOnly  *bool    `mapstructure:"accepted_submissions_only"`
	RemoveOptions []string `mapstructure:"submission_revision_remove_options"`
}

// SubmissionRevision lets authors revise their submissions.
type SubmissionRevision struct{ base }

// NewSubmissionRevision creates the Submission_Revision_Stage handler.
func NewSubmissionRevision() *SubmissionRevision {
	return &SubmissionRevision{base{
		stage:   domain.StageSubmissionRevision,
		reqs:    requires(domain.StageSubmission),
		tracked: []string{"accepted_submissions_only", "submission_revision_remove_options"},
	}}
}

func (h *SubmissionRevision) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg revisionConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)
	stored, err := b.stored("Submission_Revision")
	if err != nil {
		return nil, err
	}
	acceptedOnly := pick(cfg.AcceptedOnly, stored, "accepted_submissions_only", false)

	form := func(d *dsl.DefinitionBuilder, fresh bool) {
		b.submissionShape(d, fresh)
		for _, name := range cfg.RemoveOptions {
			d.RemoveField(name)
		}
	}
	parent, err := b.venue("Submission_Revision", func(d *dsl.DefinitionBuilder, fresh bool) {
		form(d, fresh)
		d.Invitees(dsl.Literal(b.group(in.Naming.Names.Authors))).
			Process(FuncRevisionUpdate, 1, map[string]any{"accepted_submissions_only": acceptedOnly})
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)

	entities := in.ActiveEntities()
	if acceptedOnly {
		accepted := entities[:0:0]
		for _, e := range entities {
			if strings.HasPrefix(e.Decision, "Accept") {
				accepted = append(accepted, e)
			}
		}
		entities = accepted
		b.plan.Note(fmt.Sprintf("revisions limited to %d accepted submissions", len(entities)))
	}
	err = b.children("Revision", parent.ID, entities, func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		form(d, fresh)
		d.Readers(dsl.Literal(b.venueID(), b.pc(), b.authors(e))).
			Invitees(dsl.Literal(b.authors(e))).
			ReplySignatures(dsl.OneOf(dsl.Value(b.authors(e)))).
			ReplyReaders(dsl.Literal(b.venueID(), b.pc(), b.authors(e))).
			ReplyWriters(dsl.Literal(b.venueID(), b.authors(e)))
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}
