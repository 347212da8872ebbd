package stages

import (
	"context"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/aretw0/venueflow/pkg/venue"
)

// Process functions attached to per-entity definitions.
const (
	FuncWithdrawal    = "withdrawal"
	FuncDeskRejection = "desk_rejection"
)

// Visibility of withdrawn or desk rejected submissions.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type submissionConfig struct {
	Window `mapstructure:",squash"`

	RemoveFields           []string   `mapstructure:"remove_submission_options"`
	WithdrawnVisibility    *string    `mapstructure:"withdrawn_submissions_visibility"`
	DeskRejectedVisibility *string    `mapstructure:"desk_rejected_submissions_visibility"`
	WithdrawExpiration     *time.Time `mapstructure:"withdraw_submission_expiration"`
}

// Submission opens the call for papers and the per-paper withdrawal and desk
// rejection definitions.
type Submission struct{ base }

// NewSubmission creates the Submission_Stage handler.
func NewSubmission() *Submission {
	return &Submission{base{
		stage: domain.StageSubmission,
		tracked: []string{
			"withdrawn_submissions_visibility",
			"desk_rejected_submissions_visibility",
			"withdraw_submission_expiration",
		},
	}}
}

func (h *Submission) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg submissionConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)

	sub, err := b.venue("Submission", func(d *dsl.DefinitionBuilder, fresh bool) {
		b.submissionShape(d, fresh)
		if fresh && cfg.Due == nil && in.Settings.SubmissionDeadline != nil {
			d.Due(*in.Settings.SubmissionDeadline)
		}
		cfg.Window.apply(d, in.Event.Content)
		for _, name := range cfg.RemoveFields {
			d.RemoveField(name)
		}
	})
	if err != nil {
		return nil, err
	}
	b.deadline(sub)

	if in.Settings.Flag(venue.FlagSecondDeadline) {
		full, err := b.venue("Full_Submission", func(d *dsl.DefinitionBuilder, fresh bool) {
			b.submissionShape(d, fresh)
			d.Field("pdf", dsl.Field().Required()).Due(*in.Settings.FullSubmissionDeadline)
		})
		if err != nil {
			return nil, err
		}
		b.plan.Note("Full_Submission due " + full.Window.Due.Format(time.RFC3339))
	} else if err := b.expire("Full_Submission"); err != nil {
		return nil, err
	}

	withdrawn := VisibilityPrivate
	if cfg.WithdrawnVisibility != nil {
		withdrawn = *cfg.WithdrawnVisibility
	}
	err = b.children("Withdrawal", "", in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc(), b.authors(e))).
			Invitees(dsl.Literal(b.authors(e))).
			ReplySignatures(dsl.OneOf(dsl.Value(b.authors(e)))).
			ReplyReaders(b.visibility(withdrawn, e)).
			Field("withdrawal_confirmation", dsl.Field().
				Order(1).
				Type(schema.String()).
				Const("I have read and agree with the venue's policy on withdrawn submissions.")).
			Process(FuncWithdrawal, 1, map[string]any{"visibility": withdrawn})
		if cfg.WithdrawExpiration != nil {
			d.Expiration(*cfg.WithdrawExpiration)
		}
	})
	if err != nil {
		return nil, err
	}

	rejected := VisibilityPrivate
	if cfg.DeskRejectedVisibility != nil {
		rejected = *cfg.DeskRejectedVisibility
	}
	err = b.children("Desk_Rejection", "", in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.pc())).
			ReplySignatures(dsl.OneOf(dsl.Value(b.pc()))).
			ReplyReaders(b.visibility(rejected, e)).
			Field("desk_reject_comments", dsl.Field().Order(1).Type(schema.String())).
			Process(FuncDeskRejection, 1, map[string]any{"visibility": rejected})
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

// submissionShape declares the submission form. Fields are only declared on a
// fresh definition so later removals persist.
func (b *build) submissionShape(d *dsl.DefinitionBuilder, fresh bool) {
	author := dsl.Ref(reference.FrameNote, "signatures/0")
	d.Readers(dsl.Literal(everyone)).
		Writers(dsl.Literal(b.venueID())).
		Signatures(dsl.Literal(b.venueID())).
		Invitees(dsl.Literal(loggedIn)).
		ReplyReaders(dsl.Items(dsl.Value(b.venueID()), dsl.Value(b.pc()), dsl.Value(author))).
		ReplyWriters(dsl.Literal(b.venueID(), author)).
		ReplySignatures(dsl.OneOf(dsl.Prefix(profileID)))
	if !fresh {
		return
	}
	d.Field("title", dsl.Field().Order(1).Type(schema.String()).Length(1, 250)).
		Field("authorids", dsl.Field().Order(2).Type(schema.Slice(schema.String()))).
		Field("keywords", dsl.Field().Order(3).Type(schema.Slice(schema.String())).Optional()).
		Field("abstract", dsl.Field().Order(4).Type(schema.String()).Length(1, 5000)).
		Field("pdf", dsl.Field().Order(5).Type(schema.String()).Regex(`.*\.pdf`).Optional())
}

func (b *build) visibility(v string, e domain.Entity) dsl.Perm {
	if v == VisibilityPublic {
		return dsl.Literal(everyone)
	}
	return dsl.Literal(b.venueID(), b.pc(), b.authors(e))
}
