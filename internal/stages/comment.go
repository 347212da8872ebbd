package stages

import (
	"context"
	"slices"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/aretw0/venueflow/pkg/venue"
)

// Roles that may be listed as comment readers. Program chairs always read.
const (
	RoleSeniorAreaChairs = "senior_area_chairs"
	RoleAreaChairs       = "area_chairs"
	RoleReviewers        = "reviewers"
	RoleAuthors          = "authors"
)

type commentConfig struct {
	Window `mapstructure:",squash"`

	Readers     []string `mapstructure:"readers"`
	EmailChairs *bool    `mapstructure:"email_program_chairs_about_official_comments"`
}

// Comment opens official comments per submission and, when the venue allows
// it, public comments.
type Comment struct{ base }

// NewComment creates the Comment_Stage handler.
func NewComment() *Comment {
	return &Comment{base{
		stage:   domain.StageComment,
		reqs:    requires(domain.StageSubmission),
		tracked: []string{"readers", "email_program_chairs_about_official_comments"},
	}}
}

func (h *Comment) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg commentConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)
	stored, err := b.stored("Official_Comment")
	if err != nil {
		return nil, err
	}
	email := pick(cfg.EmailChairs, stored, "email_program_chairs", false)
	roles := cfg.Readers
	if roles == nil {
		roles = storedStrings(stored, "readers")
	}
	if roles == nil {
		roles = []string{RoleSeniorAreaChairs, RoleAreaChairs, RoleReviewers, RoleAuthors}
	}
	has := func(role string) bool { return slices.Contains(roles, role) }
	sac := in.Settings.SeniorAreaChairs && has(RoleSeniorAreaChairs)
	ac := in.Settings.AreaChairs && has(RoleAreaChairs)

	form := func(d *dsl.DefinitionBuilder, fresh bool) {
		if fresh {
			d.Field("title", dsl.Field().Order(1).Type(schema.String()).Length(1, 500).Optional()).
				Field("comment", dsl.Field().Order(2).Type(schema.String()).Length(1, 5000))
		}
	}

	parent, err := b.venue("Official_Comment", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.venueID())).
			ReplySignatures(dsl.OneOf(dsl.Prefix(profileID), dsl.Value(b.pc()))).
			Process(FuncCommentNotify, 1, map[string]any{
				"email_program_chairs": email,
				"readers":              strs(roles),
			})
		form(d, fresh)
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)

	err = b.children("Official_Comment", parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		invitees := []any{b.pc()}
		signers := []dsl.Item{dsl.Value(b.pc())}
		readers := []dsl.Item{dsl.Value(b.pc())}
		if sac {
			invitees = append(invitees, b.seniorAreaChairs(e))
			signers = append(signers, b.anonymous(e, singular(in.Naming.Names.SeniorAreaChairs)))
			readers = append(readers, dsl.Value(b.seniorAreaChairs(e)).Optional())
		}
		if ac {
			invitees = append(invitees, b.areaChairs(e))
			signers = append(signers, b.anonymous(e, singular(in.Naming.Names.AreaChairs)))
			readers = append(readers, dsl.Value(b.areaChairs(e)).Optional())
		}
		if has(RoleReviewers) {
			invitees = append(invitees, b.reviewers(e))
			signers = append(signers, b.anonymous(e, singular(in.Naming.Names.Reviewers)))
			readers = append(readers,
				dsl.Value(b.reviewers(e)).Optional(),
				b.anonymous(e, singular(in.Naming.Names.Reviewers)).Optional())
		}
		if has(RoleAuthors) {
			invitees = append(invitees, b.authors(e))
			signers = append(signers, dsl.Value(b.authors(e)))
			readers = append(readers, dsl.Value(b.authors(e)).Optional())
		}
		d.Readers(dsl.Literal(append([]any{b.venueID()}, invitees...)...)).
			Invitees(dsl.Literal(invitees...)).
			ReplySignatures(dsl.OneOf(signers...)).
			ReplyReaders(dsl.Items(readers...)).
			ReplyWriters(dsl.Literal(b.venueID(), dsl.Ref(reference.FrameNote, "signatures/0"))).
			Process(FuncCommentNotify, 1, map[string]any{
				"email_program_chairs": email,
				"program_chairs":       b.pc(),
			})
		form(d, fresh)
	})
	if err != nil {
		return nil, err
	}

	if in.Settings.Flag(venue.FlagPublicComments) {
		_, err := b.venue("Public_Comment", func(d *dsl.DefinitionBuilder, fresh bool) {
			d.Readers(dsl.Literal(everyone)).
				Invitees(dsl.Literal(loggedIn)).
				ReplySignatures(dsl.OneOf(dsl.Prefix(profileID))).
				ReplyReaders(dsl.Literal(everyone)).
				ReplyWriters(dsl.Literal(b.venueID(), dsl.Ref(reference.FrameNote, "signatures/0")))
			form(d, fresh)
			cfg.Window.apply(d, in.Event.Content)
		})
		if err != nil {
			return nil, err
		}
	} else if err := b.expire("Public_Comment"); err != nil {
		return nil, err
	}
	return b.result(), nil
}

func storedStrings(stored map[string]any, key string) []string {
	raw, ok := stored[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
