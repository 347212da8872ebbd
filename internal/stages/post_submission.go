package stages

import (
	"context"
	"slices"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/registry"
)

// Submission readers after the deadline.
const (
	ReadersEveryone     = "everyone"
	ReadersCommittee    = "all_program_committee"
	ReadersAssigned     = "assigned_program_committee"
	ReadersChairsAuthor = "program_chairs_and_authors"
)

// ReleaseConfig selects who reads submissions and which fields stay hidden.
type ReleaseConfig struct {
	HideFields []string `mapstructure:"hide_fields"`
	Readers    *string  `mapstructure:"submission_readers"`
}

// Release builds the per-entity post definitions shared by Post_Submission and
// Post_Decision: who reads each submission and which fields stay hidden.
type Release struct {
	base
	name string
}

// NewPostSubmission creates the Post_Submission_Stage handler.
func NewPostSubmission() *Release {
	return &Release{
		base: base{
			stage:   domain.StagePostSubmission,
			reqs:    requires(domain.StageSubmission),
			tracked: []string{"hide_fields", "submission_readers"},
		},
		name: "Post_Submission",
	}
}

func (h *Release) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg ReleaseConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	return h.apply(ctx, in, cfg, ReadersChairsAuthor, nil)
}

func (h *Release) apply(ctx context.Context, in *registry.Input, cfg ReleaseConfig, defaultReaders string, extra map[string]any) (*domain.Plan, error) {
	b := newBuild(ctx, in)
	stored, err := b.stored(h.name)
	if err != nil {
		return nil, err
	}
	readers := pick(cfg.Readers, stored, "submission_readers", defaultReaders)
	settings := map[string]any{"submission_readers": readers}
	for k, v := range extra {
		settings[k] = v
	}

	parent, err := b.venue(h.name, func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.venueID())).
			ReplySignatures(dsl.OneOf(dsl.Value(b.venueID()))).
			Process(FuncRelease, 1, settings)
	})
	if err != nil {
		return nil, err
	}
	b.plan.Note("submission readers: " + readers)

	err = b.children(h.name, parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.venueID())).
			ReplySignatures(dsl.OneOf(dsl.Value(b.venueID()))).
			ReplyReaders(b.submissionReaders(readers, e))
		if cfg.HideFields == nil {
			return
		}
		private := dsl.Literal(b.venueID(), b.pc(), b.authors(e))
		for i, name := range cfg.HideFields {
			d.Field(name, dsl.Field().Order(i+1).Optional().ReadableBy(private))
		}
		for _, name := range d.FieldNames() {
			if !slices.Contains(cfg.HideFields, name) {
				d.RemoveField(name)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

func (b *build) submissionReaders(mode string, e domain.Entity) dsl.Perm {
	switch mode {
	case ReadersEveryone:
		return dsl.Literal(everyone)
	case ReadersCommittee:
		groups := []any{b.venueID(), b.pc()}
		if b.in.Settings.SeniorAreaChairs {
			groups = append(groups, b.group(b.in.Naming.Names.SeniorAreaChairs))
		}
		if b.in.Settings.AreaChairs {
			groups = append(groups, b.group(b.in.Naming.Names.AreaChairs))
		}
		groups = append(groups, b.group(b.in.Naming.Names.Reviewers), b.authors(e))
		return dsl.Literal(groups...)
	case ReadersAssigned:
		groups := append([]any{b.venueID()}, b.committee(e)...)
		return dsl.Literal(append(groups, b.reviewers(e), b.authors(e))...)
	default:
		return dsl.Literal(b.venueID(), b.pc(), b.authors(e))
	}
}
