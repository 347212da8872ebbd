package stages

import (
	"context"
	"fmt"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/dsl"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/aretw0/venueflow/pkg/venue"
)

// Who besides the committee reads a submitted review.
const (
	ReleaseToAll      = "all"
	ReleaseToAssigned = "assigned"
	ReleaseToNone     = "none"
)

// EthicsFlag marks entities sent to ethics review.
const EthicsFlag = "ethics"

// Default options of a fresh review form.
var (
	DefaultRatingOptions = []string{
		"10: Top 5% of accepted papers, seminal paper",
		"8: Top 50% of accepted papers, clear accept",
		"6: Marginally above acceptance threshold",
		"5: Marginally below acceptance threshold",
		"3: Clear rejection",
		"1: Trivial or wrong",
	}
	DefaultConfidenceOptions = []string{
		"5: The reviewer is absolutely certain that the evaluation is correct",
		"4: The reviewer is confident but not absolutely certain",
		"3: The reviewer is fairly confident",
		"2: The reviewer is willing to defend the evaluation, but it is quite likely that the reviewer did not understand central parts of the paper",
		"1: The reviewer's evaluation is an educated guess",
	}
)

type reviewConfig struct {
	Window `mapstructure:",squash"`

	RatingOptions      []string `mapstructure:"review_rating_options"`
	ConfidenceOptions  []string `mapstructure:"review_confidence_options"`
	RemoveOptions      []string `mapstructure:"remove_review_form_options"`
	ReleaseToAuthors   *bool    `mapstructure:"release_reviews_to_authors"`
	ReleaseToReviewers *string  `mapstructure:"release_reviews_to_reviewers"`
}

// Review opens official reviews for every active submission.
type Review struct{ base }

// NewReview creates the Review_Stage handler.
func NewReview() *Review {
	return &Review{base{
		stage: domain.StageReview,
		reqs:  requires(domain.StageSubmission),
		tracked: []string{
			"review_rating_options",
			"review_confidence_options",
			"remove_review_form_options",
			"release_reviews_to_authors",
			"release_reviews_to_reviewers",
		},
	}}
}

func (h *Review) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg reviewConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)
	stored, err := b.stored("Official_Review")
	if err != nil {
		return nil, err
	}
	toAuthors := pick(cfg.ReleaseToAuthors, stored, "release_to_authors", false)
	toReviewers := pick(cfg.ReleaseToReviewers, stored, "release_to_reviewers", ReleaseToAssigned)

	form := func(d *dsl.DefinitionBuilder, fresh bool) {
		if fresh {
			d.Field("title", dsl.Field().Order(1).Type(schema.String()).Length(0, 500)).
				Field("review", dsl.Field().Order(2).Type(schema.String()).Length(1, 200000)).
				Field("rating", dsl.Field().Order(3).Type(schema.String()).Enum(strs(DefaultRatingOptions)...)).
				Field("confidence", dsl.Field().Order(4).Type(schema.String()).Enum(strs(DefaultConfidenceOptions)...))
		}
		if cfg.RatingOptions != nil {
			d.Field("rating", dsl.Field().Enum(strs(cfg.RatingOptions)...))
		}
		if cfg.ConfidenceOptions != nil {
			d.Field("confidence", dsl.Field().Enum(strs(cfg.ConfidenceOptions)...))
		}
		for _, name := range cfg.RemoveOptions {
			d.RemoveField(name)
		}
	}

	parent, err := b.venue("Official_Review", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.group(in.Naming.Names.Reviewers))).
			ReplySignatures(dsl.OneOf(dsl.Prefix(profileID))).
			Process(FuncReviewNotify, 1, map[string]any{
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

	err = b.children("Official_Review", parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		readers := append([]any{}, b.committee(e)...)
		switch toReviewers {
		case ReleaseToAll:
			readers = append(readers, b.group(in.Naming.Names.Reviewers))
		case ReleaseToNone:
			readers = append(readers, dsl.Ref(reference.FrameNote, "signatures/0"))
		default:
			readers = append(readers, b.reviewers(e))
		}
		if toAuthors {
			readers = append(readers, b.authors(e))
		}
		d.Readers(dsl.Literal(b.venueID(), b.reviewers(e))).
			Invitees(dsl.Literal(b.reviewers(e))).
			ReplySignatures(dsl.OneOf(b.anonymous(e, singular(in.Naming.Names.Reviewers)))).
			ReplyReaders(dsl.Literal(readers...)).
			ReplyWriters(dsl.Literal(b.venueID(), dsl.Ref(reference.FrameNote, "signatures/0"))).
			Bind("replyto", dsl.Ref(reference.FrameEntity, "id"))
		form(d, fresh)
	})
	if err != nil {
		return nil, err
	}

	if in.Settings.Flag(venue.FlagEthicsReviewers) {
		flag, err := b.venue("Ethics_Review_Flag", func(d *dsl.DefinitionBuilder, fresh bool) {
			d.Readers(dsl.Literal(b.venueID(), b.pc())).
				Invitees(dsl.Literal(b.group(in.Naming.Names.Reviewers), b.pc())).
				ReplySignatures(dsl.OneOf(dsl.Prefix(profileID), dsl.Value(b.pc()))).
				ReplyReaders(dsl.Items(dsl.Value(b.venueID()), dsl.Value(b.pc()), dsl.Value(dsl.Ref(reference.FrameNote, "signatures/0")).Optional())).
				Field("flag_for_ethics_review", dsl.Field().Order(1).Type(schema.Bool())).
				Field("ethics_concerns", dsl.Field().Order(2).Type(schema.String()).Optional())
		})
		if err != nil {
			return nil, err
		}
		b.plan.Note(flag.ID + " open")
	} else if err := b.expire("Ethics_Review_Flag"); err != nil {
		return nil, err
	}
	return b.result(), nil
}

type rebuttalConfig struct {
	Window `mapstructure:",squash"`

	Count   *int    `mapstructure:"number_of_rebuttals"`
	Readers *string `mapstructure:"rebuttal_readers"`
}

// Rebuttal lets authors reply to the reviews of their submission.
type Rebuttal struct{ base }

// NewRebuttal creates the Rebuttal_Stage handler.
func NewRebuttal() *Rebuttal {
	return &Rebuttal{base{
		stage:   domain.StageRebuttal,
		reqs:    requires(domain.StageReview),
		tracked: []string{"number_of_rebuttals", "rebuttal_readers"},
	}}
}

func (h *Rebuttal) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg rebuttalConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)
	stored, err := b.stored("Rebuttal")
	if err != nil {
		return nil, err
	}
	count := pickInt(cfg.Count, stored, "number_of_rebuttals", 1)
	readers := pick(cfg.Readers, stored, "rebuttal_readers", ReleaseToAssigned)

	parent, err := b.venue("Rebuttal", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.group(in.Naming.Names.Authors))).
			ReplySignatures(dsl.OneOf(dsl.Prefix(profileID))).
			Process(FuncRebuttalLimit, 1, map[string]any{
				"number_of_rebuttals": count,
				"rebuttal_readers":    readers,
			})
		if fresh {
			d.Field("rebuttal", dsl.Field().Order(1).Type(schema.String()).Length(1, 2500))
		}
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)
	b.plan.Note(fmt.Sprintf("%d rebuttal(s) per submission", count))

	err = b.children("Rebuttal", parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		visible := append([]any{}, b.committee(e)...)
		switch readers {
		case ReleaseToAll:
			visible = append(visible, b.group(in.Naming.Names.Reviewers))
		case ReleaseToAssigned:
			visible = append(visible, b.reviewers(e))
		}
		visible = append(visible, b.authors(e))
		d.Readers(dsl.Literal(b.venueID(), b.authors(e))).
			Invitees(dsl.Literal(b.authors(e))).
			ReplySignatures(dsl.OneOf(dsl.Value(b.authors(e)))).
			ReplyReaders(dsl.Literal(visible...)).
			Field("rebuttal", dsl.Field().Order(1).Type(schema.String()).Length(1, 2500)).
			Process(FuncRebuttalLimit, 1, map[string]any{"number_of_rebuttals": count})
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

var ethicsRecommendations = []any{
	"1: No concerns",
	"2: Concerns but publication is acceptable",
	"3: Flag for ethics chairs",
}

type ethicsConfig struct {
	Window `mapstructure:",squash"`

	// Submissions lists entity numbers sent to ethics review in addition to
	// those flagged by reviewers.
	Submissions []string `mapstructure:"ethics_review_submissions"`
}

// EthicsReview opens ethics reviews for flagged submissions.
type EthicsReview struct{ base }

// NewEthicsReview creates the Ethics_Review_Stage handler.
func NewEthicsReview() *EthicsReview {
	return &EthicsReview{base{
		stage: domain.StageEthicsReview,
		reqs: registry.Requirements{
			Active: []domain.StageType{domain.StageReview},
			Flag:   venue.FlagEthicsReviewers,
		},
		tracked: []string{"ethics_review_submissions"},
	}}
}

func (h *EthicsReview) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg ethicsConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	numbers, err := parseNumbers(in, "ethics_review_submissions", cfg.Submissions)
	if err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)
	ethics := in.Naming.Names.EthicsReviewers

	parent, err := b.venue("Ethics_Review", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.group(in.Naming.Names.EthicsChairs))).
			Invitees(dsl.Literal(b.group(ethics))).
			ReplySignatures(dsl.OneOf(dsl.Prefix(profileID)))
		if fresh {
			d.Field("recommendation", dsl.Field().Order(1).Type(schema.String()).
				Enum(ethicsRecommendations...)).
				Field("ethics_review", dsl.Field().Order(2).Type(schema.String()))
		}
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)

	var flagged []domain.Entity
	for _, e := range in.ActiveEntities() {
		if e.HasFlag(EthicsFlag) || numbers[e.Number] {
			flagged = append(flagged, e)
		}
	}
	err = b.children("Ethics_Review", parent.ID, flagged, func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.entityGroup(e, ethics))).
			Invitees(dsl.Literal(b.entityGroup(e, ethics))).
			ReplySignatures(dsl.OneOf(b.anonymous(e, singular(ethics)))).
			ReplyReaders(dsl.Literal(b.venueID(), b.pc(), b.group(in.Naming.Names.EthicsChairs), b.entityGroup(e, ethics))).
			Field("recommendation", dsl.Field().Order(1).Type(schema.String()).
				Enum(ethicsRecommendations...)).
			Field("ethics_review", dsl.Field().Order(2).Type(schema.String()))
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

type metaReviewConfig struct {
	Window `mapstructure:",squash"`

	Recommendations  []string `mapstructure:"recommendation_options"`
	ReleaseToAuthors *bool    `mapstructure:"release_meta_reviews_to_authors"`
}

// DefaultRecommendations are offered when a fresh meta review has no options.
var DefaultRecommendations = []string{"Accept (Oral)", "Accept (Poster)", "Reject"}

// MetaReview opens meta reviews for area chairs or program chairs.
type MetaReview struct{ base }

// NewMetaReview creates the Meta_Review_Stage handler.
func NewMetaReview() *MetaReview {
	return &MetaReview{base{
		stage:   domain.StageMetaReview,
		reqs:    requires(domain.StageReview),
		tracked: []string{"recommendation_options", "release_meta_reviews_to_authors"},
	}}
}

func (h *MetaReview) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg metaReviewConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)
	stored, err := b.stored("Meta_Review")
	if err != nil {
		return nil, err
	}
	toAuthors := pick(cfg.ReleaseToAuthors, stored, "release_to_authors", false)

	writers := in.Naming.Names.ProgramChairs
	if in.Settings.AreaChairs {
		writers = in.Naming.Names.AreaChairs
	}
	form := func(d *dsl.DefinitionBuilder, fresh bool) {
		if fresh {
			d.Field("metareview", dsl.Field().Order(1).Type(schema.String()).Length(1, 5000)).
				Field("recommendation", dsl.Field().Order(2).Type(schema.String()).Enum(strs(DefaultRecommendations)...))
		}
		if cfg.Recommendations != nil {
			d.Field("recommendation", dsl.Field().Enum(strs(cfg.Recommendations)...))
		}
	}

	parent, err := b.venue("Meta_Review", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.group(writers))).
			ReplySignatures(dsl.OneOf(dsl.Prefix(profileID))).
			Process(FuncReviewNotify, 1, map[string]any{"release_to_authors": toAuthors})
		form(d, fresh)
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)

	err = b.children("Meta_Review", parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		readers := append([]any{}, b.committee(e)...)
		if toAuthors {
			readers = append(readers, b.authors(e))
		}
		signer := dsl.Value(b.pc())
		if in.Settings.AreaChairs {
			signer = b.anonymous(e, singular(in.Naming.Names.AreaChairs))
		}
		d.Readers(dsl.Literal(b.venueID(), b.entityGroup(e, writers))).
			Invitees(dsl.Literal(b.entityGroup(e, writers))).
			ReplySignatures(dsl.OneOf(signer)).
			ReplyReaders(dsl.Literal(readers...)).
			Bind("replyto", dsl.Ref(reference.FrameEntity, "id"))
		form(d, fresh)
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

type reviewRatingConfig struct {
	Window `mapstructure:",squash"`

	Options []string `mapstructure:"rating_options"`
}

// DefaultReviewRatings are offered when a fresh review rating has no options.
var DefaultReviewRatings = []string{"Exceeds expectations", "Meets expectations", "Falls below expectations"}

// ReviewRating lets area chairs rate the reviews of their submissions.
type ReviewRating struct{ base }

// NewReviewRating creates the Review_Rating_Stage handler.
func NewReviewRating() *ReviewRating {
	return &ReviewRating{base{
		stage:   domain.StageReviewRating,
		reqs:    requires(domain.StageReview),
		tracked: []string{"rating_options"},
	}}
}

func (h *ReviewRating) Apply(ctx context.Context, in *registry.Input) (*domain.Plan, error) {
	var cfg reviewRatingConfig
	if err := decode(in, &cfg); err != nil {
		return nil, err
	}
	b := newBuild(ctx, in)

	form := func(d *dsl.DefinitionBuilder, fresh bool) {
		if fresh {
			d.Field("review_quality", dsl.Field().Order(1).Type(schema.String()).Enum(strs(DefaultReviewRatings)...))
		}
		if cfg.Options != nil {
			d.Field("review_quality", dsl.Field().Enum(strs(cfg.Options)...))
		}
	}
	parent, err := b.venue("Review_Rating", func(d *dsl.DefinitionBuilder, fresh bool) {
		d.Readers(dsl.Literal(b.venueID(), b.pc())).
			Invitees(dsl.Literal(b.pc())).
			ReplySignatures(dsl.OneOf(dsl.Value(b.pc())))
		form(d, fresh)
		cfg.Window.apply(d, in.Event.Content)
	})
	if err != nil {
		return nil, err
	}
	b.deadline(parent)

	err = b.children("Review_Rating", parent.ID, in.ActiveEntities(), func(d *dsl.DefinitionBuilder, e domain.Entity, fresh bool) {
		raters := b.committee(e)
		items := make([]dsl.Item, 0, len(raters))
		for _, r := range raters {
			items = append(items, dsl.Value(r))
		}
		if in.Settings.AreaChairs {
			items = append(items, b.anonymous(e, singular(in.Naming.Names.AreaChairs)))
		}
		d.Readers(dsl.Literal(append([]any{b.venueID()}, raters...)...)).
			Invitees(dsl.Literal(raters...)).
			ReplySignatures(dsl.OneOf(items...)).
			ReplyReaders(dsl.Literal(raters...))
		form(d, fresh)
	})
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}
