package stages

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/registry"
)

// Process functions referenced by the definitions of this package.
const (
	FuncBidCount        = "bid_count"
	FuncReviewNotify    = "review_notify"
	FuncRebuttalLimit   = "rebuttal_limit"
	FuncRelease         = "release_submission"
	FuncDecisionRelease = "decision_release"
	FuncRevisionUpdate  = "revision_update"
	FuncCommentNotify   = "comment_notify"
)

// Effect is what a process function reports after a record was accepted.
type Effect struct {
	Entity        string                `json:"entity,omitempty"`
	EntityStatus  domain.EntityStatus   `json:"entity_status,omitempty"`
	Readers       []string              `json:"readers,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
	Values        map[string]any        `json:"values,omitempty"`
}

// RegisterFunctions adds the process functions of every stage to fns.
func RegisterFunctions(fns *registry.Functions) {
	fns.Register(FuncWithdrawal, 1, statusChange(domain.EntityWithdrawn))
	fns.Register(FuncDeskRejection, 1, statusChange(domain.EntityDeskRejected))
	fns.Register(FuncBidCount, 1, bidCount)
	fns.Register(FuncReviewNotify, 1, reviewNotify)
	fns.Register(FuncRebuttalLimit, 1, rebuttalLimit)
	fns.Register(FuncRelease, 1, releaseSubmission)
	fns.Register(FuncDecisionRelease, 1, decisionRelease)
	fns.Register(FuncRevisionUpdate, 1, revisionUpdate)
	fns.Register(FuncCommentNotify, 1, commentNotify)
}

func forum(note domain.Note) string {
	if note.Forum != "" {
		return note.Forum
	}
	return note.ReplyTo
}

func statusChange(status domain.EntityStatus) registry.Function {
	return func(_ context.Context, config map[string]any, note domain.Note) (any, error) {
		if forum(note) == "" {
			return nil, fmt.Errorf("%s requires a forum", status)
		}
		effect := &Effect{Entity: forum(note), EntityStatus: status}
		if v, _ := config["visibility"].(string); v == VisibilityPublic {
			effect.Readers = []string{everyone}
		}
		return effect, nil
	}
}

func bidCount(_ context.Context, config map[string]any, note domain.Note) (any, error) {
	return &Effect{Values: map[string]any{"required_bids": config["count"], "label": note.Content["label"]}}, nil
}

func reviewNotify(_ context.Context, config map[string]any, note domain.Note) (any, error) {
	effect := &Effect{Entity: forum(note)}
	if toAuthors, _ := config["release_to_authors"].(bool); toAuthors && len(note.Readers) > 0 {
		effect.Notifications = append(effect.Notifications, domain.Notification{
			Recipients: note.Readers,
			Subject:    "A review was posted",
			Message:    fmt.Sprintf("A review was posted on %s.", forum(note)),
			Definition: note.Invitation,
		})
	}
	return effect, nil
}

func rebuttalLimit(_ context.Context, config map[string]any, note domain.Note) (any, error) {
	return &Effect{Entity: forum(note), Values: map[string]any{"number_of_rebuttals": config["number_of_rebuttals"]}}, nil
}

func releaseSubmission(_ context.Context, config map[string]any, note domain.Note) (any, error) {
	return &Effect{Entity: forum(note), Values: domain.CloneContent(config)}, nil
}

func decisionRelease(_ context.Context, config map[string]any, note domain.Note) (any, error) {
	decision, _ := note.Content["decision"].(string)
	if decision == "" {
		return nil, fmt.Errorf("decision is required")
	}
	effect := &Effect{Entity: forum(note), Values: map[string]any{"decision": decision}}
	if toAuthors, _ := config["release_to_authors"].(bool); toAuthors {
		effect.Notifications = append(effect.Notifications, domain.Notification{
			Recipients: note.Readers,
			Subject:    "Decision posted",
			Message:    fmt.Sprintf("The decision on %s is %s.", forum(note), decision),
			Definition: note.Invitation,
		})
	}
	return effect, nil
}

func revisionUpdate(_ context.Context, _ map[string]any, note domain.Note) (any, error) {
	return &Effect{Entity: forum(note), Values: domain.CloneContent(note.Content)}, nil
}

func commentNotify(_ context.Context, config map[string]any, note domain.Note) (any, error) {
	effect := &Effect{Entity: forum(note)}
	recipients := note.Readers
	if email, _ := config["email_program_chairs"].(bool); !email {
		pc, _ := config["program_chairs"].(string)
		recipients = slices.DeleteFunc(slices.Clone(recipients), func(r string) bool { return r == pc })
	}
	if len(recipients) > 0 {
		effect.Notifications = append(effect.Notifications, domain.Notification{
			Recipients: recipients,
			Subject:    "New comment",
			Message:    fmt.Sprintf("A comment was posted on %s.", forum(note)),
			Definition: note.Invitation,
		})
	}
	return effect, nil
}
