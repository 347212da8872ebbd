package stages

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/aretw0/venueflow/pkg/submission"
	"github.com/aretw0/venueflow/pkg/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type lookup map[string]*domain.WorkflowDefinition

func (l lookup) Lookup(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	return l[id].Clone()
}

// harness applies events the way the dispatcher does, without persistence ports.
type harness struct {
	t        *testing.T
	form     *domain.RequestForm
	defs     lookup
	states   map[domain.StageType]*domain.StageState
	history  map[domain.StageType][]domain.StageEvent
	entities []domain.Entity
	seq      int64
	changed  bool
}

func newHarness(t *testing.T, settings map[string]any) *harness {
	content := map[string]any{"title": "Conference 2025", "abbreviated_venue_name": "CONF25"}
	for k, v := range settings {
		content[k] = v
	}
	return &harness{
		t:       t,
		form:    domain.NewRequestForm("form-1", "Conf/2025", 1, content, now),
		defs:    lookup{},
		states:  map[domain.StageType]*domain.StageState{},
		history: map[domain.StageType][]domain.StageEvent{},
		entities: []domain.Entity{
			{ID: "sub-1", Number: 1, Status: domain.EntityActive, Decision: "Accept (Poster)"},
			{ID: "sub-2", Number: 2, Status: domain.EntityActive, Decision: "Reject", Flags: []string{EthicsFlag}},
			{ID: "sub-3", Number: 3, Status: domain.EntityWithdrawn},
		},
	}
}

func (h *harness) apply(handler registry.Handler, content map[string]any) (*domain.Plan, error) {
	h.t.Helper()
	h.seq++
	stage := handler.Stage()
	ev := domain.StageEvent{StageType: stage, Content: content, RequestFormID: h.form.ID, Sequence: h.seq}
	settings, err := venue.Load(h.form)
	require.NoError(h.t, err)

	state, ok := h.states[stage]
	if !ok {
		state = domain.NewStageState(h.form.ID, stage)
	}
	h.changed = domain.Changed(handler.TrackedFields(), ev, h.history[stage])
	in := &registry.Input{
		Event:       ev,
		Form:        h.form,
		Settings:    settings,
		Naming:      venue.NewNaming(h.form, venue.DefaultNames(), settings),
		State:       state,
		States:      h.states,
		History:     h.history[stage],
		Changed:     h.changed,
		Definitions: h.defs,
		Entities:    h.entities,
		Now:         now,
	}
	plan, err := handler.Apply(context.Background(), in)
	if err != nil {
		return nil, err
	}
	for _, def := range plan.AllDefinitions() {
		h.defs[def.ID] = def
	}
	next := state.Clone()
	next.Status = next.Next()
	next.LastApplied = ev.Sequence
	h.states[stage] = next
	h.history[stage] = append(h.history[stage], ev)
	return plan, nil
}

func (h *harness) run(handler registry.Handler, content map[string]any) *domain.Plan {
	h.t.Helper()
	plan, err := h.apply(handler, content)
	require.NoError(h.t, err)
	return plan
}

func ids(defs []*domain.WorkflowDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func TestDecision_OptionsRegenerateEnum(t *testing.T) {
	h := newHarness(t, nil)
	decision := NewDecision()

	first := h.run(decision, map[string]any{"decision_options": "Accept, Reject"})
	require.Len(t, first.Definitions, 1)
	def := first.Definitions[0]
	assert.Equal(t, "Conf/2025/-/Request1/Decision", def.ID)
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, []any{"Accept", "Reject"}, def.Reply.Content["decision"].Value.Enum)
	assert.Equal(t, []string{"Conf/2025/Paper1/-/Decision", "Conf/2025/Paper2/-/Decision"}, ids(first.Children))

	second := h.run(decision, map[string]any{"decision_options": "Accept, Revise, Reject"})
	assert.True(t, h.changed)
	def = second.Definitions[0]
	assert.Equal(t, 2, def.Version)
	assert.Equal(t, []any{"Accept", "Revise", "Reject"}, def.Reply.Content["decision"].Value.Enum)
	assert.Equal(t, "Paper Decision", def.Reply.Content["title"].Value.Const)
	assert.True(t, second.Regenerated)
	require.Len(t, second.Children, 2)
	assert.Equal(t, []any{"Accept", "Revise", "Reject"}, second.Children[0].Reply.Content["decision"].Value.Enum)
	assert.Equal(t, 2, second.Children[0].Version)
}

func TestDecision_UntrackedChangeKeepsChildren(t *testing.T) {
	h := newHarness(t, nil)
	decision := NewDecision()
	h.run(decision, map[string]any{"decision_options": "Accept, Reject"})

	plan := h.run(decision, map[string]any{
		"decision_options":  "Accept, Reject",
		"decision_deadline": "2025-06-01 12:00",
	})
	assert.False(t, h.changed)
	assert.False(t, plan.Regenerated)
	assert.Empty(t, plan.Children)

	def := plan.Definitions[0]
	assert.Equal(t, 2, def.Version)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), *def.Window.Due)
	assert.Equal(t, *def.Window.Due, plan.Milestones[domain.MilestoneDeadline])
	assert.Equal(t, []any{"Accept", "Reject"}, def.Reply.Content["decision"].Value.Enum)
}

func TestDecision_RedeliveryKeepsVersion(t *testing.T) {
	h := newHarness(t, nil)
	content := map[string]any{"decision_options": "Accept, Reject"}
	first := h.run(NewDecision(), content)

	// The same configuration applied again builds identical definitions.
	again := h.run(NewDecision(), content)
	assert.Equal(t, first.Definitions[0].Version, again.Definitions[0].Version)
	assert.True(t, domain.SameContent(first.Definitions[0], again.Definitions[0]))
}

func TestDecision_ReleaseReadersPersist(t *testing.T) {
	h := newHarness(t, nil)
	plan := h.run(NewDecision(), map[string]any{"release_decisions_to_authors": "Yes"})
	readers := plan.Children[0].Reply.Readers.Literal
	require.NotEmpty(t, readers)
	last, ok := readers[len(readers)-1].Literal()
	require.True(t, ok)
	assert.Equal(t, "Conf/2025/Paper1/Authors", last)

	// Absent from the next event, the release setting keeps its stored value.
	plan = h.run(NewDecision(), map[string]any{"decision_options": "Accept, Reject"})
	readers = plan.Children[0].Reply.Readers.Literal
	last, _ = readers[len(readers)-1].Literal()
	assert.Equal(t, "Conf/2025/Paper1/Authors", last)
}

func TestComment_ReadersExample(t *testing.T) {
	h := newHarness(t, map[string]any{"area_chairs": "Yes", "senior_area_chairs": "Yes"})
	plan := h.run(NewComment(), map[string]any{"readers": "senior_area_chairs"})
	require.NotEmpty(t, plan.Children)

	child := plan.Children[0]
	entity := h.entities[0]
	assert.Equal(t, "Conf/2025/Paper1/-/Official_Comment", child.ID)
	require.Len(t, child.Reply.Readers.Matchers, 2)
	assert.False(t, child.Reply.Readers.Matchers[0].Optional)
	assert.True(t, child.Reply.Readers.Matchers[1].Optional)

	pc := "Conf/2025/Program_Chairs"
	sac := "Conf/2025/Paper1/Senior_Area_Chairs"
	note := func(readers ...string) domain.Note {
		return domain.Note{
			Invitation: child.ID,
			Forum:      entity.ID,
			Signatures: []string{pc},
			Readers:    readers,
			Writers:    []string{"Conf/2025", pc},
			Content:    map[string]any{"comment": "Please check the appendix."},
		}
	}
	ctx := submission.Context{Entity: &entity, Venue: h.form}

	_, err := submission.Validate(child, note(pc), ctx)
	assert.NoError(t, err)

	_, err = submission.Validate(child, note(pc, sac), ctx)
	assert.NoError(t, err)

	_, err = submission.Validate(child, note(sac), ctx)
	require.Error(t, err)
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "readers")
}

func TestComment_PublicCommentsFollowSettings(t *testing.T) {
	h := newHarness(t, map[string]any{"public_comments": "Yes"})
	plan := h.run(NewComment(), map[string]any{})
	assert.Contains(t, ids(plan.Definitions), "Conf/2025/-/Request1/Public_Comment")

	h.form.AppendRevision(map[string]any{"title": "Conference 2025", "public_comments": "No"}, now)
	plan = h.run(NewComment(), map[string]any{})
	var public *domain.WorkflowDefinition
	for _, d := range plan.Definitions {
		if d.ID == "Conf/2025/-/Request1/Public_Comment" {
			public = d
		}
	}
	require.NotNil(t, public)
	assert.Equal(t, domain.DefinitionExpired, public.Status)
	assert.Equal(t, 2, public.Version)
}

func TestSubmission_ConditionalFullSubmission(t *testing.T) {
	h := newHarness(t, map[string]any{
		"submission_deadline":      "2025-03-01 23:59",
		"full_submission_deadline": "2025-03-08 23:59",
	})
	plan := h.run(NewSubmission(), map[string]any{})

	assert.Equal(t, []string{
		"Conf/2025/-/Request1/Submission",
		"Conf/2025/-/Request1/Full_Submission",
	}, ids(plan.Definitions))
	sub := plan.Definitions[0]
	assert.Equal(t, time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC), *sub.Window.Due)
	assert.Equal(t, *sub.Window.Due, plan.Milestones[domain.MilestoneDeadline])
	assert.False(t, plan.Definitions[1].Reply.Content["pdf"].Value.Optional)

	// Only active entities get withdrawal and desk rejection definitions.
	assert.Equal(t, []string{
		"Conf/2025/Paper1/-/Withdrawal",
		"Conf/2025/Paper2/-/Withdrawal",
		"Conf/2025/Paper1/-/Desk_Rejection",
		"Conf/2025/Paper2/-/Desk_Rejection",
	}, ids(plan.Children))
	withdrawal := plan.Children[0]
	require.NotNil(t, withdrawal.Process)
	assert.Equal(t, FuncWithdrawal, withdrawal.Process.Name)
	assert.Equal(t, "sub-1", withdrawal.Entity.ID)
}

func TestSubmission_RemovedFieldsStayRemoved(t *testing.T) {
	h := newHarness(t, nil)
	h.run(NewSubmission(), map[string]any{"remove_submission_options": "keywords"})
	plan := h.run(NewSubmission(), map[string]any{"due_date": "2025-03-15"})

	sub := plan.Definitions[0]
	assert.NotContains(t, sub.Reply.Content, "keywords")
	assert.Contains(t, sub.Reply.Content, "title")
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *sub.Window.Due)
}

func TestSubmission_InvalidContent(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.apply(NewSubmission(), map[string]any{"due_date": "tomorrow"})
	var se *domain.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.KindSchema, domain.KindOf(err))
}

func TestReview_EthicsFlagFollowsSettings(t *testing.T) {
	h := newHarness(t, map[string]any{"ethics_reviewers": "Yes"})
	plan := h.run(NewReview(), map[string]any{"review_rating_options": "1: bad, 2: good"})
	assert.Contains(t, ids(plan.Definitions), "Conf/2025/-/Request1/Ethics_Review_Flag")
	assert.Equal(t, []any{"1: bad", "2: good"}, plan.Definitions[0].Reply.Content["rating"].Value.Enum)

	child := plan.Children[0]
	assert.Equal(t, "Conf/2025/-/Request1/Official_Review", child.Parent)
	assert.Nil(t, child.Window.Due)
	require.Len(t, child.Reply.Signatures.Matchers, 1)
	prefix, ok := child.Reply.Signatures.Matchers[0].Prefix.Literal()
	require.True(t, ok)
	assert.Equal(t, `Conf/2025/Paper1/Reviewer_.*`, prefix)

	plan = h.run(NewEthicsReview(), map[string]any{"ethics_review_submissions": "1"})
	assert.Equal(t, []string{"Conf/2025/Paper1/-/Ethics_Review", "Conf/2025/Paper2/-/Ethics_Review"}, ids(plan.Children))
}

func TestEthicsReview_BadNumbers(t *testing.T) {
	h := newHarness(t, map[string]any{"ethics_reviewers": "Yes"})
	_, err := h.apply(NewEthicsReview(), map[string]any{"ethics_review_submissions": "one"})
	assert.Equal(t, domain.KindSchema, domain.KindOf(err))
}

func TestMatching_SolverRuns(t *testing.T) {
	h := newHarness(t, map[string]any{"area_chairs": "Yes"})
	plan := h.run(NewMatching(), map[string]any{"compute_affinity_scores": "Yes", "compute_conflicts": true})
	require.Len(t, plan.SolverRuns, 2)
	assert.Equal(t, "Conf/2025/-/Request1/Affinity_Score", plan.SolverRuns[0].Definition)
	assert.Equal(t, "Conf/2025/Area_Chairs", plan.SolverRuns[0].Group)
	assert.Equal(t, "Conf/2025/-/Request1/Conflict", plan.SolverRuns[1].Definition)

	// Unchanged matching settings do not recompute.
	plan = h.run(NewMatching(), map[string]any{"compute_affinity_scores": "Yes", "compute_conflicts": true})
	assert.Empty(t, plan.SolverRuns)
}

func TestBid_Notification(t *testing.T) {
	h := newHarness(t, nil)
	plan := h.run(NewBid(), map[string]any{"due_date": "2025-04-01 00:00", "bid_options": "High, Low"})
	require.Len(t, plan.Notifications, 1)
	n := plan.Notifications[0]
	assert.Equal(t, []string{"Conf/2025/Reviewers"}, n.Recipients)
	assert.Equal(t, "CONF25: bidding is open", n.Subject)
	assert.Equal(t, []any{"High", "Low"}, plan.Definitions[0].Reply.Content["label"].Value.Enum)
}

func TestSubmissionRevision_AcceptedOnly(t *testing.T) {
	h := newHarness(t, nil)
	plan := h.run(NewSubmissionRevision(), map[string]any{"accepted_submissions_only": "Yes"})
	assert.Equal(t, []string{"Conf/2025/Paper1/-/Revision"}, ids(plan.Children))
}

func TestPostSubmission_HideFields(t *testing.T) {
	h := newHarness(t, nil)
	plan := h.run(NewPostSubmission(), map[string]any{"hide_fields": "authors, authorids", "submission_readers": ReadersEveryone})
	child := plan.Children[0]
	require.Contains(t, child.Reply.Content, "authorids")
	assert.NotNil(t, child.Reply.Content["authorids"].Readers)

	plan = h.run(NewPostSubmission(), map[string]any{"hide_fields": "authorids"})
	assert.NotContains(t, plan.Children[0].Reply.Content, "authors")
	assert.Contains(t, plan.Children[0].Reply.Content, "authorids")
	assert.Equal(t, ReadersEveryone, plan.Definitions[0].Process.Config["submission_readers"])
}

func TestPostDecision_SupersedesPostSubmission(t *testing.T) {
	h := NewPostDecision()
	assert.Equal(t, []domain.StageType{domain.StagePostSubmission}, h.Supersedes())
	reqs := h.Requirements()
	assert.Equal(t, []domain.StageType{domain.StageDecision}, reqs.Active)
	require.Len(t, reqs.Milestones, 1)
	assert.Equal(t, "Decision_Stage.deadline", reqs.Milestones[0].String())

	hs := newHarness(t, nil)
	plan := hs.run(h, map[string]any{"release_submissions": "Yes", "reveal_authors": "No"})
	assert.Equal(t, "Conf/2025/-/Request1/Post_Decision", plan.Definitions[0].ID)
	assert.Contains(t, plan.Children[0].Reply.Content, "authorids")
}

func TestHandlers_CoverEveryStage(t *testing.T) {
	reg := NewRegistry()
	for _, st := range domain.StageTypes() {
		h, err := reg.Lookup(st)
		require.NoError(t, err, st)
		assert.Equal(t, st, h.Stage())
	}
}

func TestHandlers_BuildFreshDefinitions(t *testing.T) {
	reg := NewRegistry()
	h := newHarness(t, map[string]any{"area_chairs": "Yes", "ethics_reviewers": "Yes"})
	content := map[domain.StageType]map[string]any{
		domain.StageEthicsReview: {"ethics_review_submissions": "1"},
	}
	for _, st := range domain.StageTypes() {
		handler, err := reg.Lookup(st)
		require.NoError(t, err, st)
		c := content[st]
		if c == nil {
			c = map[string]any{}
		}
		_, err = h.apply(handler, c)
		require.NoError(t, err, st)
	}

	review := h.defs["Conf/2025/-/Request1/Official_Review"]
	require.NotNil(t, review)
	text := review.Reply.Content["review"].Value
	assert.Equal(t, 200000, text.MaxLength)
	assert.Empty(t, text.Regex)
}

func TestFunctions_Registered(t *testing.T) {
	fns := NewFunctions()
	h := newHarness(t, map[string]any{"public_comments": "Yes"})
	plans := []*domain.Plan{
		h.run(NewSubmission(), map[string]any{}),
		h.run(NewBid(), map[string]any{"bid_count": 40}),
		h.run(NewReview(), map[string]any{}),
		h.run(NewRebuttal(), map[string]any{}),
		h.run(NewDecision(), map[string]any{}),
		h.run(NewComment(), map[string]any{}),
		h.run(NewSubmissionRevision(), map[string]any{}),
		h.run(NewPostSubmission(), map[string]any{}),
	}
	for _, plan := range plans {
		for _, def := range plan.AllDefinitions() {
			if def.Process != nil {
				assert.True(t, fns.Has(*def.Process), def.Process.Name)
			}
		}
	}

	out, err := fns.Execute(context.Background(), domain.FunctionRef{Name: FuncWithdrawal, Version: 1, Config: map[string]any{"visibility": VisibilityPublic}},
		domain.Note{Forum: "sub-1"})
	require.NoError(t, err)
	effect := out.(*Effect)
	assert.Equal(t, domain.EntityWithdrawn, effect.EntityStatus)
	assert.Equal(t, []string{"everyone"}, effect.Readers)

	out, err = fns.Execute(context.Background(), domain.FunctionRef{Name: FuncCommentNotify, Version: 1,
		Config: map[string]any{"email_program_chairs": false, "program_chairs": "Conf/2025/Program_Chairs"}},
		domain.Note{Forum: "sub-1", Readers: []string{"Conf/2025/Program_Chairs", "Conf/2025/Paper1/Authors"}})
	require.NoError(t, err)
	effect = out.(*Effect)
	require.Len(t, effect.Notifications, 1)
	assert.Equal(t, []string{"Conf/2025/Paper1/Authors"}, effect.Notifications[0].Recipients)
}
