package venueflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/venueflow"
	"github.com/aretw0/venueflow/internal/stages"
	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, opts ...venueflow.Option) (*venueflow.Engine, *memory.Notifier) {
	t.Helper()
	dir := memory.NewDirectory()
	dir.Put("Conf/2025",
		domain.Entity{ID: "sub-1", Number: 1, Status: domain.EntityActive},
		domain.Entity{ID: "sub-2", Number: 2, Status: domain.EntityActive},
	)
	notifier := &memory.Notifier{}
	base := []venueflow.Option{
		venueflow.WithClock(memory.NewClock(now)),
		venueflow.WithDirectory(dir),
		venueflow.WithNotifier(notifier),
		venueflow.WithBaseURL("https://venues.example.org"),
	}
	eng := venueflow.New(append(base, opts...)...)
	_, err := eng.CreateForm(context.Background(), "form-1", "Conf/2025", 1, map[string]any{
		"title":                  "Conference 2025",
		"abbreviated_venue_name": "CONF25",
	})
	require.NoError(t, err)
	return eng, notifier
}

func event(stage domain.StageType, seq int64, content map[string]any) domain.StageEvent {
	return domain.StageEvent{StageType: stage, RequestFormID: "form-1", Sequence: seq, Content: content}
}

func TestEngine_HandleStageEvent(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	out := eng.HandleStageEvent(ctx, event(domain.StageSubmission, 1, map[string]any{"due_date": "2025-06-01 00:00"}))
	require.True(t, out.Success, "%v", out.Err)
	require.NotNil(t, out.Record)
	assert.Equal(t, "Submission stage applied", out.Record.Title)
	assert.Equal(t, "https://venues.example.org/group?id=Conf/2025", out.Record.ReferenceURL)
	assert.Contains(t, out.Definitions, "Conf/2025/-/Request1/Submission")

	defs, err := eng.Definitions(ctx, "Conf/2025/Paper")
	require.NoError(t, err)
	assert.NotEmpty(t, defs)

	records, err := eng.Activity(ctx, "form-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEngine_CreateFormTwice(t *testing.T) {
	eng, _ := newEngine(t)
	_, err := eng.CreateForm(context.Background(), "form-1", "Conf/2025", 1, nil)
	assert.Error(t, err)
}

func TestEngine_InvalidSettingsRejected(t *testing.T) {
	eng := venueflow.New()
	_, err := eng.CreateForm(context.Background(), "form-2", "Conf/2026", 1, map[string]any{
		"title":              "Conference 2026",
		"senior_area_chairs": "Yes",
	})
	assert.Error(t, err)
}

func TestEngine_AppendRevisionChangesSettings(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	require.True(t, eng.HandleStageEvent(ctx, event(domain.StageSubmission, 1, map[string]any{})).Success)
	out := eng.HandleStageEvent(ctx, event(domain.StageEthicsReview, 2, map[string]any{}))
	require.NotNil(t, out.Err)
	assert.Equal(t, domain.KindPrecondition, out.Err.Kind)

	rev, err := eng.AppendRevision(ctx, "form-1", map[string]any{
		"title":            "Conference 2025",
		"ethics_reviewers": "Yes",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev.Sequence)

	require.True(t, eng.HandleStageEvent(ctx, event(domain.StageReview, 3, map[string]any{})).Success)
	out = eng.HandleStageEvent(ctx, event(domain.StageEthicsReview, 4, map[string]any{}))
	assert.True(t, out.Success, "%v", out.Err)
}

func TestEngine_ConcurrentEventsOfOneForm(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.True(t, eng.HandleStageEvent(ctx, event(domain.StageSubmission, 1, map[string]any{})).Success)

	var wg sync.WaitGroup
	outcomes := make([]domain.Outcome, 10)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = eng.HandleStageEvent(ctx, event(domain.StageBid, int64(i+2), map[string]any{
				"bid_options": fmt.Sprintf("High, Low, Level %d", i),
			}))
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		assert.True(t, out.Success, "%v", out.Err)
	}
	records, err := eng.Activity(ctx, "form-1")
	require.NoError(t, err)
	assert.Len(t, records, 11, "one record per event")
}

func TestEngine_SubmitComment(t *testing.T) {
	eng, notifier := newEngine(t)
	ctx := context.Background()
	require.True(t, eng.HandleStageEvent(ctx, event(domain.StageSubmission, 1, map[string]any{})).Success)
	require.True(t, eng.HandleStageEvent(ctx, event(domain.StageComment, 2, map[string]any{})).Success)

	pc := "Conf/2025/Program_Chairs"
	authors := "Conf/2025/Paper1/Authors"
	note := domain.Note{
		Invitation: "Conf/2025/Paper1/-/Official_Comment",
		Forum:      "sub-1",
		Signatures: []string{pc},
		Readers:    []string{pc, authors},
		Writers:    []string{"Conf/2025", pc},
		Content:    map[string]any{"comment": "Please check the appendix."},
	}
	res, err := eng.Submit(ctx, "form-1", note)
	require.NoError(t, err)
	effect, ok := res.Effect.(*stages.Effect)
	require.True(t, ok)
	assert.Equal(t, "sub-1", effect.Entity)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{authors}, sent[0].Recipients)

	note.Signatures = []string{"~Someone_Else1"}
	_, err = eng.Submit(ctx, "form-1", note)
	assert.Error(t, err)
}

func TestEngine_SubmitClosedByParentWindow(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.True(t, eng.HandleStageEvent(ctx, event(domain.StageSubmission, 1, map[string]any{})).Success)
	out := eng.HandleStageEvent(ctx, event(domain.StageComment, 2, map[string]any{"expiration_date": "2025-04-01 00:00"}))
	require.True(t, out.Success, "%v", out.Err)

	pc := "Conf/2025/Program_Chairs"
	_, err := eng.Submit(ctx, "form-1", domain.Note{
		Invitation: "Conf/2025/Paper1/-/Official_Comment",
		Forum:      "sub-1",
		Signatures: []string{pc},
		Readers:    []string{pc},
		Writers:    []string{"Conf/2025", pc},
		Content:    map[string]any{"comment": "Too late."},
	})
	assert.ErrorIs(t, err, submission.ErrClosed)
}

func TestEngine_Replay(t *testing.T) {
	eng, _ := newEngine(t)
	source := memory.NewLoader(
		event(domain.StageDecision, 2, map[string]any{"decision_options": "Accept, Reject"}),
		event(domain.StageSubmission, 1, map[string]any{}),
	)

	outcomes, err := eng.Replay(context.Background(), source, "form-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.StageSubmission, outcomes[0].Stage)
	for _, out := range outcomes {
		assert.True(t, out.Success, "%v", out.Err)
	}
}
