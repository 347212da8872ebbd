package reporter_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixture() (*domain.RequestForm, domain.StageEvent) {
	form := domain.NewRequestForm("form-1", "ICML.cc/2025/Conference", 3, map[string]any{}, now)
	event := domain.StageEvent{
		StageType:     domain.StagePostSubmission,
		RequestFormID: form.ID,
		Sequence:      7,
	}
	return form, event
}

func TestReport_Success(t *testing.T) {
	store := memory.NewStore()
	r := reporter.New(store,
		reporter.WithBaseURL("https://venues.example.org/"),
		reporter.WithClock(memory.NewClock(now)),
	)
	form, event := fixture()
	outcome := &domain.Outcome{
		EventID:     event.ID(),
		Stage:       event.StageType,
		Success:     true,
		Definitions: []string{"a", "b"},
		Summary:     []string{"created Post_Submission"},
	}

	r.Report(context.Background(), form, event, outcome)

	require.NotNil(t, outcome.Record)
	assert.Equal(t, "Post Submission stage applied", outcome.Record.Title)
	assert.Equal(t, "https://venues.example.org/group?id=ICML.cc/2025/Conference", outcome.Record.ReferenceURL)
	assert.Contains(t, outcome.Record.Comment, "- created Post_Submission")
	assert.Empty(t, outcome.ReportError)

	records, err := store.Activity(context.Background(), form.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "form-1/Activity7", records[0].ID)
	assert.Equal(t, now, records[0].CreatedAt)
}

func TestReport_ErrorIsTruncated(t *testing.T) {
	store := memory.NewStore()
	r := reporter.New(store, reporter.WithMaxErrorLength(40))
	form, event := fixture()
	outcome := &domain.Outcome{
		Stage: event.StageType,
		Err: &domain.StageError{
			Stage:   event.StageType,
			Kind:    domain.KindSchema,
			EventID: event.ID(),
			Err:     errors.New(strings.Repeat("é", 100)),
		},
	}

	r.Report(context.Background(), form, event, outcome)

	rec := outcome.Record
	require.NotNil(t, rec)
	assert.Equal(t, "Error: Post Submission", rec.Title)
	assert.True(t, rec.IsError())
	assert.Equal(t, 40, len([]rune(rec.Error)))
	assert.Contains(t, rec.Comment, event.ID())
	assert.Empty(t, rec.ReferenceURL)
}

func TestReport_RecordsAreNeverReplaced(t *testing.T) {
	store := memory.NewStore()
	r := reporter.New(store)
	form, event := fixture()
	ctx := context.Background()

	failure := &domain.StageError{Kind: domain.KindCollaborator, Err: errors.New("first")}
	r.Report(ctx, form, event, &domain.Outcome{Err: failure})
	r.Report(ctx, form, event, &domain.Outcome{Err: &domain.StageError{Kind: domain.KindCollaborator, Err: errors.New("second")}})
	r.Report(ctx, form, event, &domain.Outcome{Success: true})
	r.Report(ctx, form, event, &domain.Outcome{Success: true, Summary: []string{"again"}})

	records, err := store.Activity(ctx, form.ID)
	require.NoError(t, err)
	require.Len(t, records, 2, "one record per outcome kind")

	var errs, successes []domain.ActivityRecord
	for _, rec := range records {
		if rec.IsError() {
			errs = append(errs, rec)
		} else {
			successes = append(successes, rec)
		}
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "first", "the earlier error record survives")
	assert.Equal(t, domain.ActivityRecordID(form.ID, event.Sequence, domain.KindCollaborator), errs[0].ID)
	require.Len(t, successes, 1)
	assert.NotContains(t, successes[0].Comment, "again")
}

type failingLog struct{}

func (failingLog) Post(context.Context, domain.ActivityRecord) error {
	return errors.New("log unavailable")
}

func (failingLog) Activity(context.Context, string) ([]domain.ActivityRecord, error) {
	return nil, nil
}

func TestReport_PostFailureIsNotRaised(t *testing.T) {
	r := reporter.New(failingLog{})
	form, event := fixture()
	outcome := &domain.Outcome{Success: true}

	r.Report(context.Background(), form, event, outcome)

	assert.True(t, outcome.Success)
	assert.Equal(t, "log unavailable", outcome.ReportError)
	assert.NotNil(t, outcome.Record)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", reporter.Truncate("abc", 5))
	assert.Equal(t, "ab", reporter.Truncate("abc", 2))
	assert.Equal(t, "日本", reporter.Truncate("日本語", 2))
	assert.Equal(t, "abc", reporter.Truncate("abc", 0))
}
