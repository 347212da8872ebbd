package memory_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunRepositoryContract(t, store)
}

func TestLoader(t *testing.T) {
	l := memory.NewLoader(
		domain.StageEvent{RequestFormID: "b", Sequence: 2, StageType: domain.StageReview},
		domain.StageEvent{RequestFormID: "a", Sequence: 1, StageType: domain.StageSubmission},
		domain.StageEvent{RequestFormID: "b", Sequence: 1, StageType: domain.StageSubmission},
	)
	var _ ports.EventSource = l

	forms, err := l.Forms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, forms)

	events, err := l.Events(context.Background(), "b")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StageSubmission, events[0].StageType)
}

func TestCollaborators(t *testing.T) {
	ctx := context.Background()

	dir := memory.NewDirectory()
	dir.Put("v", domain.Entity{ID: "p2", Number: 2}, domain.Entity{ID: "p1", Number: 1})
	entities, err := dir.Entities(ctx, "v")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "p1", entities[0].ID)

	n := &memory.Notifier{}
	require.NoError(t, n.Notify(ctx, domain.Notification{Subject: "hi"}))
	assert.Len(t, n.Sent(), 1)
	n.Err = errors.New("smtp down")
	assert.Error(t, n.Notify(ctx, domain.Notification{}))

	s := &memory.Solver{}
	require.NoError(t, s.Solve(ctx, domain.SolverRun{Group: "Reviewers"}))
	assert.Len(t, s.Runs(), 1)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := memory.NewClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())

	var (
		_ ports.EntityDirectory = dir
		_ ports.Notifier        = n
		_ ports.MatchingSolver  = s
		_ ports.Clock           = c
	)
}

func TestMemoryStore_PersistUnserializable(t *testing.T) {
	store := memory.NewStore()
	def := &domain.WorkflowDefinition{
		ID:      "Conf/2025/-/Decision",
		Stage:   domain.StageDecision,
		Process: &domain.FunctionRef{Name: "decision_process", Version: 1, Config: map[string]any{"weight": math.Inf(1)}},
	}
	assert.Error(t, store.Persist(context.Background(), def))

	_, err := store.Definition(context.Background(), def.ID)
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
}
