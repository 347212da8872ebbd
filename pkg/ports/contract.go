package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryContract runs a suite of tests to verify that a Repository implementation
// adheres to the defined interface contract.
func RunRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	formID := "contract-form-" + suffix
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Forms", func(t *testing.T) {
		form := domain.NewRequestForm(formID, "Contract/"+suffix, 1, map[string]any{"title": "Contract", "count": 42}, at)
		require.NoError(t, repo.SaveForm(ctx, form))

		loaded, err := repo.LoadForm(ctx, formID)
		require.NoError(t, err)
		assert.Equal(t, form.VenueID, loaded.VenueID)
		assert.Equal(t, "Contract", loaded.Current()["title"])
		assert.NotNil(t, loaded.Current()["count"])

		_, err = loaded.AppendRevision(map[string]any{"title": "Changed"}, at)
		require.NoError(t, err)
		again, err := repo.LoadForm(ctx, formID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Revision(), "loaded forms are copies")

		require.NoError(t, repo.SaveForm(ctx, loaded))
		again, err = repo.LoadForm(ctx, formID)
		require.NoError(t, err)
		assert.Equal(t, 2, again.Revision())

		ids, err := repo.ListForms(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, formID)

		_, err = repo.LoadForm(ctx, "non-existent-"+formID)
		assert.ErrorIs(t, err, domain.ErrFormNotFound)
	})

	t.Run("Journal", func(t *testing.T) {
		events := []domain.StageEvent{
			{StageType: domain.StageDecision, RequestFormID: formID, Sequence: 1, Content: map[string]any{"decision_options": "Accept"}, CreatedAt: at},
			{StageType: domain.StageReview, RequestFormID: formID, Sequence: 2, Content: map[string]any{}, CreatedAt: at},
			{StageType: domain.StageDecision, RequestFormID: formID, Sequence: 3, Content: map[string]any{"decision_options": "Accept, Reject"}, CreatedAt: at},
			{StageType: domain.StageDecision, RequestFormID: formID, Sequence: 5, Content: map[string]any{"decision_options": "Reject"}, CreatedAt: at},
		}
		for _, e := range events {
			appended, err := repo.Append(ctx, e)
			require.NoError(t, err)
			assert.True(t, appended)
		}

		dup := events[0]
		dup.Content = map[string]any{"decision_options": "Overwritten"}
		appended, err := repo.Append(ctx, dup)
		require.NoError(t, err)
		assert.False(t, appended, "same (form, sequence) is not appended twice")

		prior, err := repo.Prior(ctx, formID, domain.StageDecision, 3, 0)
		require.NoError(t, err)
		require.Len(t, prior, 2)
		assert.Equal(t, int64(1), prior[0].Sequence)
		assert.Equal(t, "Accept", prior[0].Content["decision_options"])
		assert.Equal(t, int64(3), prior[1].Sequence)

		latest, err := repo.Prior(ctx, formID, domain.StageDecision, 10, 1)
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.Equal(t, int64(5), latest[0].Sequence)

		all, err := repo.Events(ctx, formID)
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].Sequence, all[i].Sequence)
		}

		none, err := repo.Prior(ctx, "non-existent-"+formID, domain.StageDecision, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Definitions", func(t *testing.T) {
		prefix := "Contract/" + suffix + "/"
		def := &domain.WorkflowDefinition{
			ID:      prefix + "-/Request1/Decision",
			Stage:   domain.StageDecision,
			Version: 1,
			Status:  domain.DefinitionActive,
			Reply: domain.ReplyTemplate{
				Bindings: map[string]reference.Template{"forum": reference.MustParseTemplate("${2/id}")},
				Content: map[string]domain.FieldSpec{
					"decision": {Order: 1, Value: schema.Constraint{Type: schema.String(), Enum: []any{"Accept", "Reject"}}},
				},
			},
		}
		require.NoError(t, repo.Persist(ctx, def))

		loaded, err := repo.Definition(ctx, def.ID)
		require.NoError(t, err)
		assert.True(t, domain.SameContent(def, loaded))
		assert.Equal(t, "${2/id}", loaded.Reply.Bindings["forum"].String())

		updated, err := def.Clone()
		require.NoError(t, err)
		updated.Version = 2
		updated.Status = domain.DefinitionExpired
		require.NoError(t, repo.Persist(ctx, updated))
		loaded, err = repo.Definition(ctx, def.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.Version)
		assert.Equal(t, domain.DefinitionExpired, loaded.Status)

		child, err := def.Clone()
		require.NoError(t, err)
		child.ID = prefix + "Paper1/-/Decision"
		require.NoError(t, repo.Persist(ctx, child))

		list, err := repo.ListDefinitions(ctx, prefix)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, def.ID, list[0].ID)
		assert.Equal(t, child.ID, list[1].ID)

		list, err = repo.ListDefinitions(ctx, prefix+"Paper")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = repo.Definition(ctx, "non-existent-"+def.ID)
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
	})

	t.Run("Activity", func(t *testing.T) {
		for seq := int64(1); seq <= 2; seq++ {
			rec := domain.ActivityRecord{
				ID:        domain.ActivityRecordID(formID, seq, ""),
				FormID:    formID,
				EventID:   fmt.Sprintf("%s:%s:%d", formID, domain.StageDecision, seq),
				Stage:     domain.StageDecision,
				Title:     "Decision stage applied",
				CreatedAt: at.Add(time.Duration(seq) * time.Minute),
			}
			require.NoError(t, repo.Post(ctx, rec))
		}

		redelivered := domain.ActivityRecord{
			ID:        domain.ActivityRecordID(formID, 1, ""),
			FormID:    formID,
			Stage:     domain.StageDecision,
			Title:     "Decision stage applied again",
			CreatedAt: at.Add(time.Hour),
		}
		require.NoError(t, repo.Post(ctx, redelivered))

		records, err := repo.Activity(ctx, formID)
		require.NoError(t, err)
		require.Len(t, records, 2, "posting the same ID keeps the first record")
		assert.Equal(t, "Decision stage applied", records[0].Title)
		assert.True(t, records[0].CreatedAt.Equal(at.Add(time.Minute)))
		assert.Equal(t, domain.ActivityRecordID(formID, 2, ""), records[1].ID)
	})

	t.Run("States", func(t *testing.T) {
		st := domain.NewStageState(formID, domain.StageDecision)
		st.Status = domain.StatusActive
		st.Revision = 1
		st.LastApplied = 3
		st.Definitions = []string{"a"}
		st.Milestones = map[string]time.Time{domain.MilestoneDeadline: at}
		require.NoError(t, repo.SaveState(ctx, st))

		other := domain.NewStageState(formID, domain.StageReview)
		other.Status = domain.StatusExpired
		require.NoError(t, repo.SaveState(ctx, other))

		st.Status = domain.StatusReconfigured
		require.NoError(t, repo.SaveState(ctx, st))

		states, err := repo.States(ctx, formID)
		require.NoError(t, err)
		require.Len(t, states, 2)
		assert.Equal(t, domain.StatusReconfigured, states[domain.StageDecision].Status)
		assert.Equal(t, int64(3), states[domain.StageDecision].LastApplied)
		assert.True(t, at.Equal(states[domain.StageDecision].Milestones[domain.MilestoneDeadline]))
		assert.Equal(t, domain.StatusExpired, states[domain.StageReview].Status)

		empty, err := repo.States(ctx, "non-existent-"+formID)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
