package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestLoader_Events(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"002-review.md": `---
stage_type: Review_Stage
request_form_id: form-1
sequence: 2
created_at: "2025-02-01T10:00:00Z"
content:
  review_deadline: "2025-03-01 23:59"
---
Open reviews.`,
		"001-submission.json": `{
  "stage_type": "Submission_Stage",
  "request_form_id": "form-1",
  "sequence": 1,
  "content": {"submission_deadline": "2025-01-15"}
}`,
		"other.md": `---
stage_type: Bid_Stage
request_form_id: form-2
sequence: 1
---`,
	})

	loader, err := Open(dir)
	require.NoError(t, err)
	var _ ports.EventSource = loader

	forms, err := loader.Forms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"form-1", "form-2"}, forms)

	events, err := loader.Events(context.Background(), "form-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StageSubmission, events[0].StageType)
	assert.Equal(t, domain.StageReview, events[1].StageType)
	assert.Equal(t, "2025-03-01 23:59", events[1].Content["review_deadline"])
	assert.Equal(t, 2025, events[1].CreatedAt.Year())

	empty, err := loader.Events(context.Background(), "form-2")
	require.NoError(t, err)
	require.Len(t, empty, 1)
	assert.NotNil(t, empty[0].Content)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.md": `---
stage_type: Bid_Stage
request_form_id: form-1
sequence: 3
---`,
		"b.json": `{"stage_type": "Review_Stage", "request_form_id": "form-1", "sequence": 3}`,
	})

	loader, err := Open(dir)
	require.NoError(t, err)

	_, err = loader.Forms(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_RejectsUnknownStage(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"bad.md": `---
stage_type: Party_Stage
request_form_id: form-1
sequence: 1
---`,
	})

	loader, err := Open(dir)
	require.NoError(t, err)

	_, err = loader.Events(context.Background(), "form-1")
	assert.ErrorIs(t, err, domain.ErrUnknownStage)
}
