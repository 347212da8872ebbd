package tui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeMarkdown(t *testing.T) {
	md := OutcomeMarkdown(domain.Outcome{
		Stage:       domain.StageDecision,
		Success:     true,
		Regenerated: true,
		Transition:  domain.StatusReconfigured,
		Definitions: []string{"Conf/2025/Paper1/-/Decision"},
		Summary:     []string{"decision options: Accept, Reject"},
	})
	assert.Contains(t, md, "## Decision_Stage: applied")
	assert.Contains(t, md, "Transition: `reconfigured`")
	assert.Contains(t, md, "- `Conf/2025/Paper1/-/Decision`")
	assert.Contains(t, md, "regenerated")

	failed := OutcomeMarkdown(domain.Outcome{
		Stage: domain.StageBid,
		Err:   &domain.StageError{Stage: domain.StageBid, Kind: domain.KindPrecondition, Err: errors.New("submission stage missing")},
	})
	assert.Contains(t, failed, "## Bid_Stage: failed")
	assert.Contains(t, failed, "precondition error")
}

func TestActivityMarkdown(t *testing.T) {
	assert.Equal(t, "_No activity._\n", ActivityMarkdown(nil))

	md := ActivityMarkdown([]domain.ActivityRecord{
		{
			Title:        "Submission stage applied",
			Stage:        domain.StageSubmission,
			Comment:      "Submissions close 2025-03-01.",
			ReferenceURL: "https://venues.example.org/group?id=Conf/2025",
			CreatedAt:    time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC),
		},
		{
			Title: "Bid stage failed",
			Stage: domain.StageBid,
			Error: "precondition: submission stage missing",
		},
	})
	assert.Contains(t, md, "## Submission stage applied")
	assert.Contains(t, md, "2025-01-10 08:30 UTC")
	assert.Contains(t, md, "[Venue](https://venues.example.org/group?id=Conf/2025)")
	assert.Contains(t, md, "```\nprecondition: submission stage missing\n```")
}

func TestRenderer_PlainOutsideTerminal(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	require.NoError(t, r.Activity(nil))
	assert.Equal(t, "_No activity._\n", buf.String())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), `|_|\___|_| |_|`)
}
