package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/venueflow"
	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := venueflow.New(venueflow.WithClock(memory.NewClock(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))))
	_, err := eng.CreateForm(context.Background(), "form-1", "Conf/2025", 1, map[string]any{"title": "Conference 2025"})
	require.NoError(t, err)
	return NewServer(eng, nil)
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return tc.Text
}

func TestHandleStageEvent(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleStageEvent(ctx, mcp.CallToolRequest{}, map[string]any{
		"form_id":    "form-1",
		"stage_type": "Submission_Stage",
		"sequence":   float64(1),
		"content":    `{"due_date": "2025-03-01 23:59"}`,
	})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "active", res.Transition)
	assert.Contains(t, res.Definitions, "Conf/2025/-/Request1/Submission")
	require.NotNil(t, res.Record)

	res, err = s.handleStageEvent(ctx, mcp.CallToolRequest{}, map[string]any{
		"form_id":    "form-1",
		"stage_type": "Ethics_Review_Stage",
		"sequence":   float64(2),
	})
	require.NoError(t, err, "stage failures are results, not tool errors")
	assert.False(t, res.Success)
	assert.Equal(t, "precondition", res.ErrorKind)

	_, err = s.handleStageEvent(ctx, mcp.CallToolRequest{}, map[string]any{
		"form_id":    "form-1",
		"stage_type": "Submission_Stage",
	})
	assert.ErrorContains(t, err, "sequence is required")
}

func TestPlanStageEvent(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.planStageEvent(ctx, map[string]any{
		"form_id":    "form-1",
		"stage_type": "Submission_Stage",
		"sequence":   float64(1),
		"content":    map[string]any{},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	var plan domain.Plan
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &plan))
	assert.NotEmpty(t, plan.Definitions)

	res, err = s.planStageEvent(ctx, map[string]any{
		"form_id":    "form-1",
		"stage_type": "Submission_Stage",
		"sequence":   float64(1),
		"content":    "[1, 2]",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListDefinitionsAndActivity(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.listActivity(ctx, map[string]any{"form_id": "form-1"})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", text(t, res))

	_, err = s.handleStageEvent(ctx, mcp.CallToolRequest{}, map[string]any{
		"form_id":    "form-1",
		"stage_type": "Submission_Stage",
		"sequence":   float64(1),
	})
	require.NoError(t, err)

	res, err = s.listDefinitions(ctx, map[string]any{"prefix": "Conf/2025/-/Request1/"})
	require.NoError(t, err)
	var defs []domain.WorkflowDefinition
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &defs))
	assert.NotEmpty(t, defs)

	res, err = s.listActivity(ctx, map[string]any{"form_id": "form-1"})
	require.NoError(t, err)
	var records []domain.ActivityRecord
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &records))
	assert.Len(t, records, 1)

	res, err = s.listActivity(ctx, map[string]any{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestEventFromArgs(t *testing.T) {
	ev, err := eventFromArgs(map[string]any{
		"form_id":    "form-1",
		"stage_type": "Bid_Stage",
		"sequence":   json.Number("7"),
		"content":    `{"bid_count": 40}`,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ev.Sequence)
	assert.Equal(t, json.Number("40"), ev.Content["bid_count"])

	_, err = eventFromArgs(map[string]any{"sequence": "seven"})
	assert.ErrorContains(t, err, "sequence must be a number")
}
