package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/venueflow/internal/presentation/graph"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	defs := []*domain.WorkflowDefinition{
		{
			ID:      "Conf/2025/Paper1/-/Official_Review",
			Version: 2,
			Parent:  "Conf/2025/-/Official_Review",
			Status:  domain.DefinitionActive,
			Process: &domain.FunctionRef{Name: "review_process", Version: 1},
		},
		{
			ID:      "Conf/2025/-/Official_Review",
			Version: 1,
			Status:  domain.DefinitionActive,
			Window:  domain.Window{Due: &due},
		},
		{
			ID:      "Conf/2025/Paper2/-/Decision",
			Version: 1,
			Parent:  "Conf/2025/-/Decision",
			Status:  domain.DefinitionExpired,
		},
		nil,
	}

	out := graph.GenerateMermaid(defs)
	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `Conf_2025___Official_Review["Conf/2025/-/Official_Review v1 <br/> due 2025-06-01"]`)
	assert.Contains(t, out, `Conf_2025_Paper1___Official_Review[["Conf/2025/Paper1/-/Official_Review v2"]]`)
	assert.Contains(t, out, "Conf_2025___Official_Review --> Conf_2025_Paper1___Official_Review")
	assert.Contains(t, out, "Conf_2025___Decision -.-> Conf_2025_Paper2___Decision", "unlisted parent is dotted")
	assert.Contains(t, out, "class Conf_2025_Paper2___Decision expired;")

	// Parents sort before their children.
	assert.Less(t,
		strings.Index(out, `Conf_2025___Official_Review["`),
		strings.Index(out, `Conf_2025_Paper1___Official_Review[[`))
}

func TestGenerateMermaid_Empty(t *testing.T) {
	out := graph.GenerateMermaid(nil)
	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.NotContains(t, out, "class ")
}
