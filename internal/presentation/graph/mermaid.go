// Package graph draws the workflow definitions of a venue as a Mermaid flowchart.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/venueflow/pkg/domain"
)

// GenerateMermaid produces a flowchart with one node per definition. Per-entity
// children hang off their venue-level parent; definitions with a process
// function are drawn as subroutines. Node classes follow the status.
func GenerateMermaid(defs []*domain.WorkflowDefinition) string {
	sorted := make([]*domain.WorkflowDefinition, 0, len(defs))
	for _, d := range defs {
		if d != nil {
			sorted = append(sorted, d)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	known := make(map[string]bool, len(sorted))
	for _, d := range sorted {
		known[d.ID] = true
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")
	for _, d := range sorted {
		id := sanitizeMermaidID(d.ID)
		opener, closer := "[", "]"
		if d.Process != nil {
			opener, closer = "[[", "]]"
		}
		label := fmt.Sprintf("%s v%d", d.ID, d.Version)
		if d.Window.Due != nil {
			label += " <br/> due " + d.Window.Due.UTC().Format("2006-01-02")
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)

		if d.Parent == "" {
			continue
		}
		arrow := "-->"
		if !known[d.Parent] {
			// Parent outside the listed prefix.
			arrow = "-.->"
			fmt.Fprintf(&sb, "    %s(\"%s\")\n", sanitizeMermaidID(d.Parent), d.Parent)
			known[d.Parent] = true
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(d.Parent), arrow, id)
	}

	sb.WriteString("\n    classDef active fill:#e8f5e9,stroke:#2e7d32,color:#000;\n")
	sb.WriteString("    classDef expired fill:#eeeeee,stroke:#9e9e9e,color:#666,stroke-dasharray:4;\n")
	sb.WriteString("    classDef draft fill:#fff8e1,stroke:#f9a825,color:#000;\n")
	for _, d := range sorted {
		if d.Status != "" {
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(d.ID), d.Status)
		}
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "~", "_").Replace(id)
}
