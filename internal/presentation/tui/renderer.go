package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer writes activity as markdown, styled with glamour when the output
// is a terminal and raw otherwise.
type Renderer struct {
	w      io.Writer
	render func(string) (string, error)
}

// NewRenderer returns a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	r := &Renderer{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width := 100
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			width = cols - 4
		}
		if tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		); err == nil {
			r.render = tr.Render
		}
	}
	return r
}

// Outcome writes the result of one stage event.
func (r *Renderer) Outcome(out domain.Outcome) error {
	return r.write(OutcomeMarkdown(out))
}

// Activity writes the activity records of a form.
func (r *Renderer) Activity(records []domain.ActivityRecord) error {
	return r.write(ActivityMarkdown(records))
}

func (r *Renderer) write(md string) error {
	if r.render != nil {
		styled, err := r.render(md)
		if err == nil {
			md = styled
		}
	}
	_, err := io.WriteString(r.w, md)
	return err
}

// OutcomeMarkdown formats an outcome.
func OutcomeMarkdown(out domain.Outcome) string {
	var sb strings.Builder
	status := "applied"
	switch {
	case !out.Success:
		status = "failed"
	case out.Skipped:
		status = "skipped"
	}
	fmt.Fprintf(&sb, "## %s: %s\n\n", out.Stage, status)
	if out.Transition != "" {
		fmt.Fprintf(&sb, "Transition: `%s`\n\n", out.Transition)
	}
	if out.Regenerated {
		sb.WriteString("Per-entity definitions were regenerated.\n\n")
	}
	for _, line := range out.Summary {
		fmt.Fprintf(&sb, "- %s\n", line)
	}
	if len(out.Summary) > 0 {
		sb.WriteString("\n")
	}
	if len(out.Definitions) > 0 {
		sb.WriteString("### Definitions\n\n")
		for _, id := range out.Definitions {
			fmt.Fprintf(&sb, "- `%s`\n", id)
		}
		sb.WriteString("\n")
	}
	if out.Err != nil {
		fmt.Fprintf(&sb, "**Error:** %s\n\n", out.Err.Error())
	}
	if out.ReportError != "" {
		fmt.Fprintf(&sb, "Activity record not posted: %s\n", out.ReportError)
	}
	return sb.String()
}

// ActivityMarkdown formats activity records, oldest first.
func ActivityMarkdown(records []domain.ActivityRecord) string {
	if len(records) == 0 {
		return "_No activity._\n"
	}
	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "## %s\n\n", rec.Title)
		fmt.Fprintf(&sb, "*%s* · `%s`\n\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), rec.Stage)
		if rec.Comment != "" {
			sb.WriteString(rec.Comment)
			sb.WriteString("\n\n")
		}
		if rec.IsError() {
			sb.WriteString("```\n")
			sb.WriteString(rec.Error)
			sb.WriteString("\n```\n\n")
		}
		if rec.ReferenceURL != "" {
			fmt.Fprintf(&sb, "[Venue](%s)\n\n", rec.ReferenceURL)
		}
	}
	return sb.String()
}
