package domain

import (
	"fmt"
	"time"
)

// FormRevision is one immutable snapshot of a venue's configuration.
type FormRevision struct {
	Sequence  int64          `json:"sequence"`
	Content   map[string]any `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// RequestForm is the aggregate, append-only configuration state of one venue.
type RequestForm struct {
	ID      string `json:"id"`
	VenueID string `json:"venue_id"`

	// Number is the n of the "Request{n}" identifier segment.
	Number int `json:"number"`

	Revisions []FormRevision `json:"revisions"`
	Archived  bool           `json:"archived,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewRequestForm creates a form with its first revision.
func NewRequestForm(id, venueID string, number int, content map[string]any, at time.Time) *RequestForm {
	f := &RequestForm{
		ID:        id,
		VenueID:   venueID,
		Number:    number,
		CreatedAt: at,
	}
	f.Revisions = append(f.Revisions, FormRevision{Sequence: 1, Content: CloneContent(content), CreatedAt: at})
	return f
}

// Revision returns the revision counter.
func (f *RequestForm) Revision() int {
	return len(f.Revisions)
}

// Current returns the content of the latest revision.
// Callers must not mutate the returned map.
func (f *RequestForm) Current() map[string]any {
	if len(f.Revisions) == 0 {
		return map[string]any{}
	}
	return f.Revisions[len(f.Revisions)-1].Content
}

// AppendRevision records a new configuration snapshot.
func (f *RequestForm) AppendRevision(content map[string]any, at time.Time) (FormRevision, error) {
	if f.Archived {
		return FormRevision{}, fmt.Errorf("request form %s is archived", f.ID)
	}
	rev := FormRevision{
		Sequence:  int64(len(f.Revisions) + 1),
		Content:   CloneContent(content),
		CreatedAt: at,
	}
	f.Revisions = append(f.Revisions, rev)
	return rev, nil
}

// Archive marks the form read-only.
func (f *RequestForm) Archive() {
	f.Archived = true
}

// Clone returns a deep copy.
func (f *RequestForm) Clone() *RequestForm {
	if f == nil {
		return nil
	}
	out := *f
	out.Revisions = make([]FormRevision, len(f.Revisions))
	for i, r := range f.Revisions {
		out.Revisions[i] = FormRevision{Sequence: r.Sequence, Content: CloneContent(r.Content), CreatedAt: r.CreatedAt}
	}
	return &out
}

// CloneContent deep-copies a content map of JSON-like values.
func CloneContent(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneContent(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
