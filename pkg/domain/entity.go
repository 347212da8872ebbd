package domain

import "github.com/aretw0/venueflow/pkg/reference"

// EntityStatus is the lifecycle status of a downstream entity.
type EntityStatus string

const (
	EntityActive       EntityStatus = "active"
	EntityWithdrawn    EntityStatus = "withdrawn"
	EntityDeskRejected EntityStatus = "desk_rejected"
)

// Entity is a downstream object (a submission) per-entity definitions are created for.
type Entity struct {
	ID       string         `json:"id"`
	Number   int            `json:"number"`
	Status   EntityStatus   `json:"status"`
	Decision string         `json:"decision,omitempty"`
	Flags    []string       `json:"flags,omitempty"`
	Content  map[string]any `json:"content,omitempty"`
}

// IsActive reports whether the entity is still under review.
func (e Entity) IsActive() bool {
	return e.Status == "" || e.Status == EntityActive
}

// HasFlag reports whether the entity carries a flag such as "ethics".
func (e Entity) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Ref returns the reference stored on child definitions.
func (e Entity) Ref() *EntityRef {
	return &EntityRef{ID: e.ID, Number: e.Number}
}

// Frame exposes the entity to reference resolution.
func (e Entity) Frame() reference.Frame {
	return reference.Frame{
		"id":       e.ID,
		"number":   e.Number,
		"status":   string(e.Status),
		"decision": e.Decision,
		"content":  CloneContent(e.Content),
	}
}

// Note is a concrete record submitted against a workflow definition.
type Note struct {
	ID         string         `json:"id,omitempty"`
	Invitation string         `json:"invitation"`
	Forum      string         `json:"forum,omitempty"`
	ReplyTo    string         `json:"replyto,omitempty"`
	Signatures []string       `json:"signatures"`
	Readers    []string       `json:"readers,omitempty"`
	Writers    []string       `json:"writers,omitempty"`
	Content    map[string]any `json:"content,omitempty"`
}

// Frame exposes the note to reference resolution.
func (n Note) Frame() reference.Frame {
	return reference.Frame{
		"id":         n.ID,
		"invitation": n.Invitation,
		"forum":      n.Forum,
		"replyto":    n.ReplyTo,
		"signatures": append([]string(nil), n.Signatures...),
		"readers":    append([]string(nil), n.Readers...),
		"writers":    append([]string(nil), n.Writers...),
		"content":    CloneContent(n.Content),
	}
}

// VenueFrame exposes the form's current configuration to reference resolution.
func VenueFrame(form *RequestForm) reference.Frame {
	return reference.Frame{
		"id":       form.VenueID,
		"form":     form.ID,
		"number":   form.Number,
		"revision": form.Revision(),
		"content":  CloneContent(form.Current()),
	}
}
