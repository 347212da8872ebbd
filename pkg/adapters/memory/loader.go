package memory

import (
	"context"
	"sort"

	"github.com/aretw0/venueflow/pkg/domain"
)

// Loader implements ports.EventSource using an in-memory list.
type Loader struct {
	events map[string][]domain.StageEvent
}

// NewLoader creates a Loader from events of any number of forms.
func NewLoader(events ...domain.StageEvent) *Loader {
	l := &Loader{events: make(map[string][]domain.StageEvent)}
	for _, e := range events {
		l.events[e.RequestFormID] = append(l.events[e.RequestFormID], e)
	}
	for _, list := range l.events {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	}
	return l
}

// Events returns the form's events ordered by sequence.
func (l *Loader) Events(ctx context.Context, formID string) ([]domain.StageEvent, error) {
	return append([]domain.StageEvent(nil), l.events[formID]...), nil
}

// Forms returns the known form IDs.
func (l *Loader) Forms(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(l.events))
	for id := range l.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
