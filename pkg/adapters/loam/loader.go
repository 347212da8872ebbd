package loam

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/venueflow/pkg/domain"
)

// Loader implements ports.EventSource over a directory of event documents.
type Loader struct {
	Repo *loam.TypedRepository[EventMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[EventMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only repository at dir.
func Open(dir string) (*Loader, error) {
	repo, err := loam.Init(dir,
		loam.WithVersioning(false),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open event directory %s: %w", dir, err)
	}
	return New(loam.NewTypedRepository[EventMetadata](repo)), nil
}

// Events returns the form's events ordered by sequence.
func (l *Loader) Events(ctx context.Context, formID string) ([]domain.StageEvent, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return all[formID], nil
}

// Forms returns the IDs of the forms with at least one event document.
func (l *Loader) Forms(ctx context.Context) ([]string, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Loader) load(ctx context.Context) (map[string][]domain.StageEvent, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	type origin struct {
		form string
		seq  int64
	}
	seen := make(map[origin]string)
	out := make(map[string][]domain.StageEvent)

	for _, doc := range docs {
		event, err := toEvent(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("event document %s: %w", doc.ID, err)
		}

		key := origin{form: event.RequestFormID, seq: event.Sequence}
		if existing, ok := seen[key]; ok {
			return nil, fmt.Errorf("collision detected: sequence %d of form '%s' is defined in both '%s' and '%s'",
				event.Sequence, event.RequestFormID, existing, doc.ID)
		}
		seen[key] = doc.ID
		out[event.RequestFormID] = append(out[event.RequestFormID], event)
	}

	for _, events := range out {
		sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })
	}
	return out, nil
}

func toEvent(meta EventMetadata) (domain.StageEvent, error) {
	stage, err := domain.ParseStageType(meta.StageType)
	if err != nil {
		return domain.StageEvent{}, err
	}

	event := domain.StageEvent{
		StageType:     stage,
		Content:       meta.Content,
		RequestFormID: meta.Form,
		Sequence:      meta.Sequence,
	}
	if event.Content == nil {
		event.Content = map[string]any{}
	}
	if meta.CreatedAt != "" {
		at, err := time.Parse(time.RFC3339, meta.CreatedAt)
		if err != nil {
			return domain.StageEvent{}, fmt.Errorf("created_at: %w", err)
		}
		event.CreatedAt = at.UTC()
	}
	if err := event.Validate(); err != nil {
		return domain.StageEvent{}, err
	}
	return event, nil
}
