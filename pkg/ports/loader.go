package ports

import (
	"context"

	"github.com/aretw0/venueflow/pkg/domain"
)

// EventSource provides stage events recorded outside the journal, e.g. as files.
// This is used to replay or bootstrap a venue.
type EventSource interface {
	// Events returns the events of a form ordered by sequence.
	Events(ctx context.Context, formID string) ([]domain.StageEvent, error)

	// Forms returns the form IDs the source has events for.
	Forms(ctx context.Context) ([]string, error)
}
