package ports

import (
	"context"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// EntityDirectory lists the downstream entities of a venue.
type EntityDirectory interface {
	Entities(ctx context.Context, venueID string) ([]domain.Entity, error)
}

// Notifier delivers notifications. Delivery itself is out of scope.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// MatchingSolver computes assignment inputs. It is treated as opaque.
type MatchingSolver interface {
	Solve(ctx context.Context, run domain.SolverRun) error
}
