package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
)

// Directory implements ports.EntityDirectory in memory.
type Directory struct {
	mu       sync.RWMutex
	entities map[string]map[string]domain.Entity
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{entities: make(map[string]map[string]domain.Entity)}
}

// Put adds or replaces an entity of a venue.
func (d *Directory) Put(venueID string, entities ...domain.Entity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byID, ok := d.entities[venueID]
	if !ok {
		byID = make(map[string]domain.Entity)
		d.entities[venueID] = byID
	}
	for _, e := range entities {
		byID[e.ID] = e
	}
}

// Entities returns the venue's entities ordered by number.
func (d *Directory) Entities(ctx context.Context, venueID string) ([]domain.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Entity, 0, len(d.entities[venueID]))
	for _, e := range d.entities[venueID] {
		e.Content = domain.CloneContent(e.Content)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Notifier records notifications. Err, when set, is returned by every call.
type Notifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	Err  error
}

// Notify records n.
func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, msg)
	return nil
}

// Sent returns the recorded notifications.
func (n *Notifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

// Solver records solver runs. Err, when set, is returned by every call.
type Solver struct {
	mu   sync.Mutex
	runs []domain.SolverRun
	Err  error
}

// Solve records run.
func (s *Solver) Solve(ctx context.Context, run domain.SolverRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.runs = append(s.runs, run)
	return nil
}

// Runs returns the recorded runs.
func (s *Solver) Runs() []domain.SolverRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SolverRun(nil), s.runs...)
}

// Clock is a settable ports.Clock for tests and replays.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
