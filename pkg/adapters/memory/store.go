package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/venueflow/pkg/domain"
)

type eventKey struct {
	form string
	seq  int64
}

// Store implements ports.Repository in memory.
// Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	forms       map[string]*domain.RequestForm
	events      map[eventKey]domain.StageEvent
	definitions map[string]*domain.WorkflowDefinition
	activity    map[string]domain.ActivityRecord
	states      map[string]map[domain.StageType]*domain.StageState
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		forms:       make(map[string]*domain.RequestForm),
		events:      make(map[eventKey]domain.StageEvent),
		definitions: make(map[string]*domain.WorkflowDefinition),
		activity:    make(map[string]domain.ActivityRecord),
		states:      make(map[string]map[domain.StageType]*domain.StageState),
	}
}

// SaveForm persists a copy of the form.
func (s *Store) SaveForm(ctx context.Context, form *domain.RequestForm) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := form.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = copied
	return nil
}

// LoadForm retrieves a copy of the form.
func (s *Store) LoadForm(ctx context.Context, id string) (*domain.RequestForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	form, ok := s.forms[id]
	if !ok {
		return nil, domain.ErrFormNotFound
	}
	return form.Clone(), nil
}

// ListForms returns the stored form IDs.
func (s *Store) ListForms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.forms))
	for id := range s.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Append journals the event once per (form, sequence).
func (s *Store) Append(ctx context.Context, event domain.StageEvent) (bool, error) {
	key := eventKey{form: event.RequestFormID, seq: event.Sequence}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[key]; exists {
		return false, nil
	}
	event.Content = domain.CloneContent(event.Content)
	s.events[key] = event
	return true, nil
}

// Prior returns the stage's events up to a sequence, oldest first.
func (s *Store) Prior(ctx context.Context, formID string, stage domain.StageType, upTo int64, limit int) ([]domain.StageEvent, error) {
	all, err := s.Events(ctx, formID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StageEvent, 0, len(all))
	for _, e := range all {
		if e.StageType == stage && e.Sequence <= upTo {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Events returns the form's events ordered by sequence.
func (s *Store) Events(ctx context.Context, formID string) ([]domain.StageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StageEvent
	for key, e := range s.events {
		if key.form == formID {
			e.Content = domain.CloneContent(e.Content)
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Persist stores a copy of the definition.
func (s *Store) Persist(ctx context.Context, def *domain.WorkflowDefinition) error {
	copied, err := def.Clone()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[def.ID] = copied
	return nil
}

// Definition retrieves a copy of a definition.
func (s *Store) Definition(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	s.mu.RLock()
	def, ok := s.definitions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrDefinitionNotFound
	}
	return def.Clone()
}

// ListDefinitions returns copies of the definitions under prefix, sorted by ID.
func (s *Store) ListDefinitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error) {
	s.mu.RLock()
	var matched []*domain.WorkflowDefinition
	for id, def := range s.definitions {
		if strings.HasPrefix(id, prefix) {
			matched = append(matched, def)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	out := make([]*domain.WorkflowDefinition, len(matched))
	for i, def := range matched {
		copied, err := def.Clone()
		if err != nil {
			return nil, err
		}
		out[i] = copied
	}
	return out, nil
}

// Post stores the record. A record with the same ID is kept as is.
func (s *Store) Post(ctx context.Context, record domain.ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activity[record.ID]; !exists {
		s.activity[record.ID] = record
	}
	return nil
}

// Activity returns the form's records, oldest first.
func (s *Store) Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActivityRecord
	for _, r := range s.activity {
		if r.FormID == formID {
			out = append(out, r)
		}
	}
	sortActivity(out)
	return out, nil
}

// SaveState stores a copy of the stage state.
func (s *Store) SaveState(ctx context.Context, state *domain.StageState) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	byStage, ok := s.states[state.FormID]
	if !ok {
		byStage = make(map[domain.StageType]*domain.StageState)
		s.states[state.FormID] = byStage
	}
	byStage[state.Stage] = copied
	return nil
}

// States returns copies of the form's stage states.
func (s *Store) States(ctx context.Context, formID string) (map[domain.StageType]*domain.StageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.StageType]*domain.StageState, len(s.states[formID]))
	for st, state := range s.states[formID] {
		out[st] = state.Clone()
	}
	return out, nil
}

func sortActivity(records []domain.ActivityRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
