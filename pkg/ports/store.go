package ports

import (
	"context"

	"github.com/aretw0/venueflow/pkg/domain"
)

// FormStore persists request forms.
type FormStore interface {
	// SaveForm creates or replaces a form.
	SaveForm(ctx context.Context, form *domain.RequestForm) error

	// LoadForm retrieves a form.
	// Returns domain.ErrFormNotFound if the form does not exist.
	LoadForm(ctx context.Context, id string) (*domain.RequestForm, error)

	// ListForms returns the IDs of all forms.
	ListForms(ctx context.Context) ([]string, error)
}

// EventJournal is the append-only history of stage events.
type EventJournal interface {
	// Append records an event. An event whose (form, sequence) is already journaled
	// is left untouched and reported with appended == false.
	Append(ctx context.Context, event domain.StageEvent) (appended bool, err error)

	// Prior returns the events of one stage type with sequence <= upTo, oldest first.
	// A positive limit keeps only the most recent limit events.
	Prior(ctx context.Context, formID string, stage domain.StageType, upTo int64, limit int) ([]domain.StageEvent, error)

	// Events returns every event of a form ordered by sequence.
	Events(ctx context.Context, formID string) ([]domain.StageEvent, error)
}

// DefinitionStore persists workflow definitions by identifier.
type DefinitionStore interface {
	// Persist creates or replaces a definition.
	Persist(ctx context.Context, def *domain.WorkflowDefinition) error

	// Definition retrieves a definition.
	// Returns domain.ErrDefinitionNotFound if the definition does not exist.
	Definition(ctx context.Context, id string) (*domain.WorkflowDefinition, error)

	// ListDefinitions returns the definitions whose ID starts with prefix, sorted by ID.
	ListDefinitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error)
}

// ActivityLog stores activity records.
type ActivityLog interface {
	// Post creates a record. A record with the same ID is kept unchanged.
	Post(ctx context.Context, record domain.ActivityRecord) error

	// Activity returns the records of a form, oldest first.
	Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error)
}

// StageStateStore persists the per-stage state machines.
type StageStateStore interface {
	SaveState(ctx context.Context, state *domain.StageState) error
	States(ctx context.Context, formID string) (map[domain.StageType]*domain.StageState, error)
}

// Repository bundles every store the dispatcher needs.
type Repository interface {
	FormStore
	EventJournal
	DefinitionStore
	ActivityLog
	StageStateStore
}
