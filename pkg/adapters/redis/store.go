package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aretw0/venueflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Repository using Redis.
//
// Documents are stored as JSON. Sorted sets index forms and definitions
// lexically and journal events by sequence.
type Store struct {
	client backend.UniversalClient
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "venueflow:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() backend.UniversalClient {
	return s.client
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) formKey(id string) string { return s.prefix + "form:" + id }
func (s *Store) formIndex() string { return s.prefix + "forms" }
func (s *Store) eventsKey(form string) string { return s.prefix + "events:" + form }
func (s *Store) defKey(id string) string { return s.prefix + "def:" + id }
func (s *Store) defIndex() string { return s.prefix + "defs" }
func (s *Store) activityKey(form string) string { return s.prefix + "activity:" + form }
func (s *Store) statesKey(form string) string { return s.prefix + "states:" + form }

func (s *Store) stageIndex(form string, stage domain.StageType) string {
	return s.prefix + "events:" + form + ":" + string(stage)
}

// SaveForm persists the form.
func (s *Store) SaveForm(ctx context.Context, form *domain.RequestForm) error {
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal form: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.formKey(form.ID), data, 0)
	pipe.ZAdd(ctx, s.formIndex(), backend.Z{Score: 0, Member: form.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save form to redis: %w", err)
	}
	return nil
}

// LoadForm retrieves a form.
func (s *Store) LoadForm(ctx context.Context, id string) (*domain.RequestForm, error) {
	val, err := s.client.Get(ctx, s.formKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to get form from redis: %w", err)
	}

	var form domain.RequestForm
	if err := domain.DecodeJSON(val, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form: %w", err)
	}
	return &form, nil
}

// ListForms returns the form IDs in lexical order.
func (s *Store) ListForms(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.formIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return ids, nil
}

// Append journals the event once per (form, sequence).
func (s *Store) Append(ctx context.Context, event domain.StageEvent) (bool, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event: %w", err)
	}

	seq := strconv.FormatInt(event.Sequence, 10)
	ok, err := s.client.HSetNX(ctx, s.eventsKey(event.RequestFormID), seq, data).Result()
	if err != nil {
		return false, fmt.Errorf("failed to append event: %w", err)
	}
	if !ok {
		return false, nil
	}

	err = s.client.ZAdd(ctx, s.stageIndex(event.RequestFormID, event.StageType), backend.Z{
		Score:  float64(event.Sequence),
		Member: seq,
	}).Err()
	if err != nil {
		return true, fmt.Errorf("failed to index event: %w", err)
	}
	return true, nil
}

// Prior returns the stage's events up to a sequence, oldest first.
func (s *Store) Prior(ctx context.Context, formID string, stage domain.StageType, upTo int64, limit int) ([]domain.StageEvent, error) {
	seqs, err := s.client.ZRangeByScore(ctx, s.stageIndex(formID, stage), &backend.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(upTo, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stage index: %w", err)
	}
	if limit > 0 && len(seqs) > limit {
		seqs = seqs[len(seqs)-limit:]
	}
	if len(seqs) == 0 {
		return nil, nil
	}

	vals, err := s.client.HMGet(ctx, s.eventsKey(formID), seqs...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	out := make([]domain.StageEvent, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e domain.StageEvent
		if err := domain.DecodeJSON([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Events returns the form's events ordered by sequence.
func (s *Store) Events(ctx context.Context, formID string) ([]domain.StageEvent, error) {
	vals, err := s.client.HVals(ctx, s.eventsKey(formID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	out := make([]domain.StageEvent, 0, len(vals))
	for _, v := range vals {
		var e domain.StageEvent
		if err := domain.DecodeJSON([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Persist stores the definition.
func (s *Store) Persist(ctx context.Context, def *domain.WorkflowDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.defKey(def.ID), data, 0)
	pipe.ZAdd(ctx, s.defIndex(), backend.Z{Score: 0, Member: def.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist definition: %w", err)
	}
	return nil
}

// Definition retrieves a definition.
func (s *Store) Definition(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	val, err := s.client.Get(ctx, s.defKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to get definition from redis: %w", err)
	}
	var def domain.WorkflowDefinition
	if err := domain.DecodeJSON(val, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return &def, nil
}

// ListDefinitions returns the definitions under prefix, sorted by ID.
func (s *Store) ListDefinitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error) {
	by := &backend.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		by = &backend.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
	}
	ids, err := s.client.ZRangeByLex(ctx, s.defIndex(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.defKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	out := make([]*domain.WorkflowDefinition, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var def domain.WorkflowDefinition
		if err := domain.DecodeJSON([]byte(str), &def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
		out = append(out, &def)
	}
	return out, nil
}

// Post stores the record. A record with the same ID is kept as is.
func (s *Store) Post(ctx context.Context, record domain.ActivityRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal activity record: %w", err)
	}
	if err := s.client.HSetNX(ctx, s.activityKey(record.FormID), record.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to post activity record: %w", err)
	}
	return nil
}

// Activity returns the form's records, oldest first.
func (s *Store) Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error) {
	vals, err := s.client.HVals(ctx, s.activityKey(formID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}
	out := make([]domain.ActivityRecord, 0, len(vals))
	for _, v := range vals {
		var r domain.ActivityRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity record: %w", err)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveState stores the stage state.
func (s *Store) SaveState(ctx context.Context, state *domain.StageState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal stage state: %w", err)
	}
	if err := s.client.HSet(ctx, s.statesKey(state.FormID), string(state.Stage), data).Err(); err != nil {
		return fmt.Errorf("failed to save stage state: %w", err)
	}
	return nil
}

// States returns the form's stage states.
func (s *Store) States(ctx context.Context, formID string) (map[domain.StageType]*domain.StageState, error) {
	vals, err := s.client.HGetAll(ctx, s.statesKey(formID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stage states: %w", err)
	}
	out := make(map[domain.StageType]*domain.StageState, len(vals))
	for stage, v := range vals {
		var st domain.StageState
		if err := json.Unmarshal([]byte(v), &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage state: %w", err)
		}
		out[domain.StageType(stage)] = &st
	}
	return out, nil
}
