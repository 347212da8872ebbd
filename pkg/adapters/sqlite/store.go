// Package sqlite provides a SQLite-backed venueflow repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/venueflow/pkg/adapters/sqlite/migrations"
	"github.com/aretw0/venueflow/pkg/domain"
	_ "modernc.org/sqlite"
)

// Store implements ports.Repository on SQLite.
// The stage event journal is append-only; triggers reject updates and deletes.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveForm creates or replaces a form.
func (s *Store) SaveForm(ctx context.Context, form *domain.RequestForm) error {
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO forms (id, venue_id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET venue_id = excluded.venue_id, data = excluded.data, updated_at = excluded.updated_at`,
		form.ID, form.VenueID, string(data), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

// LoadForm retrieves a form.
func (s *Store) LoadForm(ctx context.Context, id string) (*domain.RequestForm, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM forms WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	var form domain.RequestForm
	if err := domain.DecodeJSON([]byte(data), &form); err != nil {
		return nil, fmt.Errorf("unmarshal form: %w", err)
	}
	return &form, nil
}

// ListForms returns the form IDs in order.
func (s *Store) ListForms(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM forms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan form id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Append journals the event once per (form, sequence).
func (s *Store) Append(ctx context.Context, event domain.StageEvent) (bool, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO stage_events (form_id, seq, stage, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.RequestFormID, event.Sequence, string(event.StageType), string(data), toMillis(event.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return n == 1, nil
}

// Prior returns the stage's events up to a sequence, oldest first.
func (s *Store) Prior(ctx context.Context, formID string, stage domain.StageType, upTo int64, limit int) ([]domain.StageEvent, error) {
	query := `SELECT data FROM (
		SELECT seq, data FROM stage_events
		WHERE form_id = ? AND stage = ? AND seq <= ?
		ORDER BY seq DESC`
	args := []any{formID, string(stage), upTo}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY seq ASC`
	return s.queryEvents(ctx, query, args...)
}

// Events returns every event of a form ordered by sequence.
func (s *Store) Events(ctx context.Context, formID string) ([]domain.StageEvent, error) {
	return s.queryEvents(ctx, `SELECT data FROM stage_events WHERE form_id = ? ORDER BY seq`, formID)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]domain.StageEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.StageEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e domain.StageEvent
		if err := domain.DecodeJSON([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Persist creates or replaces a definition.
func (s *Store) Persist(ctx context.Context, def *domain.WorkflowDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO definitions (id, stage, version, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET stage = excluded.stage, version = excluded.version, data = excluded.data`,
		def.ID, string(def.Stage), def.Version, string(data),
	)
	if err != nil {
		return fmt.Errorf("persist definition: %w", err)
	}
	return nil
}

// Definition retrieves a definition.
func (s *Store) Definition(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM definitions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDefinitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	var def domain.WorkflowDefinition
	if err := domain.DecodeJSON([]byte(data), &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &def, nil
}

// ListDefinitions returns the definitions under prefix, sorted by ID.
func (s *Store) ListDefinitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT data FROM definitions WHERE substr(id, 1, length(?1)) = ?1 ORDER BY id`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var out []*domain.WorkflowDefinition
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		var def domain.WorkflowDefinition
		if err := domain.DecodeJSON([]byte(data), &def); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		out = append(out, &def)
	}
	return out, rows.Err()
}

// Post creates an activity record. A record with the same ID is kept as is.
func (s *Store) Post(ctx context.Context, record domain.ActivityRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal activity record: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO activity (id, form_id, created_at, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		record.ID, record.FormID, record.CreatedAt.UTC().UnixNano(), string(data),
	)
	if err != nil {
		return fmt.Errorf("post activity record: %w", err)
	}
	return nil
}

// Activity returns the form's records, oldest first.
func (s *Store) Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT data FROM activity WHERE form_id = ? ORDER BY created_at, id`, formID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		var r domain.ActivityRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal activity record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveState creates or replaces a stage state.
func (s *Store) SaveState(ctx context.Context, state *domain.StageState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal stage state: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO stage_states (form_id, stage, data) VALUES (?, ?, ?)
		 ON CONFLICT(form_id, stage) DO UPDATE SET data = excluded.data`,
		state.FormID, string(state.Stage), string(data),
	)
	if err != nil {
		return fmt.Errorf("save stage state: %w", err)
	}
	return nil
}

// States returns the form's stage states.
func (s *Store) States(ctx context.Context, formID string) (map[domain.StageType]*domain.StageState, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT stage, data FROM stage_states WHERE form_id = ?`, formID)
	if err != nil {
		return nil, fmt.Errorf("list stage states: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.StageType]*domain.StageState)
	for rows.Next() {
		var stage, data string
		if err := rows.Scan(&stage, &data); err != nil {
			return nil, fmt.Errorf("scan stage state: %w", err)
		}
		var st domain.StageState
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("unmarshal stage state: %w", err)
		}
		out[domain.StageType(stage)] = &st
	}
	return out, rows.Err()
}
