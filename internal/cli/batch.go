package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/venueflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Form seeds a request form.
type Form struct {
	ID      string         `json:"id"`
	VenueID string         `json:"venue_id"`
	Number  int            `json:"number"`
	Content map[string]any `json:"content"`
}

// Batch is the content of a file given to apply or validate.
type Batch struct {
	Forms    []Form                     `json:"forms"`
	Entities map[string][]domain.Entity `json:"entities"`
	Events   []domain.StageEvent        `json:"events"`
}

// LoadBatch reads a YAML or JSON batch file. Numbers are kept as json.Number
// like every other event source.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse batch %s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("parse batch %s: %w", path, err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported batch file %s: want .yaml, .yml or .json", path)
	}

	var b Batch
	if err := domain.DecodeJSON(data, &b); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", path, err)
	}
	for i := range b.Events {
		if b.Events[i].Content == nil {
			b.Events[i].Content = map[string]any{}
		}
	}
	return &b, nil
}

// FormIDs returns the forms the batch has events for, in first-seen order.
func (b *Batch) FormIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, ev := range b.Events {
		if !seen[ev.RequestFormID] {
			seen[ev.RequestFormID] = true
			ids = append(ids, ev.RequestFormID)
		}
	}
	return ids
}
