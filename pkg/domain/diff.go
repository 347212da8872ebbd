package domain

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Changed reports whether any of fieldNames differs between current and the
// immediately preceding event of the same stage type in history. It is true when
// no predecessor exists. History may be in any order; events at or after the
// current sequence are ignored.
func Changed(fieldNames []string, current StageEvent, history []StageEvent) bool {
	prev, ok := predecessor(current, history)
	if !ok {
		return true
	}
	for _, f := range fieldNames {
		oldVal, oldOK := prev.Content[f]
		newVal, newOK := current.Content[f]
		if oldOK != newOK || !equalContent(oldVal, newVal) {
			return true
		}
	}
	return false
}

func predecessor(current StageEvent, history []StageEvent) (StageEvent, bool) {
	var best StageEvent
	found := false
	for _, e := range history {
		if e.StageType != current.StageType || e.RequestFormID != current.RequestFormID {
			continue
		}
		if e.Sequence >= current.Sequence {
			continue
		}
		if !found || e.Sequence > best.Sequence {
			best, found = e, true
		}
	}
	return best, found
}

// Delta lists the keys that differ between two content maps.
type Delta struct {
	Added   []string `json:"added,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
}

// IsEmpty checks if the delta contains any change.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Deleted) == 0
}

// ContentDelta calculates the difference between old and new content.
// If old is nil, every key of new is reported as added.
func ContentDelta(old, new map[string]any) Delta {
	var d Delta

	// Check for Added or Modified
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists {
			d.Added = append(d.Added, k)
		} else if !equalContent(oldVal, newVal) {
			d.Changed = append(d.Changed, k)
		}
	}

	// Check for Deletions
	for k := range old {
		if _, exists := new[k]; !exists {
			d.Deleted = append(d.Deleted, k)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Deleted)
	return d
}

func equalContent(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	// Numbers decoded from different codecs compare by value.
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	ma, aok := a.(map[string]any)
	mb, bok := b.(map[string]any)
	if aok && bok {
		if len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !equalContent(va, vb) {
				return false
			}
		}
		return true
	}
	sa, aok := a.([]any)
	sb, bok := b.([]any)
	if aok && bok {
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !equalContent(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
