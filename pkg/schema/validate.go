package schema

import "sort"

// Fields maps reply field names to their constraints.
type Fields map[string]Constraint

// CheckFields validates data against per-field constraints and rejects unknown keys.
// Failures are reported in field-name order.
func CheckFields(fields Fields, data map[string]any) error {
	var errs []error

	for _, name := range sortedKeys(fields) {
		value, present := data[name]
		if err := fields[name].Check(value, present); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
		}
	}

	for _, name := range sortedKeys(data) {
		if _, known := fields[name]; !known {
			errs = append(errs, &ValidationError{Key: name, Reason: "unexpected field", Value: data[name]})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
