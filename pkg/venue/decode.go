package venue

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Decode decodes loosely typed form content into out. Strings are accepted for
// dates (RFC 3339 or "2006-01-02 15:04"), comma-separated lists and "Yes"/"No" flags.
// Keys absent from in leave the corresponding fields of out untouched.
func Decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			listHook,
			flagHook,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("failed to decode content: %w", err)
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", v)
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", v.String())
		}
		return time.UnixMilli(ms).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	return data, nil
}

func listHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(reflect.ValueOf(data).String())
	if raw == "" {
		return []string{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func flagHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	s := strings.ToLower(strings.TrimSpace(reflect.ValueOf(data).String()))
	switch {
	case strings.HasPrefix(s, "yes"):
		return true, nil
	case strings.HasPrefix(s, "no"):
		return false, nil
	}
	return data, nil
}
