package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Type is the value type of a reply field.
type Type interface {
	Name() string
	Validate(value any) error
}

// scalar is a single-valued type checked by a predicate.
type scalar struct {
	name string
	ok   func(any) bool
}

func (t scalar) Name() string { return t.name }

func (t scalar) Validate(value any) error {
	if !t.ok(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

// SliceType is a list whose items share one type. Multi-select fields and
// enums of several values use it.
type SliceType struct {
	elemType Type
}

// Elem returns the item type.
func (t *SliceType) Elem() Type { return t.elemType }

func (t *SliceType) Name() string {
	return "[" + t.elemType.Name() + "]"
}

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := range rv.Len() {
		if err := t.elemType.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

var (
	stringType = scalar{name: "string", ok: func(v any) bool { _, ok := v.(string); return ok }}
	intType    = scalar{name: "int", ok: isInt}
	floatType  = scalar{name: "float", ok: func(v any) bool { _, ok := toFloat(v); return ok && !isTime(v) }}
	boolType   = scalar{name: "bool", ok: func(v any) bool { _, ok := v.(bool); return ok }}
	dateType   = scalar{name: "date", ok: func(v any) bool { _, ok := toTime(v); return ok }}
	anyType    = scalar{name: "any", ok: func(v any) bool { return v != nil }}
)

// String accepts text.
func String() Type { return stringType }

// Int accepts whole numbers, including whole floats decoded from JSON.
func Int() Type { return intType }

// Float accepts any number.
func Float() Type { return floatType }

// Bool accepts true and false.
func Bool() Type { return boolType }

// Date accepts time.Time, RFC 3339 strings and epoch milliseconds.
func Date() Type { return dateType }

// Any accepts every non-nil value.
func Any() Type { return anyType }

// Slice accepts lists of elem.
func Slice(elem Type) Type {
	return &SliceType{elemType: elem}
}

// ParseType resolves a type name as written by Name, e.g. "int" or "[string]".
func ParseType(name string) (Type, error) {
	if inner, ok := strings.CutPrefix(name, "["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok || inner == "" {
			return nil, fmt.Errorf("malformed list type %q", name)
		}
		elem, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	for _, t := range []Type{stringType, intType, floatType, boolType, dateType, anyType} {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

func isInt(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case float64:
		return v == float64(int64(v))
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

func isTime(value any) bool {
	_, ok := value.(time.Time)
	return ok
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		ts, err := time.Parse(time.RFC3339, v)
		return ts, err == nil
	}
	ms, ok := toFloat(value)
	if !ok || ms != float64(int64(ms)) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// toFloat reads numbers of any width. Times are read as epoch milliseconds so
// that ranges can bound dates.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case time.Time:
		return float64(v.UnixMilli()), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	}
	return 0, false
}
