package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/venueflow/pkg/reference"
)

// ErrConflictingConst is returned when two declarations of a field pin different constants.
var ErrConflictingConst = errors.New("conflicting const values")

// DeleteMarkerKey is the key of the end-of-life marker of a deletable field.
const DeleteMarkerKey = "delete"

// DeleteMarker returns the value a submitter sends to retract a deletable field.
func DeleteMarker() map[string]any {
	return map[string]any{DeleteMarkerKey: true}
}

// IsDeleteMarker reports whether v is the end-of-life marker.
func IsDeleteMarker(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	flag, ok := m[DeleteMarkerKey].(bool)
	return ok && flag
}

// Range bounds a numeric or date value. Nil bounds are open.
type Range struct {
	Min          *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinExclusive bool     `json:"min_exclusive,omitempty" yaml:"min_exclusive,omitempty"`
	MaxExclusive bool     `json:"max_exclusive,omitempty" yaml:"max_exclusive,omitempty"`
}

// Closed creates the range [min, max].
func Closed(min, max float64) *Range {
	return &Range{Min: &min, Max: &max}
}

// HalfOpen creates the range [min, max).
func HalfOpen(min, max float64) *Range {
	return &Range{Min: &min, Max: &max, MaxExclusive: true}
}

// AtLeast creates the range [min, +inf).
func AtLeast(min float64) *Range {
	return &Range{Min: &min}
}

// Contains reports whether x lies within the range.
func (r Range) Contains(x float64) bool {
	if r.Min != nil {
		if x < *r.Min || (r.MinExclusive && x == *r.Min) {
			return false
		}
	}
	if r.Max != nil {
		if x > *r.Max || (r.MaxExclusive && x == *r.Max) {
			return false
		}
	}
	return true
}

func (r Range) String() string {
	lo, hi := "(-inf", "+inf)"
	if r.Min != nil {
		br := "["
		if r.MinExclusive {
			br = "("
		}
		lo = fmt.Sprintf("%s%g", br, *r.Min)
	}
	if r.Max != nil {
		br := "]"
		if r.MaxExclusive {
			br = ")"
		}
		hi = fmt.Sprintf("%g%s", *r.Max, br)
	}
	return lo + ", " + hi
}

// Constraint describes the values a reply field accepts.
type Constraint struct {
	Type      Type
	Regex     string
	Enum      []any
	Const     any
	ConstRef  *reference.Template
	Range     *Range
	Optional  bool
	Deletable bool

	// MinLength and MaxLength bound text length in characters. Zero is unbounded.
	MinLength int
	MaxLength int
}

// HasConst reports whether the constraint pins a value, literally or by reference.
func (c Constraint) HasConst() bool {
	return c.Const != nil || c.ConstRef != nil
}

// ConflictsWith reports whether c and other pin different constants.
func (c Constraint) ConflictsWith(other Constraint) bool {
	if !c.HasConst() || !other.HasConst() {
		return false
	}
	if c.ConstRef != nil || other.ConstRef != nil {
		if c.ConstRef == nil || other.ConstRef == nil {
			return true
		}
		return c.ConstRef.String() != other.ConstRef.String()
	}
	return !equalValues(c.Const, other.Const)
}

// Verify checks that the constraint is internally consistent.
func (c Constraint) Verify() error {
	if c.Regex != "" {
		if _, err := regexp.Compile(c.Regex); err != nil {
			return fmt.Errorf("invalid regex %q: %w", c.Regex, err)
		}
	}
	if c.MinLength < 0 || c.MaxLength < 0 {
		return fmt.Errorf("negative length bound [%d, %d]", c.MinLength, c.MaxLength)
	}
	if c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return fmt.Errorf("min length %d exceeds max length %d", c.MinLength, c.MaxLength)
	}
	if c.Type != nil {
		itemType := c.Type
		if st, ok := c.Type.(*SliceType); ok {
			itemType = st.elemType
		}
		for i, item := range c.Enum {
			if err := itemType.Validate(item); err != nil {
				return fmt.Errorf("enum item %d: %w", i, err)
			}
		}
		if c.Const != nil {
			if err := c.Type.Validate(c.Const); err != nil {
				return fmt.Errorf("const: %w", err)
			}
		}
	}
	if c.Const != nil && len(c.Enum) > 0 && !containsValue(c.Enum, c.Const) {
		return fmt.Errorf("const %v is not one of the enum values", c.Const)
	}
	return nil
}

// Check validates a submitted value. present distinguishes an absent field from a
// field explicitly set to nil. ConstRef must be resolved by the caller through
// WithConst before checking.
func (c Constraint) Check(value any, present bool) error {
	if !present {
		if c.Optional || c.Deletable {
			return nil
		}
		return fmt.Errorf("required")
	}

	if IsDeleteMarker(value) {
		if !c.Deletable {
			return fmt.Errorf("field is not deletable")
		}
		return nil
	}

	if c.Type != nil {
		if err := c.Type.Validate(value); err != nil {
			return err
		}
	}

	if c.Const != nil && !equalValues(c.Const, value) {
		return fmt.Errorf("must equal %v", c.Const)
	}

	if len(c.Enum) > 0 {
		if err := checkEnum(c.Enum, value); err != nil {
			return err
		}
	}

	if c.Regex != "" {
		if err := checkRegex(c.Regex, value); err != nil {
			return err
		}
	}

	if c.MinLength > 0 || c.MaxLength > 0 {
		if err := c.checkLength(value); err != nil {
			return err
		}
	}

	if c.Range != nil {
		x, ok := toFloat(value)
		if !ok {
			if ts, parsed := toTime(value); parsed {
				x, ok = float64(ts.UnixMilli()), true
			}
		}
		if !ok {
			return fmt.Errorf("range %s requires a numeric value", c.Range)
		}
		if !c.Range.Contains(x) {
			return fmt.Errorf("value %v outside range %s", value, c.Range)
		}
	}

	return nil
}

func (c Constraint) checkLength(value any) error {
	text, ok := value.(string)
	if !ok {
		return fmt.Errorf("length bound requires text, got %T", value)
	}
	n := utf8.RuneCountInString(text)
	if n < c.MinLength {
		return fmt.Errorf("length %d is below the minimum of %d", n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return fmt.Errorf("length %d exceeds the maximum of %d", n, c.MaxLength)
	}
	return nil
}

// WithConst returns a copy whose constant is the resolved value of ConstRef.
func (c Constraint) WithConst(v any) Constraint {
	c.Const = v
	c.ConstRef = nil
	return c
}

func checkEnum(enum []any, value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && !isBytes(rv) {
		for i := 0; i < rv.Len(); i++ {
			if !containsValue(enum, rv.Index(i).Interface()) {
				return fmt.Errorf("item %v is not one of %v", rv.Index(i).Interface(), enum)
			}
		}
		return nil
	}
	if !containsValue(enum, value) {
		return fmt.Errorf("%v is not one of %v", value, enum)
	}
	return nil
}

func checkRegex(pattern string, value any) error {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	switch v := value.(type) {
	case string:
		if !re.MatchString(v) {
			return fmt.Errorf("%q does not match %q", v, pattern)
		}
	case []string:
		for _, s := range v {
			if !re.MatchString(s) {
				return fmt.Errorf("%q does not match %q", s, pattern)
			}
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok || !re.MatchString(s) {
				return fmt.Errorf("%v does not match %q", item, pattern)
			}
		}
	default:
		return fmt.Errorf("regex %q requires text, got %T", pattern, value)
	}
	return nil
}

func isBytes(rv reflect.Value) bool {
	return rv.Type().Elem().Kind() == reflect.Uint8
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

type constraintJSON struct {
	Type      string              `json:"type,omitempty"`
	Regex     string              `json:"regex,omitempty"`
	Enum      []any               `json:"enum,omitempty"`
	Const     any                 `json:"const,omitempty"`
	ConstRef  *reference.Template `json:"const_ref,omitempty"`
	Range     *Range              `json:"range,omitempty"`
	Optional  bool                `json:"optional,omitempty"`
	Deletable bool                `json:"deletable,omitempty"`
	MinLength int                 `json:"min_length,omitempty"`
	MaxLength int                 `json:"max_length,omitempty"`
}

// MarshalJSON writes the type by name.
func (c Constraint) MarshalJSON() ([]byte, error) {
	raw := constraintJSON{
		Regex:     c.Regex,
		Enum:      c.Enum,
		Const:     c.Const,
		ConstRef:  c.ConstRef,
		Range:     c.Range,
		Optional:  c.Optional,
		Deletable: c.Deletable,
		MinLength: c.MinLength,
		MaxLength: c.MaxLength,
	}
	if c.Type != nil {
		raw.Type = c.Type.Name()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON resolves the type name through ParseType.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw constraintJSON
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("constraint: %w", err)
	}
	out := Constraint{
		Regex:     raw.Regex,
		Enum:      raw.Enum,
		Const:     raw.Const,
		ConstRef:  raw.ConstRef,
		Range:     raw.Range,
		Optional:  raw.Optional,
		Deletable: raw.Deletable,
		MinLength: raw.MinLength,
		MaxLength: raw.MaxLength,
	}
	if raw.Type != "" {
		t, err := ParseType(raw.Type)
		if err != nil {
			return fmt.Errorf("constraint: %w", err)
		}
		out.Type = t
	}
	*c = out
	return nil
}
