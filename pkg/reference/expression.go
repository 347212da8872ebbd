package reference

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrDepthOutOfRange is returned when an expression points past the outermost frame.
	ErrDepthOutOfRange = errors.New("reference depth out of range")

	// ErrPathNotFound is returned when a path segment does not exist in the target frame.
	ErrPathNotFound = errors.New("reference path not found")

	// ErrMalformed is returned when an expression or template cannot be parsed.
	ErrMalformed = errors.New("malformed reference")
)

// Frame is the structured content visible at one nesting level.
type Frame map[string]any

// Stack is an ordered list of frames, innermost first.
type Stack []Frame

// Expression points at Path inside the frame Depth levels up from the point of use.
type Expression struct {
	Depth int    `json:"depth" yaml:"depth"`
	Path  string `json:"path" yaml:"path"`

	// Anchor names the frame structurally instead of by depth.
	// Builders bind anchored expressions to a concrete depth with Layout.Bind.
	Anchor FrameKind `json:"-" yaml:"-"`
}

// At creates an expression with an explicit depth.
func At(depth int, path string) Expression {
	return Expression{Depth: depth, Path: path}
}

// String returns the wire form of the expression: ${N/path}.
func (e Expression) String() string {
	if e.Path == "" {
		return fmt.Sprintf("${%d}", e.Depth)
	}
	return fmt.Sprintf("${%d/%s}", e.Depth, e.Path)
}

// Segments splits the path into its accessors.
func (e Expression) Segments() []string {
	p := strings.Trim(e.Path, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// ParseExpression reads either "${N/path}" or the bare "N/path" form.
func ParseExpression(s string) (Expression, error) {
	raw := strings.TrimSpace(s)
	if strings.HasPrefix(raw, "${") {
		if !strings.HasSuffix(raw, "}") {
			return Expression{}, fmt.Errorf("%w: unterminated expression %q", ErrMalformed, s)
		}
		raw = raw[2 : len(raw)-1]
	}

	depthPart, path, _ := strings.Cut(raw, "/")
	depth, err := strconv.Atoi(depthPart)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: invalid depth in %q", ErrMalformed, s)
	}
	if depth < 0 {
		return Expression{}, fmt.Errorf("%w: negative depth in %q", ErrMalformed, s)
	}
	return Expression{Depth: depth, Path: path}, nil
}

// DepthOutOfRangeError signals a malformed schema: the expression can never be resolved.
type DepthOutOfRangeError struct {
	Expr   Expression
	Frames int
}

func (e *DepthOutOfRangeError) Error() string {
	return fmt.Sprintf("reference %s: depth %d out of range for %d frame(s)", e.Expr, e.Expr.Depth, e.Frames)
}

func (e *DepthOutOfRangeError) Is(target error) bool {
	return target == ErrDepthOutOfRange
}

// PathNotFoundError signals that the frame exists but the data does not.
type PathNotFoundError struct {
	Expr    Expression
	Segment string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("reference %s: segment %q not found", e.Expr, e.Segment)
}

func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

// CheckDepth verifies that expr can be satisfied by a stack of the given size.
func CheckDepth(expr Expression, frames int) error {
	if expr.Depth < 0 || expr.Depth >= frames {
		return &DepthOutOfRangeError{Expr: expr, Frames: frames}
	}
	return nil
}

// Resolve returns the value addressed by expr. It has no side effects.
func Resolve(expr Expression, stack Stack) (any, error) {
	if err := CheckDepth(expr, len(stack)); err != nil {
		return nil, err
	}

	var current any = map[string]any(stack[expr.Depth])
	for _, seg := range expr.Segments() {
		next, ok := lookup(current, seg)
		if !ok {
			return nil, &PathNotFoundError{Expr: expr, Segment: seg}
		}
		current = next
	}
	return current, nil
}

func lookup(value any, seg string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out, ok := v[seg]
		return out, ok
	case Frame:
		out, ok := v[seg]
		return out, ok
	case map[string]string:
		out, ok := v[seg]
		return out, ok
	case []any:
		i, ok := index(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	case []string:
		i, ok := index(seg, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !out.IsValid() {
			return nil, false
		}
		return out.Interface(), true
	case reflect.Slice, reflect.Array:
		i, ok := index(seg, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
