package reference

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Part is one piece of a template: either literal text or an expression.
type Part struct {
	Literal string
	Ref     *Expression
}

// Template is a value made of literal parts and deferred references.
// The zero value is the empty literal.
type Template struct {
	Parts []Part
}

// Lit creates a literal template.
func Lit(s string) Template {
	if s == "" {
		return Template{}
	}
	return Template{Parts: []Part{{Literal: s}}}
}

// Ref creates a template holding a single expression.
func Ref(expr Expression) Template {
	e := expr
	return Template{Parts: []Part{{Ref: &e}}}
}

// Concat joins templates, merging adjacent literals.
func Concat(templates ...Template) Template {
	var out Template
	for _, t := range templates {
		for _, p := range t.Parts {
			out = out.append(p)
		}
	}
	return out
}

func (t Template) append(p Part) Template {
	if p.Ref == nil {
		if p.Literal == "" {
			return t
		}
		if n := len(t.Parts); n > 0 && t.Parts[n-1].Ref == nil {
			parts := append([]Part(nil), t.Parts...)
			parts[n-1].Literal += p.Literal
			return Template{Parts: parts}
		}
	}
	if p.Ref != nil {
		e := *p.Ref
		p.Ref = &e
	}
	return Template{Parts: append(append([]Part(nil), t.Parts...), p)}
}

// IsZero reports whether the template is empty.
func (t Template) IsZero() bool { return len(t.Parts) == 0 }

// IsLiteral reports whether the template contains no expressions.
func (t Template) IsLiteral() bool {
	for _, p := range t.Parts {
		if p.Ref != nil {
			return false
		}
	}
	return true
}

// Literal returns the text of a literal-only template.
func (t Template) Literal() (string, bool) {
	if !t.IsLiteral() {
		return "", false
	}
	var b strings.Builder
	for _, p := range t.Parts {
		b.WriteString(p.Literal)
	}
	return b.String(), true
}

// Expressions returns every expression in the template, in order.
func (t Template) Expressions() []Expression {
	var out []Expression
	for _, p := range t.Parts {
		if p.Ref != nil {
			out = append(out, *p.Ref)
		}
	}
	return out
}

// Bind binds every anchored expression against the layout.
func (t Template) Bind(l Layout) (Template, error) {
	if t.IsZero() {
		return t, nil
	}
	out := Template{Parts: make([]Part, 0, len(t.Parts))}
	for _, p := range t.Parts {
		if p.Ref == nil {
			out.Parts = append(out.Parts, p)
			continue
		}
		bound, err := l.Bind(*p.Ref)
		if err != nil {
			return t, err
		}
		out.Parts = append(out.Parts, Part{Ref: &bound})
	}
	return out, nil
}

// Value resolves a template. A single-expression template yields the raw value,
// anything else is rendered to text.
func (t Template) Value(stack Stack) (any, error) {
	if len(t.Parts) == 1 && t.Parts[0].Ref != nil {
		return Resolve(*t.Parts[0].Ref, stack)
	}
	return t.Render(stack)
}

// Render resolves every expression and concatenates the result.
func (t Template) Render(stack Stack) (string, error) {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Ref == nil {
			b.WriteString(p.Literal)
			continue
		}
		v, err := Resolve(*p.Ref, stack)
		if err != nil {
			return "", err
		}
		text, err := scalarText(v)
		if err != nil {
			return "", fmt.Errorf("reference %s: %w", p.Ref, err)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func scalarText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", fmt.Errorf("value is null")
	}
	return "", fmt.Errorf("cannot render %T as text", v)
}

// String returns the wire form.
func (t Template) String() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Ref != nil {
			b.WriteString(p.Ref.String())
			continue
		}
		b.WriteString(p.Literal)
	}
	return b.String()
}

// ParseTemplate reads the wire form "lit${N/path}lit".
func ParseTemplate(s string) (Template, error) {
	var out Template
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			return out.append(Part{Literal: rest}), nil
		}
		out = out.append(Part{Literal: rest[:start]})
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return Template{}, fmt.Errorf("%w: unterminated expression in %q", ErrMalformed, s)
		}
		expr, err := ParseExpression(rest[start : start+end+1])
		if err != nil {
			return Template{}, err
		}
		out = out.append(Part{Ref: &expr})
		rest = rest[start+end+1:]
	}
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(s string) Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// MarshalJSON writes the wire form as a JSON string.
func (t Template) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the wire form.
func (t *Template) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("template: %w", err)
	}
	parsed, err := ParseTemplate(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
