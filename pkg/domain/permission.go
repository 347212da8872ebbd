package domain

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/aretw0/venueflow/pkg/reference"
)

// MatchMode selects how an alternative set is checked.
type MatchMode string

const (
	// ModeOneOf requires exactly one submitted value matching exactly one matcher.
	ModeOneOf MatchMode = "one_of"
	// ModeItems requires every submitted value to match some matcher and every
	// required matcher to be matched by some value.
	ModeItems MatchMode = "items"
)

// Matcher is one item of an alternative set.
type Matcher struct {
	Value    reference.Template `json:"value,omitzero"`
	Prefix   reference.Template `json:"prefix,omitzero"`
	Optional bool               `json:"optional,omitempty"`
}

// PermissionSet is either a literal list of identities or an alternative set.
type PermissionSet struct {
	Literal  []reference.Template `json:"literal,omitempty"`
	Mode     MatchMode            `json:"mode,omitempty"`
	Matchers []Matcher            `json:"matchers,omitempty"`
}

// IsZero reports whether the set is unset.
func (p PermissionSet) IsZero() bool {
	return len(p.Literal) == 0 && len(p.Matchers) == 0 && p.Mode == ""
}

// IsAlternative reports whether the set is an alternative-set constraint.
func (p PermissionSet) IsAlternative() bool {
	return p.Mode != ""
}

// Templates lists every template in the set.
func (p PermissionSet) Templates() []reference.Template {
	out := append([]reference.Template(nil), p.Literal...)
	for _, m := range p.Matchers {
		if !m.Value.IsZero() {
			out = append(out, m.Value)
		}
		if !m.Prefix.IsZero() {
			out = append(out, m.Prefix)
		}
	}
	return out
}

// Map applies fn to every template, returning a new set.
func (p PermissionSet) Map(fn func(reference.Template) (reference.Template, error)) (PermissionSet, error) {
	out := PermissionSet{Mode: p.Mode}
	for _, t := range p.Literal {
		mapped, err := fn(t)
		if err != nil {
			return p, err
		}
		out.Literal = append(out.Literal, mapped)
	}
	for _, m := range p.Matchers {
		var err error
		next := Matcher{Optional: m.Optional}
		if !m.Value.IsZero() {
			if next.Value, err = fn(m.Value); err != nil {
				return p, err
			}
		}
		if !m.Prefix.IsZero() {
			if next.Prefix, err = fn(m.Prefix); err != nil {
				return p, err
			}
		}
		out.Matchers = append(out.Matchers, next)
	}
	return out, nil
}

// Resolve renders every template against the stack.
func (p PermissionSet) Resolve(stack reference.Stack) (ResolvedSet, error) {
	out := ResolvedSet{Mode: p.Mode}
	for _, t := range p.Literal {
		s, err := t.Render(stack)
		if err != nil {
			return ResolvedSet{}, err
		}
		out.Literal = append(out.Literal, s)
	}
	for _, m := range p.Matchers {
		rm := ResolvedMatcher{Optional: m.Optional}
		if !m.Prefix.IsZero() {
			s, err := m.Prefix.Render(stack)
			if err != nil {
				return ResolvedSet{}, err
			}
			if rm, err = NewPrefixMatcher(s, m.Optional); err != nil {
				return ResolvedSet{}, err
			}
		} else {
			s, err := m.Value.Render(stack)
			if err != nil {
				return ResolvedSet{}, err
			}
			rm.Pattern = s
		}
		out.Matchers = append(out.Matchers, rm)
	}
	return out, nil
}

// ResolvedMatcher is a Matcher with its template rendered.
type ResolvedMatcher struct {
	Pattern  string `json:"pattern"`
	IsPrefix bool   `json:"is_prefix,omitempty"`
	Optional bool   `json:"optional,omitempty"`

	prefix *regexp.Regexp
}

// NewPrefixMatcher compiles pattern as a regular expression anchored at the
// start of the identity.
func NewPrefixMatcher(pattern string, optional bool) (ResolvedMatcher, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return ResolvedMatcher{}, fmt.Errorf("invalid prefix %q: %w", pattern, err)
	}
	return ResolvedMatcher{Pattern: pattern, IsPrefix: true, Optional: optional, prefix: re}, nil
}

// Match reports whether the identity satisfies the matcher. A prefix matcher
// not built by NewPrefixMatcher matches nothing.
func (m ResolvedMatcher) Match(id string) bool {
	if !m.IsPrefix {
		return id == m.Pattern
	}
	return m.prefix != nil && m.prefix.MatchString(id)
}

func (m ResolvedMatcher) String() string {
	if m.IsPrefix {
		return "prefix:" + m.Pattern
	}
	return m.Pattern
}

// ResolvedSet is a PermissionSet whose templates have been rendered.
type ResolvedSet struct {
	Literal  []string          `json:"literal,omitempty"`
	Mode     MatchMode         `json:"mode,omitempty"`
	Matchers []ResolvedMatcher `json:"matchers,omitempty"`
}

// Check validates the identities submitted for this set.
func (r ResolvedSet) Check(values []string) error {
	switch r.Mode {
	case "":
		return r.checkLiteral(values)
	case ModeOneOf:
		return r.checkOneOf(values)
	case ModeItems:
		return r.checkItems(values)
	default:
		return fmt.Errorf("unknown match mode %q", r.Mode)
	}
}

func (r ResolvedSet) checkLiteral(values []string) error {
	for _, v := range values {
		if !slices.Contains(r.Literal, v) {
			return fmt.Errorf("%q is not allowed, expected %v", v, r.Literal)
		}
	}
	for _, want := range r.Literal {
		if !slices.Contains(values, want) {
			return fmt.Errorf("missing %q", want)
		}
	}
	return nil
}

func (r ResolvedSet) checkOneOf(values []string) error {
	if len(values) != 1 {
		return fmt.Errorf("expected exactly one value, got %d", len(values))
	}
	matched := r.matching(values[0])
	if len(matched) != 1 {
		return fmt.Errorf("%q must match exactly one item, matched %d", values[0], len(matched))
	}
	return nil
}

func (r ResolvedSet) checkItems(values []string) error {
	covered := make([]bool, len(r.Matchers))
	for _, v := range values {
		matched := r.matching(v)
		if len(matched) == 0 {
			return fmt.Errorf("%q matches no allowed item", v)
		}
		for _, i := range matched {
			covered[i] = true
		}
	}
	for i, m := range r.Matchers {
		if !m.Optional && !covered[i] {
			return fmt.Errorf("required item %s is missing", m)
		}
	}
	return nil
}

func (r ResolvedSet) matching(id string) []int {
	var out []int
	for i, m := range r.Matchers {
		if m.Match(id) {
			out = append(out, i)
		}
	}
	return out
}

// Coverage returns the required matchers that no submission in the collection
// satisfies.
func (r ResolvedSet) Coverage(submissions [][]string) []ResolvedMatcher {
	var missing []ResolvedMatcher
	for _, m := range r.Matchers {
		if m.Optional {
			continue
		}
		satisfied := false
		for _, values := range submissions {
			if slices.ContainsFunc(values, m.Match) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, m)
		}
	}
	return missing
}

// Admits reports whether a single identity is allowed by the set.
func (r ResolvedSet) Admits(id string) bool {
	if r.Mode == "" {
		return slices.Contains(r.Literal, id)
	}
	return len(r.matching(id)) > 0
}
