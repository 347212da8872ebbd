package dsl

import (
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/reference"
)

// Item is one entry of an alternative set.
type Item struct {
	matcher domain.Matcher
	err     error
}

// Value matches an identity exactly. v is a string or a template.
func Value(v any) Item {
	t, err := toTemplate(v)
	return Item{matcher: domain.Matcher{Value: t}, err: err}
}

// Prefix matches identities starting with the regular expression p.
func Prefix(p any) Item {
	t, err := toTemplate(p)
	if s, ok := t.Literal(); ok && err == nil {
		_, err = domain.NewPrefixMatcher(s, false)
	}
	return Item{matcher: domain.Matcher{Prefix: t}, err: err}
}

// Optional marks the item as not required to be covered.
func (i Item) Optional() Item {
	i.matcher.Optional = true
	return i
}

// Perm is a permission set under construction.
type Perm struct {
	set domain.PermissionSet
	err error
}

// Set returns the built permission set.
func (p Perm) Set() domain.PermissionSet {
	return p.set
}

// Err returns the first construction error.
func (p Perm) Err() error {
	return p.err
}

// Literal creates a literal list of identities. Each value is a string or a template.
func Literal(values ...any) Perm {
	var p Perm
	p.set.Literal = make([]reference.Template, 0, len(values))
	for _, v := range values {
		t, err := toTemplate(v)
		if err != nil && p.err == nil {
			p.err = err
		}
		p.set.Literal = append(p.set.Literal, t)
	}
	return p
}

// OneOf creates an alternative set where a submission carries exactly one value
// matching exactly one item. Used for signatures.
func OneOf(items ...Item) Perm {
	return alternatives(domain.ModeOneOf, items)
}

// Items creates an alternative set where every value matches some item and every
// required item is present. Used for readers, writers and invitees.
func Items(items ...Item) Perm {
	return alternatives(domain.ModeItems, items)
}

// From wraps an existing permission set.
func From(set domain.PermissionSet) Perm {
	return Perm{set: set}
}

func alternatives(mode domain.MatchMode, items []Item) Perm {
	p := Perm{set: domain.PermissionSet{Mode: mode}}
	for _, it := range items {
		if it.err != nil && p.err == nil {
			p.err = it.err
		}
		p.set.Matchers = append(p.set.Matchers, it.matcher)
	}
	return p
}
