package dsl

import (
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
)

// FieldBuilder provides a fluent API for configuring a reply field.
// Only the attributes set through its methods are applied.
type FieldBuilder struct {
	order       *int
	description *string
	typ         schema.Type
	regex       *string
	length      *[2]int
	enum        []any
	enumSet     bool
	constVal    any
	constRef    *reference.Template
	constSet    bool
	rng         *schema.Range
	rangeSet    bool
	optional    *bool
	deletable   *bool
	readers     *Perm
}

// Field creates an empty field builder.
func Field() *FieldBuilder {
	return &FieldBuilder{}
}

// Order sets the display position.
func (f *FieldBuilder) Order(n int) *FieldBuilder {
	f.order = &n
	return f
}

// Description sets the help text shown to submitters.
func (f *FieldBuilder) Description(s string) *FieldBuilder {
	f.description = &s
	return f
}

// Type sets the value type.
func (f *FieldBuilder) Type(t schema.Type) *FieldBuilder {
	f.typ = t
	return f
}

// Regex restricts text values to a pattern.
func (f *FieldBuilder) Regex(pattern string) *FieldBuilder {
	f.regex = &pattern
	return f
}

// Length bounds text to between min and max characters. A zero max is
// unbounded.
func (f *FieldBuilder) Length(min, max int) *FieldBuilder {
	f.length = &[2]int{min, max}
	return f
}

// Enum restricts values to a list. An empty call clears the restriction.
func (f *FieldBuilder) Enum(values ...any) *FieldBuilder {
	f.enum = values
	f.enumSet = true
	return f
}

// Const pins the value.
func (f *FieldBuilder) Const(v any) *FieldBuilder {
	f.constVal = v
	f.constRef = nil
	f.constSet = true
	return f
}

// ConstRef pins the value to a reference resolved at submission time.
func (f *FieldBuilder) ConstRef(t reference.Template) *FieldBuilder {
	f.constVal = nil
	f.constRef = &t
	f.constSet = true
	return f
}

// Range bounds numeric and date values. Nil clears the bound.
func (f *FieldBuilder) Range(r *schema.Range) *FieldBuilder {
	f.rng = r
	f.rangeSet = true
	return f
}

// Optional allows the field to be omitted.
func (f *FieldBuilder) Optional() *FieldBuilder {
	v := true
	f.optional = &v
	return f
}

// Required requires the field.
func (f *FieldBuilder) Required() *FieldBuilder {
	v := false
	f.optional = &v
	return f
}

// Deletable allows the field to be retracted with the delete marker.
func (f *FieldBuilder) Deletable() *FieldBuilder {
	v := true
	f.deletable = &v
	return f
}

// ReadableBy restricts who can read the field's value.
func (f *FieldBuilder) ReadableBy(p Perm) *FieldBuilder {
	f.readers = &p
	return f
}

func (f *FieldBuilder) constraint() schema.Constraint {
	var c schema.Constraint
	return f.applyConstraint(c)
}

func (f *FieldBuilder) applyConstraint(c schema.Constraint) schema.Constraint {
	if f.typ != nil {
		c.Type = f.typ
	}
	if f.regex != nil {
		c.Regex = *f.regex
	}
	if f.length != nil {
		c.MinLength, c.MaxLength = f.length[0], f.length[1]
	}
	if f.enumSet {
		c.Enum = f.enum
	}
	if f.constSet {
		c.Const = f.constVal
		c.ConstRef = f.constRef
	}
	if f.rangeSet {
		c.Range = f.rng
	}
	if f.optional != nil {
		c.Optional = *f.optional
	}
	if f.deletable != nil {
		c.Deletable = *f.deletable
	}
	return c
}

// apply merges the set attributes into spec.
func (f *FieldBuilder) apply(spec domain.FieldSpec) (domain.FieldSpec, error) {
	if f.order != nil {
		spec.Order = *f.order
	}
	if f.description != nil {
		spec.Description = *f.description
	}
	spec.Value = f.applyConstraint(spec.Value)
	if f.readers != nil {
		if err := f.readers.Err(); err != nil {
			return spec, err
		}
		set := f.readers.Set()
		spec.Readers = &set
	}
	return spec, nil
}
