package dsl

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
)

// SchemaError reports a definition rejected by Build.
type SchemaError = domain.SchemaError

// Frame layouts at the points of use, innermost first.
var (
	replyLayout      = reference.Layout{reference.FrameNote, reference.FrameDefinition, reference.FrameEntity, reference.FrameVenue}
	definitionLayout = replyLayout.Without(reference.FrameNote)
)

// ReplyLayout returns the frames visible inside a definition's reply template.
func ReplyLayout(hasEntity bool) reference.Layout {
	if hasEntity {
		return replyLayout
	}
	return replyLayout.Without(reference.FrameEntity)
}

// DefinitionLayout returns the frames visible at definition level.
func DefinitionLayout(hasEntity bool) reference.Layout {
	if hasEntity {
		return definitionLayout
	}
	return definitionLayout.Without(reference.FrameEntity)
}

// DefinitionBuilder provides a fluent API for building or patching a workflow definition.
type DefinitionBuilder struct {
	def    domain.WorkflowDefinition
	prior  *domain.WorkflowDefinition
	fields map[string]*FieldBuilder
	order  []string
	errs   []error
}

// Definition starts a fresh definition.
func Definition(id string) *DefinitionBuilder {
	return &DefinitionBuilder{
		def:    domain.WorkflowDefinition{ID: id},
		fields: make(map[string]*FieldBuilder),
	}
}

// Patch starts a builder seeded from prior. Attributes not set through the builder
// keep their prior values. A nil prior behaves like a fresh definition without an id.
func Patch(prior *domain.WorkflowDefinition) *DefinitionBuilder {
	if prior == nil {
		return Definition("")
	}
	b := &DefinitionBuilder{
		prior:  prior,
		fields: make(map[string]*FieldBuilder),
	}
	def, err := prior.Clone()
	if err != nil {
		b.def.ID = prior.ID
		b.errs = append(b.errs, err)
		return b
	}
	b.def = *def
	return b
}

// PatchOr patches prior when present, otherwise starts a fresh definition with id.
func PatchOr(prior *domain.WorkflowDefinition, id string) *DefinitionBuilder {
	if prior == nil {
		return Definition(id)
	}
	return Patch(prior)
}

// ID sets the identifier.
func (b *DefinitionBuilder) ID(id string) *DefinitionBuilder {
	b.def.ID = id
	return b
}

// Stage sets the owning stage.
func (b *DefinitionBuilder) Stage(st domain.StageType) *DefinitionBuilder {
	b.def.Stage = st
	return b
}

// Entity marks the definition as a per-entity child.
func (b *DefinitionBuilder) Entity(e domain.Entity) *DefinitionBuilder {
	b.def.Entity = e.Ref()
	return b
}

// Parent records the venue-level definition a child was derived from.
func (b *DefinitionBuilder) Parent(id string) *DefinitionBuilder {
	b.def.Parent = id
	return b
}

// Readers sets who can read the definition.
func (b *DefinitionBuilder) Readers(p Perm) *DefinitionBuilder {
	b.def.Readers = b.perm(p)
	return b
}

// Writers sets who can edit the definition.
func (b *DefinitionBuilder) Writers(p Perm) *DefinitionBuilder {
	b.def.Writers = b.perm(p)
	return b
}

// Signatures sets who signs the definition.
func (b *DefinitionBuilder) Signatures(p Perm) *DefinitionBuilder {
	b.def.Signatures = b.perm(p)
	return b
}

// Invitees sets who may submit against the definition.
func (b *DefinitionBuilder) Invitees(p Perm) *DefinitionBuilder {
	b.def.Invitees = b.perm(p)
	return b
}

// ReplyReaders sets the readers of submitted records.
func (b *DefinitionBuilder) ReplyReaders(p Perm) *DefinitionBuilder {
	b.def.Reply.Readers = b.perm(p)
	return b
}

// ReplyWriters sets the writers of submitted records.
func (b *DefinitionBuilder) ReplyWriters(p Perm) *DefinitionBuilder {
	b.def.Reply.Writers = b.perm(p)
	return b
}

// ReplySignatures sets the signatures of submitted records.
func (b *DefinitionBuilder) ReplySignatures(p Perm) *DefinitionBuilder {
	b.def.Reply.Signatures = b.perm(p)
	return b
}

// Bind pins a record attribute such as "forum" or "replyto" to a template.
func (b *DefinitionBuilder) Bind(name string, t reference.Template) *DefinitionBuilder {
	if b.def.Reply.Bindings == nil {
		b.def.Reply.Bindings = make(map[string]reference.Template)
	}
	b.def.Reply.Bindings[name] = t
	return b
}

// Field declares or patches a reply field. Declaring the same field twice merges
// the declarations; conflicting constants fail the build.
func (b *DefinitionBuilder) Field(name string, f *FieldBuilder) *DefinitionBuilder {
	if existing, ok := b.fields[name]; ok {
		prev, next := existing.constraint(), f.constraint()
		if prev.ConflictsWith(next) {
			b.errs = append(b.errs, &SchemaError{
				Definition: b.def.ID,
				Location:   "content/" + name,
				Err:        fmt.Errorf("%w: %v and %v", schema.ErrConflictingConst, constText(prev), constText(next)),
			})
			return b
		}
		b.fields[name] = merge(existing, f)
		return b
	}
	b.fields[name] = f
	b.order = append(b.order, name)
	return b
}

// RemoveField deletes a field from the reply template.
func (b *DefinitionBuilder) RemoveField(name string) *DefinitionBuilder {
	delete(b.fields, name)
	delete(b.def.Reply.Content, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return b
}

// FieldNames lists the reply fields declared so far, including those kept from
// the prior definition.
func (b *DefinitionBuilder) FieldNames() []string {
	names := sortedNames(b.def.Reply.Content)
	for _, name := range b.order {
		if _, ok := b.def.Reply.Content[name]; !ok {
			names = append(names, name)
		}
	}
	return names
}

// Start sets when the definition opens.
func (b *DefinitionBuilder) Start(t time.Time) *DefinitionBuilder {
	b.def.Window.Start = &t
	return b
}

// Due sets the soft deadline.
func (b *DefinitionBuilder) Due(t time.Time) *DefinitionBuilder {
	b.def.Window.Due = &t
	return b
}

// Expiration sets the hard deadline.
func (b *DefinitionBuilder) Expiration(t time.Time) *DefinitionBuilder {
	b.def.Window.Expiration = &t
	return b
}

// ClearStart removes the start date.
func (b *DefinitionBuilder) ClearStart() *DefinitionBuilder {
	b.def.Window.Start = nil
	return b
}

// ClearDue removes the soft deadline.
func (b *DefinitionBuilder) ClearDue() *DefinitionBuilder {
	b.def.Window.Due = nil
	return b
}

// ClearExpiration removes the hard deadline.
func (b *DefinitionBuilder) ClearExpiration() *DefinitionBuilder {
	b.def.Window.Expiration = nil
	return b
}

// Status sets the materialization status. Defaults to active.
func (b *DefinitionBuilder) Status(s domain.DefinitionStatus) *DefinitionBuilder {
	b.def.Status = s
	return b
}

// Process attaches a registered process function.
func (b *DefinitionBuilder) Process(name string, version int, config map[string]any) *DefinitionBuilder {
	b.def.Process = &domain.FunctionRef{Name: name, Version: version, Config: domain.CloneContent(config)}
	return b
}

func (b *DefinitionBuilder) perm(p Perm) domain.PermissionSet {
	if err := p.Err(); err != nil {
		b.errs = append(b.errs, &SchemaError{Definition: b.def.ID, Err: err})
	}
	return p.Set()
}

// Build validates and returns the definition.
func (b *DefinitionBuilder) Build() (*domain.WorkflowDefinition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	def := b.def
	def.Reply.Bindings = maps.Clone(def.Reply.Bindings)
	if def.ID == "" {
		return nil, &SchemaError{Err: fmt.Errorf("definition id is required")}
	}
	if def.Status == "" {
		def.Status = domain.DefinitionActive
	}

	if err := b.applyFields(&def); err != nil {
		return nil, err
	}
	if err := bindDefinition(&def); err != nil {
		return nil, err
	}

	switch {
	case b.prior == nil:
		def.Version = 1
	case domain.SameContent(&def, b.prior):
		def.Version = b.prior.Version
	default:
		def.Version = b.prior.Version + 1
	}
	return &def, nil
}

func (b *DefinitionBuilder) applyFields(def *domain.WorkflowDefinition) error {
	content := make(map[string]domain.FieldSpec, len(def.Reply.Content)+len(b.fields))
	next := 0
	for name, spec := range def.Reply.Content {
		content[name] = spec
		next = max(next, spec.Order)
	}
	for _, name := range b.order {
		f := b.fields[name]
		spec, existed := content[name]
		if !existed && f.order == nil {
			next++
			spec.Order = next
		}
		merged, err := f.apply(spec)
		if err != nil {
			return &SchemaError{Definition: def.ID, Location: "content/" + name, Err: err}
		}
		content[name] = merged
	}
	for _, name := range sortedNames(content) {
		if err := content[name].Value.Verify(); err != nil {
			return &SchemaError{Definition: def.ID, Location: "content/" + name, Err: err}
		}
	}
	if len(content) == 0 {
		content = nil
	}
	def.Reply.Content = content
	return nil
}

// bindDefinition binds every reference against the layout of its location.
func bindDefinition(def *domain.WorkflowDefinition) error {
	hasEntity := def.Entity != nil
	outer := DefinitionLayout(hasEntity)
	inner := ReplyLayout(hasEntity)

	bindSet := func(loc string, set *domain.PermissionSet, l reference.Layout) error {
		bound, err := set.Map(func(t reference.Template) (reference.Template, error) {
			return t.Bind(l)
		})
		if err != nil {
			return &SchemaError{Definition: def.ID, Location: loc, Err: err}
		}
		if set.IsZero() {
			return nil
		}
		*set = bound
		return nil
	}

	sets := []struct {
		loc    string
		set    *domain.PermissionSet
		layout reference.Layout
	}{
		{"readers", &def.Readers, outer},
		{"writers", &def.Writers, outer},
		{"signatures", &def.Signatures, outer},
		{"invitees", &def.Invitees, outer},
		{"reply/readers", &def.Reply.Readers, inner},
		{"reply/writers", &def.Reply.Writers, inner},
		{"reply/signatures", &def.Reply.Signatures, inner},
	}
	for _, s := range sets {
		if err := bindSet(s.loc, s.set, s.layout); err != nil {
			return err
		}
	}

	for _, name := range sortedNames(def.Reply.Bindings) {
		bound, err := def.Reply.Bindings[name].Bind(inner)
		if err != nil {
			return &SchemaError{Definition: def.ID, Location: "reply/" + name, Err: err}
		}
		def.Reply.Bindings[name] = bound
	}

	for _, name := range sortedNames(def.Reply.Content) {
		spec := def.Reply.Content[name]
		loc := "content/" + name
		if spec.Value.ConstRef != nil {
			bound, err := spec.Value.ConstRef.Bind(inner)
			if err != nil {
				return &SchemaError{Definition: def.ID, Location: loc + "/const", Err: err}
			}
			spec.Value.ConstRef = &bound
		}
		if spec.Readers != nil {
			readers := *spec.Readers
			if err := bindSet(loc+"/readers", &readers, inner); err != nil {
				return err
			}
			spec.Readers = &readers
		}
		def.Reply.Content[name] = spec
	}
	return nil
}

func merge(a, b *FieldBuilder) *FieldBuilder {
	out := *a
	if b.order != nil {
		out.order = b.order
	}
	if b.description != nil {
		out.description = b.description
	}
	if b.typ != nil {
		out.typ = b.typ
	}
	if b.regex != nil {
		out.regex = b.regex
	}
	if b.enumSet {
		out.enum, out.enumSet = b.enum, true
	}
	if b.constSet {
		out.constVal, out.constRef, out.constSet = b.constVal, b.constRef, true
	}
	if b.rangeSet {
		out.rng, out.rangeSet = b.rng, true
	}
	if b.optional != nil {
		out.optional = b.optional
	}
	if b.deletable != nil {
		out.deletable = b.deletable
	}
	if b.readers != nil {
		out.readers = b.readers
	}
	return &out
}

func constText(c schema.Constraint) string {
	if c.ConstRef != nil {
		return c.ConstRef.String()
	}
	return fmt.Sprintf("%v", c.Const)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
