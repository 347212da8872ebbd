package submission

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/reference"
	"github.com/aretw0/venueflow/pkg/schema"
)

// ErrClosed is returned when a definition does not accept submissions.
var ErrClosed = errors.New("definition is not accepting submissions")

// ResolutionError reports a reference that could not be resolved for a note.
type ResolutionError struct {
	Definition string
	Location   string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("definition %s: %s: %v", e.Definition, e.Location, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Context carries the frames outside the note and the definition.
type Context struct {
	Entity *domain.Entity
	Venue  *domain.RequestForm

	// Now is checked against the activation window. Zero skips the check.
	Now time.Time
}

// Stack assembles the resolution stack, innermost first.
func Stack(def *domain.WorkflowDefinition, note domain.Note, ctx Context) reference.Stack {
	stack := reference.Stack{note.Frame(), def.Frame()}
	if def.Entity != nil {
		if ctx.Entity != nil {
			stack = append(stack, ctx.Entity.Frame())
		} else {
			stack = append(stack, reference.Frame{"id": def.Entity.ID, "number": def.Entity.Number})
		}
	}
	if ctx.Venue != nil {
		stack = append(stack, domain.VenueFrame(ctx.Venue))
	}
	return stack
}

// Result holds the values resolved while validating a note.
type Result struct {
	Bindings     map[string]any      `json:"bindings,omitempty"`
	FieldReaders map[string][]string `json:"field_readers,omitempty"`
}

// Validate checks a note against a definition. Permission and field failures are
// collected into a *schema.AggregateError; resolution failures return a
// *ResolutionError immediately.
func Validate(def *domain.WorkflowDefinition, note domain.Note, ctx Context) (*Result, error) {
	if note.Invitation != def.ID {
		return nil, fmt.Errorf("note targets %q, not %q", note.Invitation, def.ID)
	}
	if def.Status != domain.DefinitionActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrClosed, def.ID, def.Status)
	}
	if !ctx.Now.IsZero() && !def.Window.Open(ctx.Now) {
		return nil, fmt.Errorf("%w: %s outside its window", ErrClosed, def.ID)
	}

	stack := Stack(def, note, ctx)
	outer := stack[1:]
	v := &validator{def: def}

	if !def.Invitees.IsZero() {
		invitees, err := v.resolve("invitees", def.Invitees, outer)
		if err != nil {
			return nil, err
		}
		admitted := false
		for _, sig := range note.Signatures {
			if invitees.Admits(sig) {
				admitted = true
				break
			}
		}
		if !admitted {
			v.reject("invitees", fmt.Sprintf("%v is not invited", note.Signatures), note.Signatures)
		}
	}

	checks := []struct {
		loc    string
		set    domain.PermissionSet
		values []string
	}{
		{"signatures", def.Reply.Signatures, note.Signatures},
		{"readers", def.Reply.Readers, note.Readers},
		{"writers", def.Reply.Writers, note.Writers},
	}
	for _, c := range checks {
		if c.set.IsZero() {
			continue
		}
		set, err := v.resolve("reply/"+c.loc, c.set, stack)
		if err != nil {
			return nil, err
		}
		if err := set.Check(c.values); err != nil {
			v.reject(c.loc, err.Error(), c.values)
		}
	}

	result := &Result{}
	if err := v.checkBindings(note, stack, result); err != nil {
		return nil, err
	}
	if err := v.checkContent(note, stack, result); err != nil {
		return nil, err
	}

	if len(v.errs) > 0 {
		return result, &schema.AggregateError{Errors: v.errs}
	}
	return result, nil
}

type validator struct {
	def  *domain.WorkflowDefinition
	errs []error
}

func (v *validator) reject(key, reason string, value any) {
	v.errs = append(v.errs, &schema.ValidationError{Key: key, Reason: reason, Value: value})
}

func (v *validator) resolution(loc string, err error) error {
	return &ResolutionError{Definition: v.def.ID, Location: loc, Err: err}
}

func (v *validator) resolve(loc string, set domain.PermissionSet, stack reference.Stack) (domain.ResolvedSet, error) {
	out, err := set.Resolve(stack)
	if err != nil {
		return out, v.resolution(loc, err)
	}
	return out, nil
}

func (v *validator) checkBindings(note domain.Note, stack reference.Stack, result *Result) error {
	for _, name := range sortedKeys(v.def.Reply.Bindings) {
		want, err := v.def.Reply.Bindings[name].Value(stack)
		if err != nil {
			return v.resolution("reply/"+name, err)
		}
		if result.Bindings == nil {
			result.Bindings = make(map[string]any)
		}
		result.Bindings[name] = want

		var got any
		switch name {
		case "forum":
			got = note.Forum
		case "replyto":
			got = note.ReplyTo
		default:
			got = note.Content[name]
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			v.reject(name, fmt.Sprintf("must be %v", want), got)
		}
	}
	return nil
}

func (v *validator) checkContent(note domain.Note, stack reference.Stack, result *Result) error {
	fields := make(schema.Fields, len(v.def.Reply.Content))
	for _, name := range sortedKeys(v.def.Reply.Content) {
		spec := v.def.Reply.Content[name]
		c := spec.Value
		if c.ConstRef != nil {
			resolved, err := c.ConstRef.Value(stack)
			if err != nil {
				return v.resolution("content/"+name+"/const", err)
			}
			c = c.WithConst(resolved)
		}
		fields[name] = c

		if spec.Readers != nil {
			readers, err := v.resolve("content/"+name+"/readers", *spec.Readers, stack)
			if err != nil {
				return err
			}
			if result.FieldReaders == nil {
				result.FieldReaders = make(map[string][]string)
			}
			result.FieldReaders[name] = readerList(readers)
		}
	}

	if err := schema.CheckFields(fields, note.Content); err != nil {
		v.errs = append(v.errs, schema.ValidationErrors(err)...)
	}
	return nil
}

func readerList(set domain.ResolvedSet) []string {
	if set.Mode == "" {
		return set.Literal
	}
	out := make([]string, 0, len(set.Matchers))
	for _, m := range set.Matchers {
		out = append(out, m.Pattern)
	}
	return out
}

// Coverage reports the required matchers of set that no submission in the
// collection satisfies. Each submission contributes the identities of one note.
func Coverage(set domain.PermissionSet, stack reference.Stack, submissions [][]string) ([]domain.ResolvedMatcher, error) {
	resolved, err := set.Resolve(stack)
	if err != nil {
		return nil, err
	}
	return resolved.Coverage(submissions), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
