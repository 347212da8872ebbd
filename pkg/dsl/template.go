package dsl

import (
	"fmt"

	"github.com/aretw0/venueflow/pkg/reference"
)

// Ref creates a reference addressed by frame role. Its depth is derived when the
// definition is built.
func Ref(frame reference.FrameKind, path string) reference.Template {
	return reference.Ref(reference.Anchored(frame, path))
}

// RefDepth creates a reference with an explicit depth. The depth is still
// validated against the nesting of its location.
func RefDepth(depth int, path string) reference.Template {
	return reference.Ref(reference.At(depth, path))
}

// Text creates a literal template.
func Text(s string) reference.Template {
	return reference.Lit(s)
}

// Concat joins strings and templates into one template. It panics on any other part type.
func Concat(parts ...any) reference.Template {
	templates := make([]reference.Template, 0, len(parts))
	for _, p := range parts {
		t, err := toTemplate(p)
		if err != nil {
			panic(err)
		}
		templates = append(templates, t)
	}
	return reference.Concat(templates...)
}

func toTemplate(v any) (reference.Template, error) {
	switch x := v.(type) {
	case string:
		return reference.Lit(x), nil
	case reference.Template:
		return x, nil
	case *reference.Template:
		if x == nil {
			return reference.Template{}, fmt.Errorf("nil template")
		}
		return *x, nil
	case reference.Expression:
		return reference.Ref(x), nil
	default:
		return reference.Template{}, fmt.Errorf("cannot use %T as a template", v)
	}
}
