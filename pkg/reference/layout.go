package reference

import "fmt"

// FrameKind names a frame by role rather than by position.
type FrameKind int

const (
	// FrameNone marks an expression that already carries an explicit depth.
	FrameNone FrameKind = iota
	// FrameNote is the record being submitted against a definition.
	FrameNote
	// FrameDefinition is the workflow definition itself.
	FrameDefinition
	// FrameEntity is the downstream entity a child definition was instantiated for.
	FrameEntity
	// FrameVenue is the venue configuration that triggered materialization.
	FrameVenue
)

func (k FrameKind) String() string {
	switch k {
	case FrameNote:
		return "note"
	case FrameDefinition:
		return "definition"
	case FrameEntity:
		return "entity"
	case FrameVenue:
		return "venue"
	default:
		return "none"
	}
}

// Anchored creates an expression addressed by frame role.
func Anchored(kind FrameKind, path string) Expression {
	return Expression{Anchor: kind, Path: path}
}

// Layout lists the frames visible at a point of use, innermost first.
type Layout []FrameKind

// Depth returns the position of kind in the layout.
func (l Layout) Depth(kind FrameKind) (int, bool) {
	for i, k := range l {
		if k == kind {
			return i, true
		}
	}
	return 0, false
}

// Bind converts an anchored expression into a depth-addressed one and checks that
// the resulting depth is satisfiable by the layout.
func (l Layout) Bind(expr Expression) (Expression, error) {
	if expr.Anchor != FrameNone {
		depth, ok := l.Depth(expr.Anchor)
		if !ok {
			return expr, fmt.Errorf("frame %s is not visible here: %w", expr.Anchor,
				&DepthOutOfRangeError{Expr: expr, Frames: len(l)})
		}
		expr.Depth = depth
		expr.Anchor = FrameNone
	}
	if err := CheckDepth(expr, len(l)); err != nil {
		return expr, err
	}
	return expr, nil
}

// Without returns a copy of the layout with the given frame removed.
func (l Layout) Without(kind FrameKind) Layout {
	out := make(Layout, 0, len(l))
	for _, k := range l {
		if k != kind {
			out = append(out, k)
		}
	}
	return out
}
