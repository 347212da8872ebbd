/*
Package reference implements deferred references: placeholders stored inside a
workflow definition that point at data in an enclosing frame and are only resolved
when a consumer submits a concrete record.

An Expression is a (depth, path) pair. Depth counts frames outward from the point of
use: frame 0 is the innermost frame (usually the note being submitted), higher
indices are its ancestors (the definition, the entity it belongs to, the venue).
Path is a slash separated accessor into that frame's structured content.

	expr := reference.Expression{Depth: 2, Path: "content/number"}
	value, err := reference.Resolve(expr, stack)

Templates combine literal text and expressions. Their wire form is the compact
"lit${N/path}lit" notation:

	t, _ := reference.ParseTemplate("venue/Paper${2/number}/Reviewers")

Resolution never falls back to a default value: an unreachable depth yields
ErrDepthOutOfRange and a missing path segment yields ErrPathNotFound.
*/
package reference
