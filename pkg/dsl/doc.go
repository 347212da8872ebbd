/*
Package dsl provides the Schema Builder: typed, fluent constructors for workflow
definitions, permission sets, field specs and reply templates.

A definition is either built fresh or patched from a prior version. When patching,
only the attributes set through builder calls are overwritten; everything else
keeps its prior value. Build validates the result before returning it: conflicting
constants, invalid constraints and reference expressions whose depth cannot be
satisfied by the nesting of their location are rejected with a *SchemaError.

References are addressed by frame role and bound to a depth when the definition is
built, so reordering the frames never silently changes what an expression points to:

	def, err := dsl.Definition(naming.Child(paper.Number, "Official_Review")).
		Stage(domain.StageReview).
		Entity(paper).
		Invitees(dsl.Literal(dsl.Concat(venueID, "/Paper", dsl.Ref(reference.FrameEntity, "number"), "/Reviewers"))).
		ReplySignatures(dsl.OneOf(dsl.Prefix(`~.*`), dsl.Value(venueID+"/Program_Chairs"))).
		Bind("forum", dsl.Ref(reference.FrameEntity, "id")).
		Field("rating", dsl.Field().Type(schema.Int()).Enum(1, 2, 3, 4, 5)).
		Due(deadline).
		Build()
*/
package dsl
