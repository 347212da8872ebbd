// Package schema provides the value types and constraints of reply fields.
//
// A Constraint layers regex, enum, const and range checks on top of a Type.
// It also carries the optional and deletable modifiers: an optional field may
// be absent, a deletable field may be retracted by submitting the delete
// marker, which is distinct from leaving it absent.
//
//	c := schema.Constraint{
//	    Type: schema.String(),
//	    Enum: []any{"Accept", "Reject"},
//	}
//	if err := c.Check("Accept", true); err != nil {
//	    // reject the reply
//	}
//
// CheckFields validates a whole reply and collects every failure into an
// *AggregateError.
package schema
