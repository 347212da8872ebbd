// Package venue decodes and validates the venue settings carried by a request form
// and derives the deterministic identifiers of the definitions a venue owns.
package venue
