// Package submission validates records submitted against a workflow definition.
//
// This is the second place references are resolved: the stack is assembled from the
// note, the definition, the entity (for per-entity children) and the venue, and every
// template is rendered against it. A path missing at this point is a runtime error
// reported to the submitter as a *ResolutionError; it is never coerced to an empty value.
package submission
