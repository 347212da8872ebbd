// Package stages implements the handlers of the thirteen venue stage types.
//
// Each handler decodes its event content into a typed configuration whose
// pointer fields stay nil when a key is absent, then patches the definitions it
// owns so that absent keys keep their prior values. Per-entity children are only
// rebuilt when the stage is activated or one of its tracked fields changed.
package stages
