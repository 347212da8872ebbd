// Package registry maps stage tags to their handlers and process function names to
// their implementations.
//
// Ordering between stages is metadata: a handler declares which stages must be active,
// which milestones must have passed and which venue switches must be on. The
// dispatcher checks these before calling Apply.
package registry
