/*
Package runtime is the stage dispatcher.

A Dispatcher turns one stage event into one unit of work: it journals the event,
loads the per-stage state machines, checks ordering preconditions, asks the
handler for a plan and, once the whole plan is validated, persists it. Every
event ends with exactly one activity record, success or error.

The dispatcher does not serialize events itself. Callers must not dispatch two
events of the same request form concurrently.
*/
package runtime
