/*
Package ports defines the driven ports (interfaces) of the stage orchestrator.

These interfaces decouple the dispatcher from storage backends and external
collaborators, so the same core runs against memory, Redis or SQLite and against
real or recorded notifiers and solvers.

# Key Interfaces

  - Repository: forms, the stage event journal, definitions, activity and stage states.
  - EventSource: a read-only source of stage events for replay (e.g., Loam documents).
  - Clock, EntityDirectory, Notifier, MatchingSolver: external collaborators.
  - DistributedLocker: distributed locking for serializing events per request form.
*/
package ports
