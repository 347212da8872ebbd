/*
Package domain contains the core entities of the stage orchestrator.

It defines the configuration aggregate of a venue, the stage events that advance it,
the workflow definitions the stages materialize and the records that report on them.
The package is kept pure and free of I/O; persistence and collaborators live behind
the interfaces in package ports.

# Key Entities

  - RequestForm: append-only configuration state of one venue.
  - StageEvent: one configuration submission for a stage type.
  - StageState: per-form, per-stage state machine (uninitialized, active, reconfigured, expired).
  - WorkflowDefinition: a versioned schema describing an allowed future submission.
  - PermissionSet: a literal list or an alternative-set constraint over identities.
  - ActivityRecord: a status or error note appended to the venue's activity log.
  - Plan: what a stage handler wants the dispatcher to persist.
*/
package domain
