/*
Package venueflow drives the configuration workflow of a peer-review venue.

A venue is configured through a request form. Program chairs move the venue
through its stages (submission, bidding, review, decision...) by submitting
stage events; each event builds or patches the workflow definitions that
describe what participants may submit next, and leaves an activity record on
the form.

# Concepts

  - Request form: the append-only venue configuration. Its current revision holds
    the venue settings (area chairs, ethics reviewers, deadlines).
  - Stage event: one configuration snapshot for a stage type, identified by the
    form and a sequence number. Redelivering an event is safe.
  - Workflow definition: a versioned schema for a future submission, with
    deterministic identifiers such as "Conf/2025/-/Request1/Decision" or
    "Conf/2025/Paper3/-/Official_Review".
  - Activity record: the success or error note posted for every event.

# Usage

	eng := venueflow.New(
		venueflow.WithRepository(store),
		venueflow.WithDirectory(directory),
	)

	_, err := eng.CreateForm(ctx, "form-1", "Conf/2025", 1, map[string]any{
		"title": "Conference 2025",
	})
	if err != nil {
		log.Fatal(err)
	}

	out := eng.HandleStageEvent(ctx, domain.StageEvent{
		StageType:     domain.StageSubmission,
		RequestFormID: "form-1",
		Sequence:      1,
		Content:       map[string]any{"due_date": "2025-03-01 23:59"},
	})
	if !out.Success {
		log.Printf("%s failed: %v", out.Stage, out.Err)
	}

Events of one form are serialized by the engine; events of different forms run
concurrently.
*/
package venueflow
