package venueflow_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/venueflow"
	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/domain"
)

// ExampleEngine_HandleStageEvent opens the submission stage of a venue and then
// extends its deadline with a partial event.
func ExampleEngine_HandleStageEvent() {
	ctx := context.Background()
	eng := venueflow.New(venueflow.WithClock(memory.NewClock(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))))

	if _, err := eng.CreateForm(ctx, "form-1", "Conf/2025", 1, map[string]any{"title": "Conference 2025"}); err != nil {
		log.Fatal(err)
	}

	out := eng.HandleStageEvent(ctx, domain.StageEvent{
		StageType:     domain.StageSubmission,
		RequestFormID: "form-1",
		Sequence:      1,
		Content:       map[string]any{"due_date": "2025-03-01 23:59"},
	})
	fmt.Println(out.Success, out.Transition, out.Record.Title)

	out = eng.HandleStageEvent(ctx, domain.StageEvent{
		StageType:     domain.StageSubmission,
		RequestFormID: "form-1",
		Sequence:      2,
		Content:       map[string]any{"due_date": "2025-03-08 23:59"},
	})
	fmt.Println(out.Success, out.Transition)

	defs, err := eng.Definitions(ctx, "Conf/2025/-/Request1/Submission")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(defs[0].Version, defs[0].Window.Due.Format("2006-01-02"))

	// Output:
	// true active Submission stage applied
	// true reconfigured
	// 2 2025-03-08
}
