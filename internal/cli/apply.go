package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/venueflow/internal/config"
	"github.com/aretw0/venueflow/internal/presentation/tui"
	"github.com/aretw0/venueflow/pkg/adapters/loam"
	"github.com/aretw0/venueflow/pkg/domain"
)

// ErrFailedEvents is returned when at least one event of a run failed.
var ErrFailedEvents = errors.New("one or more stage events failed")

// Output selects how outcomes are written.
type Output struct {
	W    io.Writer
	JSON bool
}

func (o Output) outcomes(outs []domain.Outcome) error {
	if o.JSON {
		enc := json.NewEncoder(o.W)
		enc.SetIndent("", "  ")
		return enc.Encode(outs)
	}
	r := tui.NewRenderer(o.W)
	for _, out := range outs {
		if err := r.Outcome(out); err != nil {
			return err
		}
	}
	return nil
}

// Apply seeds the batch and handles its events in file order.
func Apply(ctx context.Context, rt *Runtime, b *Batch, out Output) ([]domain.Outcome, error) {
	if _, err := rt.Seed(ctx, b); err != nil {
		return nil, err
	}
	outcomes := make([]domain.Outcome, 0, len(b.Events))
	for _, ev := range b.Events {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, rt.Engine.HandleStageEvent(ctx, ev))
	}
	if err := out.outcomes(outcomes); err != nil {
		return outcomes, err
	}
	return outcomes, failed(outcomes)
}

// Validate runs the batch against a scratch in-memory store so that nothing
// configured is written. Each event is planned, then applied so later events
// see the state earlier ones leave.
func Validate(ctx context.Context, cfg config.Config, logger *slog.Logger, b *Batch, out Output) ([]domain.Outcome, error) {
	cfg.Store = config.Store{Backend: config.BackendMemory}
	cfg.Metrics = false
	cfg.OTLPEndpoint = ""
	rt, err := Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer rt.Close(ctx)

	if _, err := rt.Seed(ctx, b); err != nil {
		return nil, err
	}
	outcomes := make([]domain.Outcome, 0, len(b.Events))
	for _, ev := range b.Events {
		if plan, err := rt.Engine.Plan(ctx, ev); err == nil {
			logger.Debug("planned", "event", ev.ID(), "definitions", len(plan.Definitions), "children", len(plan.Children))
		}
		outcomes = append(outcomes, rt.Engine.HandleStageEvent(ctx, ev))
	}
	if err := out.outcomes(outcomes); err != nil {
		return outcomes, err
	}
	return outcomes, failed(outcomes)
}

// Replay handles the events stored under dir for formID, or for every form
// with events when formID is empty.
func Replay(ctx context.Context, rt *Runtime, dir, formID string, out Output) ([]domain.Outcome, error) {
	source, err := loam.Open(dir)
	if err != nil {
		return nil, err
	}
	forms := []string{formID}
	if formID == "" {
		if forms, err = source.Forms(ctx); err != nil {
			return nil, err
		}
	}

	var outcomes []domain.Outcome
	for _, id := range forms {
		outs, err := rt.Engine.Replay(ctx, source, id)
		outcomes = append(outcomes, outs...)
		if err != nil {
			return outcomes, err
		}
	}
	if err := out.outcomes(outcomes); err != nil {
		return outcomes, err
	}
	return outcomes, failed(outcomes)
}

func failed(outs []domain.Outcome) error {
	n := 0
	for _, o := range outs {
		if !o.Success {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFailedEvents, n, len(outs))
	}
	return nil
}
