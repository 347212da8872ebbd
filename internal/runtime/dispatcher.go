package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/reporter"
	"github.com/aretw0/venueflow/pkg/venue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/venueflow/internal/runtime"

// Dispatcher runs stage events through their handlers.
type Dispatcher struct {
	repo      ports.Repository
	registry  *registry.Registry
	functions *registry.Functions
	directory ports.EntityDirectory
	notifier  ports.Notifier
	solver    ports.MatchingSolver
	reporter  *reporter.Reporter
	clock     ports.Clock
	names     venue.Names
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates a dispatcher over repo and the handlers of reg.
func New(repo ports.Repository, reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:     repo,
		registry: reg,
		clock:    ports.SystemClock,
		names:    venue.DefaultNames(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if d.reporter == nil {
		d.reporter = reporter.New(repo, reporter.WithLogger(d.logger), reporter.WithClock(d.clock))
	}
	return d
}

// attempt carries what one event has loaded so far.
type attempt struct {
	event    domain.StageEvent
	form     *domain.RequestForm
	handler  registry.Handler
	states   map[domain.StageType]*domain.StageState
	state    *domain.StageState
	settings *venue.Settings
	naming   venue.Naming
	now      time.Time
	logger   *slog.Logger

	// redelivered is set when the event is the stage's last applied event.
	redelivered bool
}

// Handle processes one stage event. It never returns an error: failures are
// classified on the outcome and reported as an activity record.
func (d *Dispatcher) Handle(ctx context.Context, event domain.StageEvent) domain.Outcome {
	began := time.Now()
	ctx, span := d.tracer.Start(ctx, "stage "+string(event.StageType), trace.WithAttributes(
		attribute.String("venueflow.form", event.RequestFormID),
		attribute.String("venueflow.stage", string(event.StageType)),
		attribute.Int64("venueflow.sequence", event.Sequence),
	))
	defer span.End()

	outcome := domain.Outcome{EventID: event.ID(), Stage: event.StageType}
	run := &domain.StageRunEvent{
		Timestamp: d.clock.Now(),
		FormID:    event.RequestFormID,
		EventID:   event.ID(),
		Stage:     event.StageType,
	}
	if d.hooks.OnStageStart != nil {
		d.hooks.OnStageStart(ctx, run)
	}

	at := &attempt{
		event:  event,
		now:    d.clock.Now(),
		logger: d.logger.With("form", event.RequestFormID, "stage", event.StageType, "seq", event.Sequence),
	}
	if err := d.process(ctx, at, &outcome); err != nil {
		outcome.Success = false
		outcome.Err = domain.NewStageError(event.StageType, event.ID(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		at.logger.Error("stage event failed", "kind", outcome.Err.Kind, "err", err)
	} else {
		outcome.Success = true
		span.SetAttributes(
			attribute.String("venueflow.transition", string(outcome.Transition)),
			attribute.Int("venueflow.definitions", len(outcome.Definitions)),
		)
		at.logger.Info("stage event applied",
			"transition", outcome.Transition,
			"definitions", len(outcome.Definitions),
			"skipped", outcome.Skipped,
		)
	}

	d.reporter.Report(ctx, at.form, event, &outcome)

	if at.state != nil {
		run.From = at.state.Status
	}
	run.To = outcome.Transition
	run.Success = outcome.Success
	if outcome.Err != nil {
		run.Kind = outcome.Err.Kind
	}
	run.Duration = time.Since(began)
	if d.hooks.OnStageFinish != nil {
		d.hooks.OnStageFinish(ctx, run)
	}
	return outcome
}

func (d *Dispatcher) process(ctx context.Context, at *attempt, outcome *domain.Outcome) error {
	if err := d.open(ctx, at); err != nil {
		return err
	}
	appended, err := d.repo.Append(ctx, at.event)
	if err != nil {
		return &domain.CollaboratorError{Op: "append event", Err: err}
	}
	if !appended {
		at.logger.Debug("event already journaled")
	}
	if err := d.prepare(ctx, at); err != nil {
		return err
	}

	state := at.state
	outcome.Transition = state.Status
	if at.event.Sequence < state.LastApplied || (at.redelivered && state.Status == domain.StatusExpired) {
		outcome.Skipped = true
		outcome.Summary = append(outcome.Summary,
			fmt.Sprintf("Sequence %d is already covered by applied sequence %d", at.event.Sequence, state.LastApplied))
		return nil
	}

	if at.event.Deactivates() {
		return d.deactivate(ctx, at, outcome)
	}

	// A redelivered event already met its requirements when first applied.
	if !at.redelivered {
		if err := at.handler.Requirements().Check(at.event.StageType, at.states, at.settings, at.now); err != nil {
			return err
		}
	}

	plan, err := d.plan(ctx, at)
	if err != nil {
		return err
	}
	return d.commit(ctx, at, plan, outcome)
}

// open validates the event and loads its form and handler.
func (d *Dispatcher) open(ctx context.Context, at *attempt) error {
	if err := at.event.Validate(); err != nil {
		return err
	}
	form, err := d.repo.LoadForm(ctx, at.event.RequestFormID)
	if errors.Is(err, domain.ErrFormNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}
	if err != nil {
		return &domain.CollaboratorError{Op: "load form", Err: err}
	}
	at.form = form

	h, err := d.registry.Lookup(at.event.StageType)
	if err != nil {
		return err
	}
	at.handler = h
	return nil
}

// prepare loads the stage states and the current venue settings.
func (d *Dispatcher) prepare(ctx context.Context, at *attempt) error {
	states, err := d.repo.States(ctx, at.form.ID)
	if err != nil {
		return &domain.CollaboratorError{Op: "load stage states", Err: err}
	}
	if states == nil {
		states = make(map[domain.StageType]*domain.StageState)
	}
	at.states = states
	at.state = states[at.event.StageType]
	if at.state == nil {
		at.state = domain.NewStageState(at.form.ID, at.event.StageType)
	}
	at.redelivered = at.state.LastApplied > 0 && at.event.Sequence == at.state.LastApplied

	settings, err := venue.Load(at.form)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			err = &domain.SchemaError{Definition: at.form.ID, Location: "venue settings", Err: err}
		}
		return err
	}
	at.settings = settings
	at.naming = venue.NewNaming(at.form, d.names, settings)
	return nil
}

// plan asks the handler for the event's plan and validates it as a whole.
func (d *Dispatcher) plan(ctx context.Context, at *attempt) (*domain.Plan, error) {
	// The diff baseline is the applied event before this one, never a rejected one.
	baseline := at.state.LastApplied
	before := at.state
	if at.redelivered {
		baseline = at.state.Previous
		if at.state.Previous == 0 {
			before = domain.NewStageState(at.form.ID, at.event.StageType)
		}
	}
	history, err := d.baseline(ctx, at.form.ID, at.event.StageType, baseline)
	if err != nil {
		return nil, err
	}

	var entities []domain.Entity
	if d.directory != nil {
		entities, err = d.directory.Entities(ctx, at.form.VenueID)
		if err != nil {
			return nil, &domain.CollaboratorError{Op: "list entities", Err: err}
		}
	}

	in := &registry.Input{
		Event:       at.event,
		Form:        at.form,
		Settings:    at.settings,
		Naming:      at.naming,
		State:       before,
		States:      at.states,
		History:     history,
		Changed:     domain.Changed(at.handler.TrackedFields(), at.event, history),
		Definitions: definitions{d.repo},
		Entities:    entities,
		Now:         at.now,
	}
	plan, err := apply(ctx, at.handler, in)
	if err != nil {
		return nil, err
	}
	if plan.Stage == "" {
		plan.Stage = at.event.StageType
	}
	for _, st := range at.handler.Supersedes() {
		if !slices.Contains(plan.Expire, st) {
			plan.Expire = append(plan.Expire, st)
		}
	}
	if err := d.validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// baseline returns the applied event with sequence seq, if it is journaled.
func (d *Dispatcher) baseline(ctx context.Context, formID string, stage domain.StageType, seq int64) ([]domain.StageEvent, error) {
	if seq <= 0 {
		return nil, nil
	}
	prior, err := d.repo.Prior(ctx, formID, stage, seq, 1)
	if err != nil {
		return nil, &domain.CollaboratorError{Op: "load history", Err: err}
	}
	if len(prior) == 0 || prior[0].Sequence != seq {
		return nil, nil
	}
	return prior, nil
}

func apply(ctx context.Context, h registry.Handler, in *registry.Input) (plan *domain.Plan, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.StageError{
				Stage:   h.Stage(),
				Kind:    domain.KindInternal,
				EventID: in.Event.ID(),
				Err:     fmt.Errorf("handler panicked: %v", r),
			}
		}
	}()
	plan, err = h.Apply(ctx, in)
	if err == nil && plan == nil {
		err = fmt.Errorf("handler %s returned no plan", h.Stage())
	}
	return plan, err
}

// validate rejects a plan before any of it is written.
func (d *Dispatcher) validate(plan *domain.Plan) error {
	seen := make(map[string]bool)
	for _, def := range plan.AllDefinitions() {
		if def == nil || def.ID == "" {
			return &domain.SchemaError{Definition: string(plan.Stage), Err: errors.New("definition without identifier")}
		}
		if seen[def.ID] {
			return &domain.SchemaError{Definition: def.ID, Err: errors.New("declared twice in one plan")}
		}
		seen[def.ID] = true
		if def.Stage == "" {
			def.Stage = plan.Stage
		}
		if _, err := def.Canonical(); err != nil {
			return &domain.SchemaError{Definition: def.ID, Err: err}
		}
		if def.Process != nil && d.functions != nil && !d.functions.Has(*def.Process) {
			return &domain.SchemaError{
				Definition: def.ID,
				Location:   "process",
				Err:        fmt.Errorf("function %s@v%d is not registered", def.Process.Name, def.Process.Version),
			}
		}
	}
	return nil
}

// commit writes the plan. A write failure leaves what was persisted and marks
// the stage as attempted.
func (d *Dispatcher) commit(ctx context.Context, at *attempt, plan *domain.Plan, outcome *domain.Outcome) error {
	next := at.state.Clone()
	outcome.Regenerated = plan.Regenerated
	outcome.Summary = append(outcome.Summary, plan.Summary...)

	fail := func(err error) error {
		d.markAttempted(ctx, at, next)
		return err
	}

	for _, def := range plan.AllDefinitions() {
		written, err := d.persist(ctx, at, def)
		if err != nil {
			return fail(err)
		}
		next.Owns(def.ID)
		if written {
			outcome.Definitions = append(outcome.Definitions, def.ID)
		}
	}

	for _, st := range plan.Expire {
		if st == at.event.StageType {
			continue
		}
		expired, err := d.expireStage(ctx, at, st)
		if err != nil {
			return fail(err)
		}
		if expired {
			outcome.Summary = append(outcome.Summary, fmt.Sprintf("%s expired", st.Label()))
		}
	}

	if at.redelivered {
		if len(plan.Notifications) > 0 || len(plan.SolverRuns) > 0 {
			at.logger.Debug("redelivered event, side effects not repeated",
				"notifications", len(plan.Notifications),
				"solver_runs", len(plan.SolverRuns),
			)
		}
	} else if err := d.sideEffects(ctx, at, plan); err != nil {
		return fail(err)
	}

	if !at.redelivered {
		next.Status = at.state.Next()
		next.Revision++
		next.Previous = at.state.LastApplied
		next.LastApplied = at.event.Sequence
	}
	next.Attempted = 0
	for name, t := range plan.Milestones {
		if next.Milestones == nil {
			next.Milestones = make(map[string]time.Time)
		}
		next.Milestones[name] = t
	}
	next.UpdatedAt = at.now
	if err := d.repo.SaveState(ctx, next); err != nil {
		return fail(&domain.CollaboratorError{Op: "save stage state", Err: err})
	}
	at.states[next.Stage] = next

	outcome.Transition = next.Status
	outcome.Skipped = at.redelivered && len(outcome.Definitions) == 0
	return nil
}

// persist writes def unless the stored definition already has the same content.
// Versions are normalized against the stored definition.
func (d *Dispatcher) persist(ctx context.Context, at *attempt, def *domain.WorkflowDefinition) (bool, error) {
	stored, err := definitions{d.repo}.Lookup(ctx, def.ID)
	if err != nil {
		return false, &domain.CollaboratorError{Op: "load definition " + def.ID, Err: err}
	}
	switch {
	case stored == nil:
		def.Version = max(def.Version, 1)
	case domain.SameContent(stored, def):
		def.Version = stored.Version
		return false, nil
	default:
		def.Version = stored.Version + 1
	}
	if err := d.repo.Persist(ctx, def); err != nil {
		return false, &domain.CollaboratorError{Op: "persist definition " + def.ID, Err: err}
	}
	if d.hooks.OnDefinitionPersisted != nil {
		d.hooks.OnDefinitionPersisted(ctx, &domain.DefinitionEvent{
			Timestamp:    at.now,
			FormID:       at.form.ID,
			Stage:        def.Stage,
			DefinitionID: def.ID,
			Version:      def.Version,
			Child:        def.Entity != nil,
		})
	}
	return true, nil
}

// expireStage marks every definition owned by an active stage as expired and
// moves the stage to expired. Inactive stages are left alone.
func (d *Dispatcher) expireStage(ctx context.Context, at *attempt, stage domain.StageType) (bool, error) {
	state := at.states[stage]
	if !state.IsActive() {
		return false, nil
	}
	if err := d.expireDefinitions(ctx, at, state.Definitions); err != nil {
		return false, err
	}
	next := state.Clone()
	next.Status = domain.StatusExpired
	next.UpdatedAt = at.now
	if err := d.repo.SaveState(ctx, next); err != nil {
		return false, &domain.CollaboratorError{Op: "save stage state", Err: err}
	}
	at.states[stage] = next
	return true, nil
}

func (d *Dispatcher) expireDefinitions(ctx context.Context, at *attempt, ids []string) error {
	for _, id := range ids {
		def, err := d.repo.Definition(ctx, id)
		if errors.Is(err, domain.ErrDefinitionNotFound) {
			continue
		}
		if err != nil {
			return &domain.CollaboratorError{Op: "load definition " + id, Err: err}
		}
		if def.Status == domain.DefinitionExpired {
			continue
		}
		def.Status = domain.DefinitionExpired
		if _, err := d.persist(ctx, at, def); err != nil {
			return err
		}
	}
	return nil
}

// deactivate applies an explicit deactivation event to the event's own stage.
func (d *Dispatcher) deactivate(ctx context.Context, at *attempt, outcome *domain.Outcome) error {
	next := at.state.Clone()
	if at.state.IsActive() {
		if err := d.expireDefinitions(ctx, at, at.state.Definitions); err != nil {
			d.markAttempted(ctx, at, next)
			return err
		}
	}
	next.Status = domain.StatusExpired
	if !at.redelivered {
		next.Revision++
		next.Previous = at.state.LastApplied
		next.LastApplied = at.event.Sequence
	}
	next.Attempted = 0
	next.UpdatedAt = at.now
	if err := d.repo.SaveState(ctx, next); err != nil {
		d.markAttempted(ctx, at, next)
		return &domain.CollaboratorError{Op: "save stage state", Err: err}
	}
	at.states[next.Stage] = next
	outcome.Transition = domain.StatusExpired
	outcome.Summary = append(outcome.Summary, fmt.Sprintf("%s deactivated", at.event.StageType.Label()))
	return nil
}

func (d *Dispatcher) sideEffects(ctx context.Context, at *attempt, plan *domain.Plan) error {
	for _, n := range plan.Notifications {
		if d.notifier == nil {
			at.logger.Warn("no notifier configured, notification dropped", "subject", n.Subject)
			continue
		}
		if err := d.notifier.Notify(ctx, n); err != nil {
			return &domain.CollaboratorError{Op: "notify " + n.Subject, Err: err}
		}
	}
	for _, run := range plan.SolverRuns {
		if d.solver == nil {
			at.logger.Warn("no matching solver configured, run dropped", "definition", run.Definition)
			continue
		}
		if err := d.solver.Solve(ctx, run); err != nil {
			return &domain.CollaboratorError{Op: "solve " + run.Definition, Err: err}
		}
	}
	return nil
}

// markAttempted records a failed write on the stage state. A failure to do so
// is logged, the original error is what gets reported.
func (d *Dispatcher) markAttempted(ctx context.Context, at *attempt, state *domain.StageState) {
	state.Attempted = at.event.Sequence
	state.UpdatedAt = at.now
	if err := d.repo.SaveState(ctx, state); err != nil {
		at.logger.Error("failed to mark stage as attempted", "err", err)
		return
	}
	at.states[state.Stage] = state
}

// Plan builds and validates the plan of event without writing anything.
func (d *Dispatcher) Plan(ctx context.Context, event domain.StageEvent) (*domain.Plan, error) {
	at := &attempt{
		event:  event,
		now:    d.clock.Now(),
		logger: d.logger.With("form", event.RequestFormID, "stage", event.StageType, "dry_run", true),
	}
	if err := d.open(ctx, at); err != nil {
		return nil, err
	}
	if err := d.prepare(ctx, at); err != nil {
		return nil, err
	}
	if event.Deactivates() {
		plan := &domain.Plan{Stage: event.StageType, Expire: []domain.StageType{event.StageType}}
		plan.Note(fmt.Sprintf("%s deactivated", event.StageType.Label()))
		return plan, nil
	}
	if !at.redelivered {
		if err := at.handler.Requirements().Check(event.StageType, at.states, at.settings, at.now); err != nil {
			return nil, err
		}
	}
	return d.plan(ctx, at)
}

// definitions adapts a DefinitionStore to registry.Definitions.
type definitions struct {
	store ports.DefinitionStore
}

func (l definitions) Lookup(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	def, err := l.store.Definition(ctx, id)
	if errors.Is(err, domain.ErrDefinitionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}
