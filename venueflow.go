package venueflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/internal/runtime"
	"github.com/aretw0/venueflow/internal/stages"
	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/keylock"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/reporter"
	"github.com/aretw0/venueflow/pkg/submission"
	"github.com/aretw0/venueflow/pkg/venue"
	"go.opentelemetry.io/otel/trace"
)

// Engine is the entry point of the library. It serializes the stage events of
// each request form and hands them to the dispatcher.
type Engine struct {
	repo       ports.Repository
	dispatcher *runtime.Dispatcher
	reporter   *reporter.Reporter
	locks      *keylock.Manager
	registry   *registry.Registry
	functions  *registry.Functions
	directory  ports.EntityDirectory
	notifier   ports.Notifier
	solver     ports.MatchingSolver
	locker     ports.DistributedLocker
	clock      ports.Clock
	names      venue.Names
	hooks      domain.LifecycleHooks
	tracer     trace.Tracer
	logger     *slog.Logger

	baseURL   string
	maxErrLen int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRepository sets the store. An in-memory store is used by default.
func WithRepository(repo ports.Repository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock sets the time source.
func WithClock(clock ports.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithDirectory sets the source of submissions (entities) per venue.
func WithDirectory(dir ports.EntityDirectory) Option {
	return func(e *Engine) {
		e.directory = dir
	}
}

// WithNotifier sets where stage and process notifications are sent.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithSolver sets the matching solver.
func WithSolver(s ports.MatchingSolver) Option {
	return func(e *Engine) {
		e.solver = s
	}
}

// WithLocker extends per-form serialization across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithNames overrides the group and prefix names used to derive identifiers.
func WithNames(names venue.Names) Option {
	return func(e *Engine) {
		e.names = names
	}
}

// WithBaseURL sets the prefix of the links in activity records.
func WithBaseURL(url string) Option {
	return func(e *Engine) {
		e.baseURL = url
	}
}

// WithMaxErrorLength bounds the serialized error stored in activity records.
func WithMaxErrorLength(n int) Option {
	return func(e *Engine) {
		e.maxErrLen = n
	}
}

// WithHandler registers an additional or replacement stage handler.
func WithHandler(h registry.Handler) Option {
	return func(e *Engine) {
		e.registry.Register(h)
	}
}

// WithFunction registers an additional process function.
func WithFunction(name string, version int, fn registry.Function) Option {
	return func(e *Engine) {
		e.functions.Register(name, version, fn)
	}
}

// WithTracer sets the OpenTelemetry tracer used for stage spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New creates an Engine with the built-in stage handlers and process functions.
func New(opts ...Option) *Engine {
	eng := &Engine{
		registry:  stages.NewRegistry(),
		functions: stages.NewFunctions(),
		clock:     ports.SystemClock,
		names:     venue.DefaultNames(),
		maxErrLen: reporter.DefaultMaxErrorLength,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.repo == nil {
		eng.repo = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	eng.reporter = reporter.New(eng.repo,
		reporter.WithBaseURL(eng.baseURL),
		reporter.WithMaxErrorLength(eng.maxErrLen),
		reporter.WithLogger(eng.logger),
		reporter.WithClock(eng.clock),
	)

	lockOpts := []keylock.Option{keylock.WithLogger(eng.logger)}
	if eng.locker != nil {
		lockOpts = append(lockOpts, keylock.WithLocker(eng.locker))
	}
	eng.locks = keylock.NewManager(lockOpts...)

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithClock(eng.clock),
		runtime.WithFunctions(eng.functions),
		runtime.WithNames(eng.names),
		runtime.WithReporter(eng.reporter),
	}
	if eng.directory != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithDirectory(eng.directory))
	}
	if eng.notifier != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithNotifier(eng.notifier))
	}
	if eng.solver != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithSolver(eng.solver))
	}
	if eng.tracer != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithTracer(eng.tracer))
	}
	eng.dispatcher = runtime.New(eng.repo, eng.registry, runtimeOpts...)
	return eng
}

// Repository returns the store the engine reads and writes.
func (e *Engine) Repository() ports.Repository {
	return e.repo
}

// Functions returns the process function registry.
func (e *Engine) Functions() *registry.Functions {
	return e.functions
}

// HandleStageEvent processes one stage event while holding the lock of its
// request form. The outcome always carries the posted activity record.
func (e *Engine) HandleStageEvent(ctx context.Context, event domain.StageEvent) domain.Outcome {
	var outcome domain.Outcome
	err := e.locks.WithLock(ctx, event.RequestFormID, func(ctx context.Context) error {
		outcome = e.dispatcher.Handle(ctx, event)
		return nil
	})
	if err != nil {
		outcome = domain.Outcome{
			EventID: event.ID(),
			Stage:   event.StageType,
			Err:     domain.NewStageError(event.StageType, event.ID(), &domain.CollaboratorError{Op: "lock form", Err: err}),
		}
		e.logger.Error("failed to lock request form", "form", event.RequestFormID, "err", err)
		e.reporter.Report(ctx, nil, event, &outcome)
	}
	return outcome
}

// Plan returns what event would do without applying it.
func (e *Engine) Plan(ctx context.Context, event domain.StageEvent) (*domain.Plan, error) {
	return e.dispatcher.Plan(ctx, event)
}

// CreateForm stores a new request form. It fails if the form already exists.
func (e *Engine) CreateForm(ctx context.Context, id, venueID string, number int, content map[string]any) (*domain.RequestForm, error) {
	form := domain.NewRequestForm(id, venueID, number, content, e.clock.Now())
	err := e.locks.WithLock(ctx, id, func(ctx context.Context) error {
		_, err := e.repo.LoadForm(ctx, id)
		switch {
		case err == nil:
			return fmt.Errorf("request form %s already exists", id)
		case !errors.Is(err, domain.ErrFormNotFound):
			return err
		}
		if _, err := venue.Load(form); err != nil {
			return err
		}
		return e.repo.SaveForm(ctx, form)
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// AppendRevision adds a configuration revision to a request form. Later stage
// events see the new settings.
func (e *Engine) AppendRevision(ctx context.Context, formID string, content map[string]any) (domain.FormRevision, error) {
	var rev domain.FormRevision
	err := e.locks.WithLock(ctx, formID, func(ctx context.Context) error {
		form, err := e.repo.LoadForm(ctx, formID)
		if err != nil {
			return err
		}
		rev, err = form.AppendRevision(content, e.clock.Now())
		if err != nil {
			return err
		}
		if _, err := venue.Load(form); err != nil {
			return err
		}
		return e.repo.SaveForm(ctx, form)
	})
	return rev, err
}

// Replay handles every event of a form from source in sequence order.
func (e *Engine) Replay(ctx context.Context, source ports.EventSource, formID string) ([]domain.Outcome, error) {
	events, err := source.Events(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events of %s: %w", formID, err)
	}
	out := make([]domain.Outcome, 0, len(events))
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, e.HandleStageEvent(ctx, ev))
	}
	return out, nil
}

// Definitions lists the definitions whose ID starts with prefix.
func (e *Engine) Definitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error) {
	return e.repo.ListDefinitions(ctx, prefix)
}

// Activity returns the activity records of a form.
func (e *Engine) Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error) {
	return e.repo.Activity(ctx, formID)
}

// Submission is the result of an accepted note.
type Submission struct {
	Result *submission.Result `json:"result"`

	// Effect is the output of the definition's process function, if any.
	Effect any `json:"effect,omitempty"`
}

// Submit validates note against the definition it targets and runs the
// definition's process function. A per-entity definition is only open while
// its venue-level parent is.
func (e *Engine) Submit(ctx context.Context, formID string, note domain.Note) (*Submission, error) {
	form, err := e.repo.LoadForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	def, err := e.repo.Definition(ctx, note.Invitation)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()

	if def.Parent != "" {
		parent, err := e.repo.Definition(ctx, def.Parent)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", def.ID, err)
		}
		if parent.Status != domain.DefinitionActive {
			return nil, fmt.Errorf("%w: %s is %s", submission.ErrClosed, parent.ID, parent.Status)
		}
		if !parent.Window.Open(now) {
			return nil, fmt.Errorf("%w: %s outside its window", submission.ErrClosed, parent.ID)
		}
	}

	var entity *domain.Entity
	if def.Entity != nil && e.directory != nil {
		entities, err := e.directory.Entities(ctx, form.VenueID)
		if err != nil {
			return nil, &domain.CollaboratorError{Op: "list entities", Err: err}
		}
		for i := range entities {
			if entities[i].ID == def.Entity.ID {
				entity = &entities[i]
				break
			}
		}
	}

	result, err := submission.Validate(def, note, submission.Context{Entity: entity, Venue: form, Now: now})
	if err != nil {
		return nil, err
	}
	out := &Submission{Result: result}
	if def.Process == nil {
		return out, nil
	}

	effect, err := e.functions.Execute(ctx, *def.Process, note)
	if err != nil {
		return nil, fmt.Errorf("process %s of %s: %w", def.Process.Name, def.ID, err)
	}
	out.Effect = effect
	if eff, ok := effect.(*stages.Effect); ok && e.notifier != nil {
		for _, n := range eff.Notifications {
			if err := e.notifier.Notify(ctx, n); err != nil {
				return out, &domain.CollaboratorError{Op: "notify " + n.Subject, Err: err}
			}
		}
	}
	e.logger.Debug("note accepted", "form", formID, "definition", def.ID, "at", now.Format(time.RFC3339))
	return out, nil
}
