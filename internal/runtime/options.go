package runtime

import (
	"log/slog"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/aretw0/venueflow/pkg/registry"
	"github.com/aretw0/venueflow/pkg/reporter"
	"github.com/aretw0/venueflow/pkg/venue"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithClock sets the time source used for deadlines and timestamps.
func WithClock(clock ports.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithDirectory sets the source of downstream entities.
// Without one, handlers see no entities.
func WithDirectory(dir ports.EntityDirectory) Option {
	return func(d *Dispatcher) {
		d.directory = dir
	}
}

// WithNotifier sets the notifier. Without one, notifications are logged and dropped.
func WithNotifier(n ports.Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

// WithSolver sets the matching solver. Without one, solver runs are logged and dropped.
func WithSolver(s ports.MatchingSolver) Option {
	return func(d *Dispatcher) {
		d.solver = s
	}
}

// WithFunctions sets the function registry process references are checked against.
func WithFunctions(fns *registry.Functions) Option {
	return func(d *Dispatcher) {
		d.functions = fns
	}
}

// WithNames sets the group and prefix names used to derive identifiers.
func WithNames(names venue.Names) Option {
	return func(d *Dispatcher) {
		d.names = names
	}
}

// WithReporter replaces the default reporter, which posts to the repository.
func WithReporter(r *reporter.Reporter) Option {
	return func(d *Dispatcher) {
		d.reporter = r
	}
}

// WithTracer sets the OpenTelemetry tracer. The global provider is used by default.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}
