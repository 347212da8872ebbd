package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/venueflow"
	"github.com/aretw0/venueflow/internal/config"
	"github.com/aretw0/venueflow/internal/telemetry"
	"github.com/aretw0/venueflow/pkg/adapters/memory"
	"github.com/aretw0/venueflow/pkg/adapters/redis"
	"github.com/aretw0/venueflow/pkg/adapters/sqlite"
	"github.com/aretw0/venueflow/pkg/observability"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

const serviceName = "venueflow"

// Runtime is an engine built from configuration, with what it owns.
type Runtime struct {
	Engine    *venueflow.Engine
	Metrics   *observability.Metrics
	Directory *memory.Directory
	Logger    *slog.Logger

	closers []func(context.Context) error
}

// Close releases the store and flushes traces.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// Build wires an engine to the configured store, lock, metrics and tracing.
// Extra options are applied last.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...venueflow.Option) (*Runtime, error) {
	rt := &Runtime{
		Directory: memory.NewDirectory(),
		Logger:    logger,
	}

	repo, locker, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	opts := []venueflow.Option{
		venueflow.WithRepository(repo),
		venueflow.WithLogger(logger),
		venueflow.WithDirectory(rt.Directory),
		venueflow.WithNotifier(notifier(cfg.Hooks, logger)),
		venueflow.WithSolver(solver(cfg.Hooks, logger)),
		venueflow.WithNames(cfg.Names),
		venueflow.WithBaseURL(cfg.BaseURL),
		venueflow.WithMaxErrorLength(cfg.MaxErrorLength),
	}
	if locker != nil {
		opts = append(opts, venueflow.WithLocker(locker))
	}

	hooks := debugHooks(logger)
	if cfg.Metrics {
		rt.Metrics = observability.NewMetrics(prometheus.NewRegistry())
		hooks = observability.Chain(hooks, rt.Metrics.Hooks(nil))
	}
	opts = append(opts, venueflow.WithLifecycleHooks(hooks))

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		rt.closers = append(rt.closers, shutdown)
		opts = append(opts, venueflow.WithTracer(otel.Tracer(serviceName)))
	}

	rt.Engine = venueflow.New(append(opts, extra...)...)
	return rt, nil
}

// openStore returns the repository of the configured backend, the
// distributed lock that goes with it, if any, and its closer.
func openStore(cfg config.Store) (ports.Repository, ports.DistributedLocker, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewStore(), nil, nil, nil
	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		locker := redis.NewLocker(store.Client(), cfg.Redis.Prefix)
		return store, locker, func(context.Context) error { return store.Close() }, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil, func(context.Context) error { return store.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Seed creates the batch's forms that do not exist yet and registers its
// entities. It returns the IDs of the forms it created.
func (r *Runtime) Seed(ctx context.Context, b *Batch) ([]string, error) {
	for venueID, entities := range b.Entities {
		r.Directory.Put(venueID, entities...)
	}
	var created []string
	for _, f := range b.Forms {
		_, err := r.Engine.Repository().LoadForm(ctx, f.ID)
		if err == nil {
			r.Logger.Debug("form exists, not seeding", "form", f.ID)
			continue
		}
		if _, err := r.Engine.CreateForm(ctx, f.ID, f.VenueID, f.Number, f.Content); err != nil {
			return created, fmt.Errorf("create form %s: %w", f.ID, err)
		}
		created = append(created, f.ID)
	}
	return created, nil
}
