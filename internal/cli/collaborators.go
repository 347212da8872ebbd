package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/venueflow/internal/config"
	"github.com/aretw0/venueflow/pkg/adapters/process"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
)

func notifier(h config.Hooks, logger *slog.Logger) ports.Notifier {
	if !h.Notify.Enabled() {
		return logNotifier{logger: logger}
	}
	return process.NewRunner(
		process.WithNotifyCommand(h.Notify),
		process.WithBaseDir(h.Dir),
		process.WithLogger(logger),
	)
}

func solver(h config.Hooks, logger *slog.Logger) ports.MatchingSolver {
	if !h.Solve.Enabled() {
		return logSolver{logger: logger}
	}
	return process.NewRunner(
		process.WithSolveCommand(h.Solve),
		process.WithBaseDir(h.Dir),
		process.WithLogger(logger),
	)
}

// logNotifier records notifications in the log. Delivery is done elsewhere.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.logger.Info("notification",
		"recipients", msg.Recipients,
		"subject", msg.Subject,
		"definition", msg.Definition,
	)
	return nil
}

// logSolver records matching runs in the log.
type logSolver struct {
	logger *slog.Logger
}

func (s logSolver) Solve(ctx context.Context, run domain.SolverRun) error {
	s.logger.Info("matching run requested", "definition", run.Definition, "group", run.Group)
	return nil
}

// debugHooks logs every stage run at debug level.
func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageStart: func(ctx context.Context, e *domain.StageRunEvent) {
			logger.Debug("stage start", "form", e.FormID, "stage", e.Stage, "event", e.EventID)
		},
		OnStageFinish: func(ctx context.Context, e *domain.StageRunEvent) {
			if !e.Success {
				logger.Debug("stage failed", "form", e.FormID, "stage", e.Stage, "kind", e.Kind)
				return
			}
			logger.Debug("stage finished", "form", e.FormID, "stage", e.Stage, "from", e.From, "to", e.To)
		},
		OnDefinitionPersisted: func(ctx context.Context, e *domain.DefinitionEvent) {
			logger.Debug("definition persisted", "id", e.DefinitionID, "version", e.Version)
		},
	}
}
