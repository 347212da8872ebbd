// Package process delivers notifications and matching runs to external
// programs. The payload is written as JSON to the program's stdin; arguments
// come only from configuration, never from event content.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/domain"
)

// Environment variables set on every started program.
const (
	EnvHook       = "VENUEFLOW_HOOK"
	EnvDefinition = "VENUEFLOW_DEFINITION"
)

const (
	hookNotify = "notify"
	hookSolve  = "solve"
)

// maxStderr bounds the stderr kept in errors.
const maxStderr = 4096

// Runner implements ports.Notifier and ports.MatchingSolver by running the
// configured commands. A hook without a command is logged and dropped.
type Runner struct {
	notify  Command
	solve   Command
	baseDir string
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithNotifyCommand sets the program that receives notifications.
func WithNotifyCommand(c Command) RunnerOption {
	return func(r *Runner) {
		r.notify = c
	}
}

// WithSolveCommand sets the program that receives matching runs.
func WithSolveCommand(c Command) RunnerOption {
	return func(r *Runner) {
		r.solve = c
	}
}

// WithBaseDir sets the working directory for started programs.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notify sends n to the notify command.
func (r *Runner) Notify(ctx context.Context, n domain.Notification) error {
	return r.run(ctx, hookNotify, r.notify, n.Definition, n)
}

// Solve sends run to the solve command.
func (r *Runner) Solve(ctx context.Context, run domain.SolverRun) error {
	return r.run(ctx, hookSolve, r.solve, run.Definition, run)
}

func (r *Runner) run(ctx context.Context, hook string, c Command, definition string, payload any) error {
	if !c.Enabled() {
		r.logger.Debug("no command configured, dropping", "hook", hook, "definition", definition)
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", hook, err)
	}

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(cmd.Environ(), c.environ()...)
	cmd.Env = append(cmd.Env, EnvHook+"="+hook, EnvDefinition+"="+definition)
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s command %s failed: %w: %s", hook, c.Command, err, tail(stderr.String()))
	}
	r.logger.Info("hook command finished",
		"hook", hook,
		"definition", definition,
		"output", strings.TrimSpace(stdout.String()),
	)
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[len(s)-maxStderr:]
	}
	return s
}
