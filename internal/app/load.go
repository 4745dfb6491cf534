package app

import (
	"context"
	"fmt"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/executor"
	"github.com/vk/agentgrid/internal/handler"
	"github.com/vk/agentgrid/internal/scheduler"
)

// loadHandlers parses the handler files and compiles each routine. Any
// failure aborts startup.
func (a *App) loadHandlers(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading handlers...", "handlers_path", a.config.HandlersPath)

	mods, err := handler.NewLoader(a.registry.EvalContext()).Load(ctx, a.config.HandlersPath)
	if err != nil {
		return fmt.Errorf("failed to load handlers: %w", err)
	}
	if len(mods) == 0 {
		return fmt.Errorf("no handlers found in %q", a.config.HandlersPath)
	}

	a.handlers = make([]compiled, 0, len(mods))
	for _, m := range mods {
		g, err := m.Compile()
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", m.File, err)
		}
		logger.Debug("Handler compiled.", "handler", m.Name, "steps", len(g.Steps()), "captures", g.Captures)
		a.handlers = append(a.handlers, compiled{module: m, graph: g})
	}
	logger.Info("Handlers loaded successfully.", "count", len(a.handlers))
	return nil
}

// registerHandlers hands every compiled handler to the scheduler.
func (a *App) registerHandlers() error {
	for _, h := range a.handlers {
		err := a.sched.Register(h.module.Name, h.graph, h.module, executor.WithPriority(h.module.Priority))
		if err != nil {
			return fmt.Errorf("failed to register handler %q: %w", h.module.Name, err)
		}
	}
	return nil
}

// newScheduler creates the scheduler bound to the app's registry and task
// executor.
func (a *App) newScheduler(ctx context.Context) *scheduler.Scheduler {
	return scheduler.New(ctx,
		scheduler.WithWorkers(a.config.RequestWorkers),
		scheduler.WithExecutorOptions(
			executor.WithRegistry(a.registry),
			executor.WithTasks(a.tasks),
		),
	)
}
