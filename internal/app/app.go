package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/graph"
	"github.com/vk/agentgrid/internal/handler"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/vk/agentgrid/internal/scheduler"
	"github.com/vk/agentgrid/internal/task"
	toolsmod "github.com/vk/agentgrid/modules/tools"
)

// compiled is a handler together with its step graph.
type compiled struct {
	module *handler.Module
	graph  *graph.Graph
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	modules  []registry.Module
	tools    *toolsmod.Module
	handlers []compiled

	// Set while Run is active.
	ctx        context.Context
	tasks      *task.Executor
	sched      *scheduler.Scheduler
	httpServer *http.Server
}

// NewApp builds an App: it registers modules, validates the registry, and
// loads and compiles every handler under cfg.HandlersPath. Responses are
// written to outW and logs to logW. When no modules are given the core
// modules are used.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg}
	if len(modules) == 0 {
		modules, a.tools = coreModules(cfg, logW)
	}
	a.modules = modules

	a.registry = registry.New().Use(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules))
	if err := a.registry.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	if err := a.loadHandlers(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Handlers returns the names of the loaded handlers in load order.
func (a *App) Handlers() []string {
	names := make([]string, len(a.handlers))
	for i, h := range a.handlers {
		names[i] = h.module.Name
	}
	return names
}

// closeModules closes every module holding resources.
func (a *App) closeModules() {
	for _, m := range a.modules {
		c, ok := m.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close module.", "module", fmt.Sprintf("%T", m), "error", err)
		}
	}
}
