package executor

import (
	"maps"

	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/vk/agentgrid/internal/task"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Option configures an Executor.
type Option func(*Executor)

// WithGlobals adds caller-supplied bindings visible to every input.
func WithGlobals(globals map[string]cty.Value) Option {
	return func(e *Executor) {
		maps.Copy(e.globals, globals)
	}
}

// WithFunctions adds synchronous functions callable from expressions.
func WithFunctions(funcs map[string]function.Function) Option {
	return func(e *Executor) {
		maps.Copy(e.funcs, funcs)
	}
}

// WithAsyncFuncs adds functions reached through await.
func WithAsyncFuncs(funcs map[string]fragment.AsyncFunc) Option {
	return func(e *Executor) {
		for name, fn := range funcs {
			delete(e.funcs, name)
			e.async[name] = fn
		}
	}
}

// WithTasks routes awaited calls through the given task executor. Without it
// awaited calls run inline on the traversal's goroutine.
func WithTasks(tasks *task.Executor) Option {
	return func(e *Executor) {
		if tasks != nil {
			e.tasks = tasks
		}
	}
}

// WithPriority sets the task priority of awaited calls.
func WithPriority(priority int) Option {
	return func(e *Executor) {
		e.priority = priority
	}
}

// WithRegistry adds every function, async function and global of r.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Executor) {
		if r == nil {
			return
		}
		WithFunctions(r.Functions())(e)
		WithAsyncFuncs(r.Async())(e)
		WithGlobals(r.Globals())(e)
	}
}
