package executor

import (
	"context"
	"maps"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/graph"
	"github.com/vk/agentgrid/internal/handler"
	"github.com/vk/agentgrid/internal/optimizer"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Result is the outcome of one input.
type Result struct {
	Index  int
	Return cty.Value
	Yields []cty.Value
	Err    error
}

// Output is the tuple of yielded values when any were yielded, otherwise the
// return value.
func (r Result) Output() cty.Value {
	if len(r.Yields) > 0 {
		return cty.TupleVal(r.Yields)
	}
	if r.Return == cty.NilVal {
		return ctyconv.Null
	}
	return r.Return
}

// Executor runs one compiled graph. It is safe for concurrent use; every
// input gets its own environment.
type Executor struct {
	graph    *graph.Graph
	instance handler.Instance

	globals  map[string]cty.Value
	funcs    map[string]function.Function
	async    map[string]fragment.AsyncFunc
	tasks    fragment.Submitter
	priority int

	// Seeded once from the instance; read-only afterwards.
	attrs    map[string]cty.Value
	self     cty.Value
	captured map[string]cty.Value
}

// New creates an executor for g. The graph is optimized here; instance may be
// nil.
func New(g *graph.Graph, instance handler.Instance, opts ...Option) *Executor {
	e := &Executor{
		graph:    optimizer.Optimize(g),
		instance: instance,
		globals:  make(map[string]cty.Value),
		funcs:    registry.Stdlib(),
		async:    make(map[string]fragment.AsyncFunc),
	}
	for _, opt := range opts {
		opt(e)
	}

	if instance != nil {
		e.attrs = maps.Clone(instance.Attributes())
		e.self = handler.SelfValue(e.attrs)
	}
	e.captured = make(map[string]cty.Value)
	if scoped, ok := instance.(handler.Scoped); ok {
		scope := scoped.Scope()
		for _, name := range e.graph.Captures {
			if v, ok := scope[name]; ok {
				e.captured[name] = v
			}
		}
	}
	return e
}

// Graph returns the optimized graph the executor runs.
func (e *Executor) Graph() *graph.Graph {
	return e.graph
}

// Run executes every input in order and returns one result per input. A
// failing input does not affect the others.
func (e *Executor) Run(ctx context.Context, inputs []cty.Value) []Result {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running graph.", "inputs", len(inputs))

	results := make([]Result, len(inputs))
	for i, input := range inputs {
		results[i] = e.execute(ctx, i, input, nil)
	}
	return results
}

// RunOne executes a single input.
func (e *Executor) RunOne(ctx context.Context, input cty.Value) Result {
	return e.execute(ctx, 0, input, nil)
}

func (e *Executor) execute(ctx context.Context, index int, input cty.Value, onYield func(cty.Value)) Result {
	ctx, logger := ctxlog.With(ctx, "input", index)

	env := e.newEnv(input, onYield)
	res := Result{Index: index}
	err := graph.Traverse(ctx, e.graph.Entry, env)
	res.Yields = env.Yields()
	if err != nil {
		logger.Debug("Input failed.", "error", err)
		res.Err = err
		return res
	}

	if v, ok := env.Return(); ok {
		res.Return = v
	} else {
		res.Return = ctyconv.Null
	}
	logger.Debug("Input finished.", "yields", len(res.Yields))
	return res
}

// newEnv seeds a fresh environment: built-ins, globals, handler attributes
// (without overwriting) and self, captured names, then the input.
func (e *Executor) newEnv(input cty.Value, onYield func(cty.Value)) *fragment.Env {
	env := fragment.NewEnv(fragment.Config{
		Functions: e.funcs,
		Async:     e.async,
		Tasks:     e.tasks,
		Priority:  e.priority,
		OnYield:   onYield,
	})
	for name, v := range fragment.Builtins() {
		env.Set(name, v)
	}
	for name, v := range e.globals {
		env.Set(name, v)
	}
	if e.instance != nil {
		for name, v := range e.attrs {
			env.SetIfAbsent(name, v)
		}
		env.Set("self", e.self)
	}
	for name, v := range e.captured {
		env.Set(name, v)
	}
	env.Set(e.graph.Param, input)
	return env
}
