package fragment

import (
	"context"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/task"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// ReturnSlot is the reserved environment name a return step writes into.
const ReturnSlot = "__return__"

// AsyncFunc is an asynchronous callable reachable from "await name(args)".
type AsyncFunc func(ctx context.Context, args []cty.Value) (cty.Value, error)

// Submitter accepts work for asynchronous execution. *task.Executor satisfies it.
type Submitter interface {
	Submit(work task.Work, priority int) *task.Future
}

// Config carries what an Env is created with.
type Config struct {
	Functions map[string]function.Function
	Async     map[string]AsyncFunc
	Tasks     Submitter
	Priority  int
	// OnYield, when set, observes each yielded value as it is produced.
	OnYield func(cty.Value)
}

// Env is the per-execution binding environment. It is not safe for concurrent
// use; one traversal owns it.
type Env struct {
	vars     map[string]cty.Value
	iters    map[string]*iterator
	funcs    map[string]function.Function
	async    map[string]AsyncFunc
	tasks    Submitter
	priority int
	onYield  func(cty.Value)
	yields   []cty.Value
	eval     *hcl.EvalContext
}

// NewEnv creates an empty environment.
func NewEnv(cfg Config) *Env {
	vars := make(map[string]cty.Value)
	funcs := cfg.Functions
	if funcs == nil {
		funcs = map[string]function.Function{}
	}
	async := cfg.Async
	if async == nil {
		async = map[string]AsyncFunc{}
	}
	priority := cfg.Priority
	if priority == 0 {
		priority = task.DefaultPriority
	}
	return &Env{
		vars:     vars,
		iters:    make(map[string]*iterator),
		funcs:    funcs,
		async:    async,
		tasks:    cfg.Tasks,
		priority: priority,
		onYield:  cfg.OnYield,
		eval:     &hcl.EvalContext{Variables: vars, Functions: funcs},
	}
}

// Get returns the value bound to name.
func (e *Env) Get(name string) (cty.Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Has reports whether name is bound.
func (e *Env) Has(name string) bool {
	_, ok := e.vars[name]
	return ok
}

// Set binds name to v, replacing any previous binding.
func (e *Env) Set(name string, v cty.Value) {
	if v == cty.NilVal {
		v = ctyconv.Null
	}
	e.vars[name] = v
}

// SetIfAbsent binds name only when it is not yet bound and reports whether it did.
func (e *Env) SetIfAbsent(name string, v cty.Value) bool {
	if e.Has(name) {
		return false
	}
	e.Set(name, v)
	return true
}

// Names returns the bound names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Yield appends v to the output sequence and notifies the yield observer.
func (e *Env) Yield(v cty.Value) {
	e.yields = append(e.yields, v)
	if e.onYield != nil {
		e.onYield(v)
	}
}

// Yields returns the values yielded so far, in order.
func (e *Env) Yields() []cty.Value {
	return e.yields
}

// SetReturn stores the routine's return value in the reserved slot.
func (e *Env) SetReturn(v cty.Value) {
	e.Set(ReturnSlot, v)
}

// Return returns the value stored by a return step, if any.
func (e *Env) Return() (cty.Value, bool) {
	return e.Get(ReturnSlot)
}

// Builtins returns the names every environment is seeded with first.
func Builtins() map[string]cty.Value {
	return map[string]cty.Value{
		"True":  cty.True,
		"False": cty.False,
		"None":  ctyconv.Null,
	}
}
