package registry

import (
	"maps"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the functions and global bindings contributed by modules for
// a single application instance.
type Registry struct {
	functions map[string]function.Function
	async     map[string]fragment.AsyncFunc
	globals   map[string]cty.Value
}

// New creates a registry pre-populated with the standard function set.
func New() *Registry {
	r := &Registry{
		functions: make(map[string]function.Function),
		async:     make(map[string]fragment.AsyncFunc),
		globals:   make(map[string]cty.Value),
	}
	maps.Copy(r.functions, Stdlib())
	return r
}

// Use registers each module in order.
func (r *Registry) Use(mods ...Module) *Registry {
	for _, m := range mods {
		m.Register(r)
	}
	return r
}

// Functions returns a copy of the sync function table.
func (r *Registry) Functions() map[string]function.Function {
	return maps.Clone(r.functions)
}

// Async returns a copy of the async function table.
func (r *Registry) Async() map[string]fragment.AsyncFunc {
	return maps.Clone(r.async)
}

// Globals returns a copy of the global bindings.
func (r *Registry) Globals() map[string]cty.Value {
	return maps.Clone(r.globals)
}

// EvalContext exposes the globals and sync functions for evaluating HCL
// outside of a routine, such as handler file attributes.
func (r *Registry) EvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: r.Globals(),
		Functions: r.Functions(),
	}
}
