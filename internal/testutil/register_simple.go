package testutil

import (
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// SimpleModule is a test helper for easily creating a mock module from maps
// of functions and globals.
type SimpleModule struct {
	Functions map[string]function.Function
	Async     map[string]fragment.AsyncFunc
	Globals   map[string]cty.Value
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	for name, fn := range m.Functions {
		r.RegisterFunction(name, fn)
	}
	for name, fn := range m.Async {
		r.RegisterAsync(name, fn)
	}
	for name, v := range m.Globals {
		r.RegisterGlobal(name, v)
	}
}
