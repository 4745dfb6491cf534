package handler

import (
	"fmt"

	"github.com/vk/agentgrid/internal/builder"
	"github.com/vk/agentgrid/internal/graph"
	"github.com/zclconf/go-cty/cty"
)

// Module is a handler defined in a handler file: a named forward routine with
// its attributes and captured scope.
type Module struct {
	Name     string
	Param    string
	Priority int
	Attrs    map[string]cty.Value
	Vars     map[string]cty.Value
	Forward  string
	// File is the handler file the module was loaded from, if any.
	File string
}

// Attributes implements Instance.
func (m *Module) Attributes() map[string]cty.Value { return m.Attrs }

// Scope implements Scoped.
func (m *Module) Scope() map[string]cty.Value { return m.Vars }

// Routine implements Router.
func (m *Module) Routine() Routine {
	return Routine{Source: m.Forward, Param: m.Param}
}

// Compile builds the module's forward routine into a graph.
func (m *Module) Compile() (*graph.Graph, error) {
	return Compile(m)
}

// Compile builds the routine of r. The returned error wraps a
// *builder.BuildError.
func Compile(r Router) (*graph.Graph, error) {
	rt := r.Routine()
	var opts []builder.Option
	if rt.Param != "" {
		opts = append(opts, builder.WithParam(rt.Param))
	}
	g, err := builder.Build(rt.Source, opts...)
	if err != nil {
		if m, ok := r.(*Module); ok {
			return nil, fmt.Errorf("handler %q: %w", m.Name, err)
		}
		return nil, err
	}
	return g, nil
}
