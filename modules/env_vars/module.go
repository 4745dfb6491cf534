// Package env_vars exposes the process environment to routines: the global
// "env" object holds every variable, and "getenv(name, default)" reads one.
package env_vars

import (
	"os"
	"strings"

	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Prefix, when set, limits the "env" global to variables starting with it.
	Prefix string
}

// Register registers the "env" global and the "getenv" function.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterGlobal("env", m.Snapshot())
	r.RegisterFunction("getenv", Getenv)
}

// Snapshot returns the current environment as an object.
func (m *Module) Snapshot() cty.Value {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], m.Prefix) {
			continue
		}
		vars[pair[0]] = cty.StringVal(pair[1])
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}

// Getenv reads a variable at call time. An unset variable yields the optional
// default, or null.
var Getenv = function.New(&function.Spec{
	Description: "Returns the value of an environment variable.",
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	VarParam: &function.Parameter{
		Name: "default",
		Type: cty.String,
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		if len(args) > 2 {
			return cty.NilVal, function.NewArgErrorf(2, "getenv takes at most one default")
		}
		if v, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(v), nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return cty.NullVal(cty.String), nil
	},
})
