package registry

import (
	"fmt"
	"log/slog"

	"github.com/vk/agentgrid/internal/fragment"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// RegisterFunction registers a synchronous function callable from routine
// expressions. Registering over a standard function replaces it.
func (r *Registry) RegisterFunction(name string, fn function.Function) {
	if _, exists := r.async[name]; exists {
		panic(fmt.Sprintf("function '%s' already registered as async", name))
	}
	if _, exists := r.functions[name]; exists && !isStdlib(name) {
		panic(fmt.Sprintf("function '%s' already registered", name))
	}
	slog.Debug("Registering function.", "name", name)
	r.functions[name] = fn
}

// RegisterAsync registers a function that is reached through await.
func (r *Registry) RegisterAsync(name string, fn fragment.AsyncFunc) {
	if _, exists := r.async[name]; exists {
		panic(fmt.Sprintf("async function '%s' already registered", name))
	}
	if _, exists := r.functions[name]; exists && !isStdlib(name) {
		panic(fmt.Sprintf("function '%s' already registered as sync", name))
	}
	slog.Debug("Registering async function.", "name", name)
	delete(r.functions, name)
	r.async[name] = fn
}

// RegisterGlobal binds a value visible to every routine.
func (r *Registry) RegisterGlobal(name string, v cty.Value) {
	if _, exists := r.globals[name]; exists {
		panic(fmt.Sprintf("global '%s' already registered", name))
	}
	slog.Debug("Registering global.", "name", name)
	r.globals[name] = v
}

// Stdlib returns the standard function set every registry starts with.
func Stdlib() map[string]function.Function {
	return map[string]function.Function{
		"abs":        stdlib.AbsoluteFunc,
		"ceil":       stdlib.CeilFunc,
		"chomp":      stdlib.ChompFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"concat":     stdlib.ConcatFunc,
		"contains":   stdlib.ContainsFunc,
		"distinct":   stdlib.DistinctFunc,
		"element":    stdlib.ElementFunc,
		"flatten":    stdlib.FlattenFunc,
		"floor":      stdlib.FloorFunc,
		"format":     stdlib.FormatFunc,
		"formatlist": stdlib.FormatListFunc,
		"int":        stdlib.IntFunc,
		"join":       stdlib.JoinFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"keys":       stdlib.KeysFunc,
		"len":        stdlib.LengthFunc,
		"length":     stdlib.LengthFunc,
		"lower":      stdlib.LowerFunc,
		"max":        stdlib.MaxFunc,
		"merge":      stdlib.MergeFunc,
		"min":        stdlib.MinFunc,
		"range":      stdlib.RangeFunc,
		"regex":      stdlib.RegexFunc,
		"replace":    stdlib.ReplaceFunc,
		"reverse":    stdlib.ReverseListFunc,
		"slice":      stdlib.SliceFunc,
		"sort":       stdlib.SortFunc,
		"split":      stdlib.SplitFunc,
		"strlen":     stdlib.StrlenFunc,
		"substr":     stdlib.SubstrFunc,
		"title":      stdlib.TitleFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"upper":      stdlib.UpperFunc,
		"values":     stdlib.ValuesFunc,
		"zipmap":     stdlib.ZipmapFunc,
	}
}

var stdlibNames = func() map[string]struct{} {
	out := make(map[string]struct{})
	for name := range Stdlib() {
		out[name] = struct{}{}
	}
	return out
}()

func isStdlib(name string) bool {
	_, ok := stdlibNames[name]
	return ok
}
