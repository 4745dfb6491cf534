package handler

import (
	"github.com/zclconf/go-cty/cty"
)

// Instance is a handler whose attributes are visible to its routine, both as
// plain names and through "self".
type Instance interface {
	Attributes() map[string]cty.Value
}

// Scoped is implemented by handlers that carry the bindings their routine
// captures from its defining scope.
type Scoped interface {
	Scope() map[string]cty.Value
}

// Routine is the source of a handler's forward routine.
type Routine struct {
	Source string
	// Param overrides the parameter name taken from the routine header.
	Param string
}

// Router is implemented by handlers that carry their own routine source.
type Router interface {
	Routine() Routine
}

// Static is an Instance backed by fixed maps. It is handy for handlers defined
// in Go rather than in handler files.
type Static struct {
	Attrs map[string]cty.Value
	Vars  map[string]cty.Value
}

// Attributes implements Instance.
func (s *Static) Attributes() map[string]cty.Value { return s.Attrs }

// Scope implements Scoped.
func (s *Static) Scope() map[string]cty.Value { return s.Vars }

// SelfValue builds the object bound to "self" from a handler's attributes.
func SelfValue(attrs map[string]cty.Value) cty.Value {
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}
