package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

type testModule struct{}

func (testModule) Register(r *Registry) {
	r.RegisterAsync("fetch", func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		return cty.StringVal("ok"), nil
	})
	r.RegisterGlobal("region", cty.StringVal("eu"))
}

func TestRegistry_Use(t *testing.T) {
	r := New().Use(testModule{})

	assert.Contains(t, r.Functions(), "upper")
	assert.Contains(t, r.Async(), "fetch")
	assert.Equal(t, "eu", r.Globals()["region"].AsString())
	require.NoError(t, r.Validate(context.Background()))

	ec := r.EvalContext()
	assert.Contains(t, ec.Functions, "format")
	assert.Contains(t, ec.Variables, "region")
}

func TestRegistry_CopiesAreIndependent(t *testing.T) {
	r := New()
	fns := r.Functions()
	delete(fns, "upper")
	assert.Contains(t, r.Functions(), "upper")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New().Use(testModule{})
	assert.Panics(t, func() { r.RegisterAsync("fetch", nil) })
	assert.Panics(t, func() { r.RegisterGlobal("region", cty.True) })
	assert.Panics(t, func() { r.RegisterFunction("fetch", stdlib.UpperFunc) })

	r.RegisterFunction("shout", stdlib.UpperFunc)
	assert.Panics(t, func() { r.RegisterFunction("shout", stdlib.LowerFunc) })
}

func TestRegistry_AsyncReplacesStdlibName(t *testing.T) {
	r := New()
	r.RegisterAsync("format", func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		return cty.NullVal(cty.DynamicPseudoType), nil
	})
	assert.NotContains(t, r.Functions(), "format")
	require.NoError(t, r.Validate(context.Background()))
}

func TestRegistry_Validate(t *testing.T) {
	r := New()
	r.RegisterGlobal("None", cty.True)
	r.RegisterGlobal("bad name", cty.True)
	r.RegisterGlobal("__hidden", cty.True)
	r.async["upper"] = fragment.AsyncFunc(nil)

	err := r.Validate(context.Background())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "global 'None': shadows a built-in name")
	assert.Contains(t, msg, "global 'bad name': not a valid identifier")
	assert.Contains(t, msg, "global '__hidden': reserved name")
	assert.Contains(t, msg, "async function 'upper': also registered as a sync function")
}
