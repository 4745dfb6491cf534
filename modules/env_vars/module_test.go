package env_vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

func TestSnapshot(t *testing.T) {
	t.Setenv("AGENTGRID_TEST_ONE", "1")
	t.Setenv("AGENTGRID_TEST_TWO", "2")

	env := (&Module{Prefix: "AGENTGRID_TEST_"}).Snapshot()
	assert.Equal(t, cty.ObjectVal(map[string]cty.Value{
		"AGENTGRID_TEST_ONE": cty.StringVal("1"),
		"AGENTGRID_TEST_TWO": cty.StringVal("2"),
	}), env)

	empty := (&Module{Prefix: "AGENTGRID_NO_SUCH_PREFIX_"}).Snapshot()
	assert.Equal(t, cty.EmptyObjectVal, empty)
}

func TestGetenv(t *testing.T) {
	t.Setenv("AGENTGRID_TEST_MODEL", "small")

	v, err := Getenv.Call([]cty.Value{cty.StringVal("AGENTGRID_TEST_MODEL")})
	require.NoError(t, err)
	assert.Equal(t, "small", v.AsString())

	v, err = Getenv.Call([]cty.Value{cty.StringVal("AGENTGRID_TEST_UNSET"), cty.StringVal("fallback")})
	require.NoError(t, err)
	assert.Equal(t, "fallback", v.AsString())

	v, err = Getenv.Call([]cty.Value{cty.StringVal("AGENTGRID_TEST_UNSET")})
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = Getenv.Call([]cty.Value{cty.StringVal("A"), cty.StringVal("b"), cty.StringVal("c")})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	r := registry.New().Use(&Module{})
	assert.Contains(t, r.Functions(), "getenv")
	assert.Contains(t, r.Globals(), "env")
}
