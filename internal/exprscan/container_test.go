package exprscan_test

import (
	"sync"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/exprscan"
)

// parseExpr is a test helper to quickly get an hcl.Expression from a string.
func parseExpr(t *testing.T, exprStr string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(exprStr), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "Expression parsing failed: %s", diags.Error())
	return expr
}

func TestContainer_AddAndExtract(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(
		parseExpr(t, `upper("hello")`),
		parseExpr(t, `request.foo.bar`),
		parseExpr(t, `lower(request.foo.baz)`),
		parseExpr(t, `request.foo.bar`), // Duplicate reference
	)

	require.Equal(t, []string{"lower", "upper"}, c.CalledFunctions())

	refs := c.References()
	require.Len(t, refs, 2)
	refStrings := []string{
		exprscan.TraversalKey(refs[0]),
		exprscan.TraversalKey(refs[1]),
	}
	require.Equal(t, []string{"request.foo.bar", "request.foo.baz"}, refStrings)
}

func TestContainer_AddAfterExtract(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(parseExpr(t, `first`))
	require.Len(t, c.References(), 1)

	c.Add(parseExpr(t, `second`), parseExpr(t, `my_func()`))

	require.Equal(t, []string{"my_func"}, c.CalledFunctions())
	require.Equal(t, []string{"first", "second"}, c.RootNames())
}

func TestContainer_RootNames(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(
		parseExpr(t, `request.text`),
		parseExpr(t, `self.model`),
		parseExpr(t, `prefix + suffix`),
		parseExpr(t, `[for item in items : item.name]`),
	)

	require.Equal(t, []string{"items", "prefix", "suffix"}, c.RootNames("request", "self"))
}

func TestContainer_ConcurrentAccess(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(
		parseExpr(t, `a`),
		parseExpr(t, `b`),
		parseExpr(t, `func_a()`),
	)

	var wg sync.WaitGroup
	numGoroutines := 100
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				require.Len(t, c.References(), 2)
			} else {
				require.Len(t, c.CalledFunctions(), 1)
			}
		}()
	}

	wg.Wait()
}

func TestContainer_EdgeCases(t *testing.T) {
	t.Run("Empty Container", func(t *testing.T) {
		c := exprscan.NewContainer()
		require.Empty(t, c.References())
		require.Empty(t, c.CalledFunctions())
		require.Empty(t, c.RootNames())
	})

	t.Run("Adding Nil Expressions", func(t *testing.T) {
		c := exprscan.NewContainer()
		c.Add(nil, parseExpr(t, `a`), nil)
		require.Len(t, c.References(), 1)
		require.Equal(t, "a", exprscan.TraversalKey(c.References()[0]))
	})
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{`1 + 2`, []string{}},
		{`upper(x)`, []string{"upper"}},
		{`"${format("%s", lower(x))}!"`, []string{"format", "lower"}},
		{`cond ? max(a, b) : min(a, b)`, []string{"max", "min"}},
		{`[for v in vals : length(v)]`, []string{"length"}},
		{`{ (key(x)) = jsonencode(y) }`, []string{"jsonencode", "key"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			require.Equal(t, tt.want, exprscan.Functions(parseExpr(t, tt.src)))
		})
	}
}

func TestRoots(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, exprscan.Roots(parseExpr(t, `a.x + b[0] + a.y`)))
	require.Equal(t, []string{"xs"}, exprscan.Roots(parseExpr(t, `[for i, v in xs : v if i > 0]`)))
	require.Nil(t, exprscan.Roots(nil))
}
