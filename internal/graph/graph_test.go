package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/zclconf/go-cty/cty"
)

func assign(name, src string) *fragment.Assign {
	return &fragment.Assign{Name: name, Value: fragment.MustParseExpr(src)}
}

func newEnv() *fragment.Env {
	return fragment.NewEnv(fragment.Config{})
}

func TestStepIDsIncrease(t *testing.T) {
	a := NewAction(assign("x", "1"), nil)
	b := NewReturn(nil)
	c := NewJump("break", a)
	assert.Less(t, a.ID(), b.ID())
	assert.Less(t, b.ID(), c.ID())
}

func TestTraverse_Chain(t *testing.T) {
	ret := NewReturn(fragment.MustParseExpr("x + y"))
	y := NewAction(assign("y", "2"), ret)
	x := NewAction(assign("x", "1"), y)
	g := &Graph{Entry: x}

	env := newEnv()
	require.NoError(t, Traverse(context.Background(), g.Entry, env))

	v, ok := env.Return()
	require.True(t, ok)
	assert.True(t, v.RawEquals(cty.NumberIntVal(3)))
	assert.Len(t, g.Steps(), 3)
}

func TestTraverse_Condition(t *testing.T) {
	yes := NewReturn(fragment.MustParseExpr(`"pos"`))
	no := NewReturn(fragment.MustParseExpr(`"neg"`))
	cond := NewCondition(&fragment.Truthy{Value: fragment.MustParseExpr("x > 0")}, yes, no)

	for in, want := range map[int64]string{5: "pos", -1: "neg"} {
		env := newEnv()
		env.Set("x", cty.NumberIntVal(in))
		require.NoError(t, Traverse(context.Background(), cond, env))
		v, _ := env.Return()
		assert.Equal(t, want, v.AsString())
	}
}

func TestTraverse_Yield(t *testing.T) {
	ret := NewReturn(nil)
	y2 := NewYield(fragment.MustParseExpr(`"b"`), ret)
	y1 := NewYield(fragment.MustParseExpr(`"a"`), y2)

	env := newEnv()
	require.NoError(t, Traverse(context.Background(), y1, env))
	require.Len(t, env.Yields(), 2)
	assert.Equal(t, "a", env.Yields()[0].AsString())

	v, ok := env.Return()
	require.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestJumpWithoutTarget(t *testing.T) {
	_, err := NewJump("break", nil).Execute(context.Background(), newEnv())
	var se *fragment.StepEvaluationError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrNoJumpTarget)
}

func TestActionWithoutInstr(t *testing.T) {
	_, err := NewAction(nil, nil).Execute(context.Background(), newEnv())
	assert.ErrorIs(t, err, fragment.ErrEmptyFragment)
}

func TestTraverse_StopsOnCancel(t *testing.T) {
	// x = x + 1 forever
	loop := NewAction(assign("x", "x + 1"), nil)
	loop.Next = loop

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := newEnv()
	env.Set("x", cty.Zero)
	err := Traverse(ctx, loop, env)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestString(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "Graph(<empty>)", (&Graph{}).String())
		var g *Graph
		assert.Equal(t, "Graph(<empty>)", g.String())
	})

	t.Run("edges", func(t *testing.T) {
		ret := NewReturn(fragment.MustParseExpr("x + y"))
		bare := NewReturn(nil)
		jump := NewJump("break", ret)
		cond := NewCondition(&fragment.Truthy{Value: fragment.MustParseExpr("x > 0")}, jump, bare)
		act := NewAction(assign("x", "1"), cond)
		s := (&Graph{Entry: act}).String()

		assert.True(t, strings.HasPrefix(s, "Graph:\n"))
		assert.Contains(t, s, "ActionStep")
		assert.Contains(t, s, "(x = 1) --next--> "+Label(cond))
		assert.Contains(t, s, "--true--> "+Label(jump))
		assert.Contains(t, s, "--false--> "+Label(bare))
		assert.Contains(t, s, "--target--> "+Label(ret))
		assert.Contains(t, s, "(returns: x + y)")
		assert.Contains(t, s, "(returns: None)")
	})

	t.Run("exit and cycles", func(t *testing.T) {
		a := NewAction(assign("x", "1"), nil)
		b := NewAction(assign("x", "x + 1"), a)
		single := (&Graph{Entry: NewAction(assign("z", "0"), nil)}).String()
		assert.Contains(t, single, "--next--> <exit>")

		a.Next = b
		s := (&Graph{Entry: a}).String()
		assert.Contains(t, s, "x = 1")
		assert.Contains(t, s, "x = x + 1")
		assert.Equal(t, 3, strings.Count(s, "\n"))
	})
}

func TestGuarded(t *testing.T) {
	raise := &fragment.Raise{Value: fragment.MustParseExpr(`"boom"`)}

	t.Run("handler catches and binds message", func(t *testing.T) {
		gd := &Guarded{
			Body:    &Graph{Entry: NewAction(raise, nil)},
			Handler: &Graph{Entry: NewAction(assign("caught", "err"), nil)},
			Finally: &Graph{Entry: NewAction(assign("cleaned", "true"), nil)},
			ErrName: "err",
		}
		env := newEnv()
		require.NoError(t, gd.Exec(context.Background(), env))

		v, ok := env.Get("caught")
		require.True(t, ok)
		assert.Equal(t, "boom", v.AsString())
		assert.True(t, env.Has("cleaned"))
		assert.Equal(t, "try/except as err/finally", gd.String())
	})

	t.Run("finally without handler re-raises", func(t *testing.T) {
		gd := &Guarded{
			Body:    &Graph{Entry: NewAction(raise, nil)},
			Finally: &Graph{Entry: NewAction(assign("cleaned", "true"), nil)},
		}
		env := newEnv()
		err := gd.Exec(context.Background(), env)
		var r *fragment.Raised
		require.True(t, errors.As(err, &r))
		assert.True(t, env.Has("cleaned"))
	})

	t.Run("rendered inside the graph", func(t *testing.T) {
		gd := &Guarded{
			Body:    &Graph{Entry: NewAction(assign("a", "1"), nil)},
			Handler: &Graph{},
			Types:   []string{"ValueError"},
		}
		s := (&Graph{Entry: NewAction(gd, nil)}).String()
		assert.Contains(t, s, "(try/except ValueError)")
		assert.Contains(t, s, "try:\n")
		assert.Contains(t, s, "<empty>")
	})
}
