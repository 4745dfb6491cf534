package fragment

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Instr is an instruction carried by an action step.
type Instr interface {
	Exec(ctx context.Context, env *Env) error
	String() string
}

// Test is the predicate carried by a condition step.
type Test interface {
	Eval(ctx context.Context, env *Env) (bool, error)
	String() string
}

// Assign binds Name to the value of an expression.
type Assign struct {
	Name  string
	Value *Expr
}

func (a *Assign) Exec(_ context.Context, env *Env) error {
	v, err := a.Value.Eval(env)
	if err != nil {
		return err
	}
	env.Set(a.Name, v)
	return nil
}

func (a *Assign) String() string { return a.Name + " = " + a.Value.String() }

// Eval evaluates an expression for its side effects.
type Eval struct {
	Value *Expr
}

func (e *Eval) Exec(_ context.Context, env *Env) error {
	_, err := e.Value.Eval(env)
	return err
}

func (e *Eval) String() string { return e.Value.String() }

// AwaitAssign binds Name to the result of an awaited call.
type AwaitAssign struct {
	Name string
	Call *Call
}

func (a *AwaitAssign) Exec(ctx context.Context, env *Env) error {
	v, err := a.Call.Invoke(ctx, env)
	if err != nil {
		return err
	}
	env.Set(a.Name, v)
	return nil
}

func (a *AwaitAssign) String() string { return a.Name + " = await " + a.Call.String() }

// AwaitEval awaits a call and discards its result.
type AwaitEval struct {
	Call *Call
}

func (a *AwaitEval) Exec(ctx context.Context, env *Env) error {
	_, err := a.Call.Invoke(ctx, env)
	return err
}

func (a *AwaitEval) String() string { return "await " + a.Call.String() }

// Gather issues all calls concurrently, waits for every one of them, then
// binds Names[i] to the result of Calls[i] in order. If any call fails the
// others are cancelled and nothing is bound.
type Gather struct {
	Names []string
	Calls []*Call
}

func (g *Gather) Exec(ctx context.Context, env *Env) error {
	if len(g.Names) != len(g.Calls) || len(g.Calls) == 0 {
		return &StepEvaluationError{Src: g.String(), Err: ErrEmptyFragment}
	}
	works := make([]func(context.Context) (any, error), len(g.Calls))
	for i, c := range g.Calls {
		w, err := c.prepare(env)
		if err != nil {
			return err
		}
		works[i] = w
	}

	results := make([]cty.Value, len(works))
	grp, gctx := errgroup.WithContext(ctx)
	for i, w := range works {
		call := g.Calls[i]
		if env.tasks == nil {
			grp.Go(func() error {
				res, err := w(gctx)
				if err != nil {
					return call.fail(err)
				}
				results[i] = asValue(res)
				return nil
			})
			continue
		}
		f := env.tasks.Submit(w, env.priority)
		grp.Go(func() error {
			res, err := f.Wait(gctx)
			if err != nil {
				f.Cancel()
				return call.fail(err)
			}
			results[i] = asValue(res)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	for i, name := range g.Names {
		env.Set(name, results[i])
	}
	return nil
}

func (g *Gather) String() string {
	calls := make([]string, len(g.Calls))
	for i, c := range g.Calls {
		calls[i] = c.String()
	}
	return fmt.Sprintf("%s = await gather(%s)", strings.Join(g.Names, ", "), strings.Join(calls, ", "))
}

// Raise fails the current input with the value of an expression.
type Raise struct {
	Value *Expr
}

func (r *Raise) Exec(_ context.Context, env *Env) error {
	v, err := r.Value.Eval(env)
	if err != nil {
		return err
	}
	return &StepEvaluationError{Src: r.String(), Err: &Raised{Value: v}}
}

func (r *Raise) String() string { return "raise " + r.Value.String() }

// Truthy tests the truthiness of an expression.
type Truthy struct {
	Value *Expr
}

func (t *Truthy) Eval(_ context.Context, env *Env) (bool, error) {
	v, err := t.Value.Eval(env)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

func (t *Truthy) String() string { return t.Value.String() }

// IsTruthy reports whether v counts as true in a condition: null, false, zero,
// the empty string and empty collections are false.
func IsTruthy(v cty.Value) bool {
	v, _ = v.UnmarkDeep()
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return v.True()
	case ty == cty.Number:
		return v.AsBigFloat().Sign() != 0
	case ty == cty.String:
		return v.AsString() != ""
	case ty.IsObjectType():
		return len(ty.AttributeTypes()) > 0
	case ty.IsCollectionType() || ty.IsTupleType():
		return v.LengthInt() > 0
	default:
		return true
	}
}
