package fragment

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/exprscan"
	"github.com/zclconf/go-cty/cty"
)

// Expr is a compiled HCL native-syntax expression.
type Expr struct {
	Src   string
	X     hclsyntax.Expression
	Funcs []string
}

// ParseExpr compiles src. pos is the position of src inside the routine and
// only affects diagnostics.
func ParseExpr(src string, pos hcl.Pos) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrEmptyFragment
	}
	x, diags := hclsyntax.ParseExpression([]byte(src), "routine", pos)
	if diags.HasErrors() {
		return nil, diags
	}
	return &Expr{Src: src, X: x, Funcs: exprscan.Functions(x)}, nil
}

// MustParseExpr is ParseExpr for sources known to be valid.
func MustParseExpr(src string) *Expr {
	e, err := ParseExpr(src, hcl.InitialPos)
	if err != nil {
		panic(fmt.Sprintf("fragment: invalid expression %q: %v", src, err))
	}
	return e
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.Src
}

// Roots returns the root names the expression references.
func (e *Expr) Roots() []string {
	if e == nil {
		return nil
	}
	return exprscan.Roots(e.X)
}

// Eval evaluates the expression against env. Every referenced root name and
// every called function must be bound, otherwise a *BindingError is returned.
func (e *Expr) Eval(env *Env) (cty.Value, error) {
	if e == nil || e.X == nil {
		return cty.NilVal, &StepEvaluationError{Err: ErrEmptyFragment}
	}
	for _, t := range e.X.Variables() {
		if root := t.RootName(); !env.Has(root) {
			return cty.NilVal, &BindingError{Name: root, Src: e.Src}
		}
	}
	for _, fn := range e.Funcs {
		if _, ok := env.funcs[fn]; !ok {
			return cty.NilVal, &BindingError{Name: fn, Function: true, Src: e.Src}
		}
	}
	v, diags := e.X.Value(env.eval)
	if diags.HasErrors() {
		return cty.NilVal, &StepEvaluationError{Src: e.Src, Err: diags}
	}
	return v, nil
}

// Call is an awaited call: "name(args...)".
type Call struct {
	Src  string
	Name string
	Args []*Expr
}

// ParseCall compiles src, which must be a single function call expression.
func ParseCall(src string, pos hcl.Pos) (*Call, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrEmptyFragment
	}
	x, diags := hclsyntax.ParseExpression([]byte(src), "routine", pos)
	if diags.HasErrors() {
		return nil, diags
	}
	fc, ok := x.(*hclsyntax.FunctionCallExpr)
	if !ok {
		return nil, fmt.Errorf("await requires a function call, got %q", src)
	}
	if fc.ExpandFinal {
		return nil, fmt.Errorf("argument expansion is not supported in awaited calls: %q", src)
	}
	c := &Call{Src: src, Name: fc.Name}
	for _, arg := range fc.Args {
		r := arg.Range()
		argSrc := src[r.Start.Byte-pos.Byte : r.End.Byte-pos.Byte]
		c.Args = append(c.Args, &Expr{Src: argSrc, X: arg, Funcs: exprscan.Functions(arg)})
	}
	return c, nil
}

func (c *Call) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Src
}

// Roots returns the root names referenced by the call's arguments.
func (c *Call) Roots() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range c.Args {
		for _, r := range a.Roots() {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				out = append(out, r)
			}
		}
	}
	return out
}

// prepare resolves the callee and evaluates the arguments. The returned work
// performs the call; its value is always a cty.Value.
func (c *Call) prepare(env *Env) (func(ctx context.Context) (any, error), error) {
	if c == nil || c.Name == "" {
		return nil, &StepEvaluationError{Err: ErrEmptyFragment}
	}
	async, isAsync := env.async[c.Name]
	syncFn, isSync := env.funcs[c.Name]
	if !isAsync && !isSync {
		return nil, &BindingError{Name: c.Name, Function: true, Src: c.Src}
	}
	args := make([]cty.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := a.Eval(env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if isAsync {
		return func(ctx context.Context) (any, error) {
			return async(ctx, args)
		}, nil
	}
	return func(context.Context) (any, error) {
		return syncFn.Call(args)
	}, nil
}

// Invoke performs the call and blocks until it resolves. With a task
// submitter the call is queued at the environment's priority.
func (c *Call) Invoke(ctx context.Context, env *Env) (cty.Value, error) {
	work, err := c.prepare(env)
	if err != nil {
		return cty.NilVal, err
	}
	var res any
	if env.tasks == nil {
		res, err = work(ctx)
	} else {
		f := env.tasks.Submit(work, env.priority)
		res, err = f.Wait(ctx)
		if err != nil && ctx.Err() != nil {
			f.Cancel()
		}
	}
	if err != nil {
		return cty.NilVal, c.fail(err)
	}
	return asValue(res), nil
}

func (c *Call) fail(err error) error {
	return wrap(c.Src, err)
}

func asValue(res any) cty.Value {
	v, ok := res.(cty.Value)
	if !ok || v == cty.NilVal {
		return ctyconv.Null
	}
	return v
}
