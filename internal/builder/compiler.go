package builder

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/agentgrid/internal/exprscan"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/graph"
)

// loopFrame holds the jump targets of the innermost enclosing loop.
type loopFrame struct {
	cont graph.Step
	brk  graph.Step
}

// compiler turns a statement tree into linked steps. Blocks are compiled back
// to front so every statement already knows its continuation.
type compiler struct {
	loops   []loopFrame
	guarded int // depth of try clauses being compiled
	barrier int // loop depth hidden behind the innermost try clause
	iters   int
	scan    *exprscan.Container
	locals  map[string]struct{}
}

func newCompiler() *compiler {
	return &compiler{scan: exprscan.NewContainer(), locals: make(map[string]struct{})}
}

func (c *compiler) block(stmts []*stmt, next graph.Step) (graph.Step, error) {
	entry := next
	for i := len(stmts) - 1; i >= 0; i-- {
		step, err := c.stmt(stmts[i], entry)
		if err != nil {
			return nil, err
		}
		entry = step
	}
	return entry, nil
}

func (c *compiler) stmt(s *stmt, next graph.Step) (graph.Step, error) {
	switch s.kind {
	case sPass:
		return next, nil

	case sAssign:
		e, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		c.bind(s.name)
		return graph.NewAction(&fragment.Assign{Name: s.name, Value: e}, next), nil

	case sExpr:
		e, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		return graph.NewAction(&fragment.Eval{Value: e}, next), nil

	case sAwaitAssign:
		call, err := c.call(s)
		if err != nil {
			return nil, err
		}
		c.bind(s.name)
		return graph.NewAction(&fragment.AwaitAssign{Name: s.name, Call: call}, next), nil

	case sAwait:
		call, err := c.call(s)
		if err != nil {
			return nil, err
		}
		return graph.NewAction(&fragment.AwaitEval{Call: call}, next), nil

	case sIf:
		cond, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		whenTrue, err := c.block(s.body, next)
		if err != nil {
			return nil, err
		}
		whenFalse, err := c.block(s.orelse, next)
		if err != nil {
			return nil, err
		}
		return graph.NewCondition(&fragment.Truthy{Value: cond}, whenTrue, whenFalse), nil

	case sWhile:
		cond, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		next = landing(next)
		head := graph.NewCondition(&fragment.Truthy{Value: cond}, nil, next)
		body, err := c.loopBody(s, head, next)
		if err != nil {
			return nil, err
		}
		head.True = body
		return head, nil

	case sFor:
		coll, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		c.iters++
		slot := fmt.Sprintf("__iter_%d__", c.iters)
		c.bind(s.name)
		if s.key != "" {
			c.bind(s.key)
		}
		next = landing(next)
		head := graph.NewCondition(&fragment.IterNext{Slot: slot, Key: s.key, Val: s.name}, nil, next)
		body, err := c.loopBody(s, head, next)
		if err != nil {
			return nil, err
		}
		head.True = body
		return graph.NewAction(&fragment.IterInit{Slot: slot, Coll: coll}, head), nil

	case sBreak, sContinue:
		kind := "break"
		if s.kind == sContinue {
			kind = "continue"
		}
		if len(c.loops) == 0 {
			if c.barrier > 0 {
				return nil, errorf(s.line, "%q cannot leave a try block", kind)
			}
			return nil, errorf(s.line, "%q outside loop", kind)
		}
		top := c.loops[len(c.loops)-1]
		if kind == "break" {
			return graph.NewJump(kind, top.brk), nil
		}
		return graph.NewJump(kind, top.cont), nil

	case sReturn:
		if c.guarded > 0 {
			return nil, errorf(s.line, "'return' inside a try block is not supported")
		}
		if s.expr == "" {
			return graph.NewReturn(nil), nil
		}
		e, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		return graph.NewReturn(e), nil

	case sYield:
		e, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		return graph.NewYield(e, next), nil

	case sRaise:
		e, err := c.expr(s, s.expr)
		if err != nil {
			return nil, err
		}
		return graph.NewAction(&fragment.Raise{Value: e}, next), nil

	case sTry:
		return c.try(s, next)

	default:
		return nil, errorf(s.line, "unknown statement")
	}
}

func (c *compiler) loopBody(s *stmt, head, exit graph.Step) (graph.Step, error) {
	c.loops = append(c.loops, loopFrame{cont: head, brk: exit})
	defer func() { c.loops = c.loops[:len(c.loops)-1] }()
	return c.block(s.body, head)
}

// try compiles each clause into its own sub-graph. Enclosing loops are hidden
// while doing so, which rejects jumps out of the guarded block.
func (c *compiler) try(s *stmt, next graph.Step) (graph.Step, error) {
	savedLoops, savedBarrier := c.loops, c.barrier
	c.barrier += len(c.loops)
	c.loops = nil
	c.guarded++
	defer func() {
		c.loops, c.barrier = savedLoops, savedBarrier
		c.guarded--
	}()

	sub := func(stmts []*stmt) (*graph.Graph, error) {
		entry, err := c.block(stmts, nil)
		if err != nil {
			return nil, err
		}
		return &graph.Graph{Entry: entry}, nil
	}

	gd := &graph.Guarded{Types: s.types, ErrName: s.errName}
	var err error
	if gd.Body, err = sub(s.body); err != nil {
		return nil, err
	}
	if s.hasHandler {
		if s.errName != "" {
			c.bind(s.errName)
		}
		if gd.Handler, err = sub(s.handler); err != nil {
			return nil, err
		}
	}
	if s.hasFinally {
		if gd.Finally, err = sub(s.finally); err != nil {
			return nil, err
		}
	}
	return graph.NewAction(gd, next), nil
}

func (c *compiler) expr(s *stmt, src string) (*fragment.Expr, error) {
	e, err := fragment.ParseExpr(translateOps(src), hcl.Pos{Line: s.line, Column: 1})
	if err != nil {
		return nil, errorf(s.line, "invalid expression %q: %v", src, err)
	}
	c.scan.Add(e.X)
	return e, nil
}

func (c *compiler) call(s *stmt) (*fragment.Call, error) {
	call, err := fragment.ParseCall(translateOps(s.expr), hcl.Pos{Line: s.line, Column: 1})
	if err != nil {
		return nil, errorf(s.line, "invalid awaited call %q: %v", s.expr, err)
	}
	for _, a := range call.Args {
		c.scan.Add(a.X)
	}
	return call, nil
}

func (c *compiler) bind(name string) {
	c.locals[name] = struct{}{}
}

// landing gives a loop a concrete exit step when its block has no
// continuation, so break always has a target.
func landing(next graph.Step) graph.Step {
	if next != nil {
		return next
	}
	return graph.NewAction(fragment.Pass{}, nil)
}
