package graph

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/fragment"
)

// ErrNoJumpTarget is the cause reported when a jump step was never linked.
var ErrNoJumpTarget = errors.New("jump step has no target")

// Step is one node of a Step Graph. Execute runs the step against env and
// returns the step that receives control next, or nil to end traversal.
type Step interface {
	ID() uint64
	Execute(ctx context.Context, env *fragment.Env) (Step, error)
	Successors() []Step
}

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}

type stepID uint64

func (id stepID) ID() uint64 { return uint64(id) }

// ActionStep runs one instruction and continues to Next. A nil Next ends the
// traversal.
type ActionStep struct {
	stepID
	Instr fragment.Instr
	Next  Step
}

// NewAction creates an action step with a fresh ID.
func NewAction(instr fragment.Instr, next Step) *ActionStep {
	return &ActionStep{stepID: stepID(nextID()), Instr: instr, Next: next}
}

func (s *ActionStep) Execute(ctx context.Context, env *fragment.Env) (Step, error) {
	if s.Instr == nil {
		return nil, &fragment.StepEvaluationError{Err: fragment.ErrEmptyFragment}
	}
	if err := s.Instr.Exec(ctx, env); err != nil {
		return nil, fragment.Wrap(s.Instr.String(), err)
	}
	return s.Next, nil
}

func (s *ActionStep) Successors() []Step {
	if s.Next == nil {
		return nil
	}
	return []Step{s.Next}
}

// ConditionStep chooses between True and False by evaluating Test.
type ConditionStep struct {
	stepID
	Test  fragment.Test
	True  Step
	False Step
}

// NewCondition creates a condition step with a fresh ID. Branches may be
// linked after construction.
func NewCondition(test fragment.Test, whenTrue, whenFalse Step) *ConditionStep {
	return &ConditionStep{stepID: stepID(nextID()), Test: test, True: whenTrue, False: whenFalse}
}

func (s *ConditionStep) Execute(ctx context.Context, env *fragment.Env) (Step, error) {
	if s.Test == nil {
		return nil, &fragment.StepEvaluationError{Err: fragment.ErrEmptyFragment}
	}
	ok, err := s.Test.Eval(ctx, env)
	if err != nil {
		return nil, fragment.Wrap(s.Test.String(), err)
	}
	if ok {
		return s.True, nil
	}
	return s.False, nil
}

func (s *ConditionStep) Successors() []Step {
	var out []Step
	if s.True != nil {
		out = append(out, s.True)
	}
	if s.False != nil {
		out = append(out, s.False)
	}
	return out
}

// JumpStep transfers control to Target unconditionally. Kind is "break" or
// "continue" and only affects rendering.
type JumpStep struct {
	stepID
	Kind   string
	Target Step
}

// NewJump creates a jump step with a fresh ID.
func NewJump(kind string, target Step) *JumpStep {
	return &JumpStep{stepID: stepID(nextID()), Kind: kind, Target: target}
}

func (s *JumpStep) Execute(context.Context, *fragment.Env) (Step, error) {
	if s.Target == nil {
		return nil, &fragment.StepEvaluationError{Src: s.Kind, Err: ErrNoJumpTarget}
	}
	return s.Target, nil
}

func (s *JumpStep) Successors() []Step {
	if s.Target == nil {
		return nil
	}
	return []Step{s.Target}
}

// ReturnStep stores its value (null when Value is nil) in the reserved return
// slot and ends traversal.
type ReturnStep struct {
	stepID
	Value *fragment.Expr
}

// NewReturn creates a return step with a fresh ID.
func NewReturn(value *fragment.Expr) *ReturnStep {
	return &ReturnStep{stepID: stepID(nextID()), Value: value}
}

func (s *ReturnStep) Execute(_ context.Context, env *fragment.Env) (Step, error) {
	v := ctyconv.Null
	if s.Value != nil {
		var err error
		if v, err = s.Value.Eval(env); err != nil {
			return nil, err
		}
	}
	env.SetReturn(v)
	return nil, nil
}

func (s *ReturnStep) Successors() []Step { return nil }

// YieldStep appends its value to the execution's output sequence and
// continues to Next.
type YieldStep struct {
	stepID
	Value *fragment.Expr
	Next  Step
}

// NewYield creates a yield step with a fresh ID.
func NewYield(value *fragment.Expr, next Step) *YieldStep {
	return &YieldStep{stepID: stepID(nextID()), Value: value, Next: next}
}

func (s *YieldStep) Execute(_ context.Context, env *fragment.Env) (Step, error) {
	v := ctyconv.Null
	if s.Value != nil {
		var err error
		if v, err = s.Value.Eval(env); err != nil {
			return nil, err
		}
	}
	env.Yield(v)
	return s.Next, nil
}

func (s *YieldStep) Successors() []Step {
	if s.Next == nil {
		return nil
	}
	return []Step{s.Next}
}

// Label is the short name of a step used in renderings, e.g. "ActionStep<4>".
func Label(s Step) string {
	switch s := s.(type) {
	case nil:
		return "<exit>"
	case *ActionStep:
		return fmt.Sprintf("ActionStep<%d>", s.ID())
	case *ConditionStep:
		return fmt.Sprintf("ConditionStep<%d>", s.ID())
	case *JumpStep:
		return fmt.Sprintf("JumpStep<%d>", s.ID())
	case *ReturnStep:
		return fmt.Sprintf("ReturnStep<%d>", s.ID())
	case *YieldStep:
		return fmt.Sprintf("YieldStep<%d>", s.ID())
	default:
		return fmt.Sprintf("%T<%d>", s, s.ID())
	}
}

// describe renders one step with its outgoing edges.
func describe(s Step) string {
	switch s := s.(type) {
	case *ActionStep:
		return fmt.Sprintf("%s(%s) --next--> %s", Label(s), instrString(s.Instr), Label(s.Next))
	case *ConditionStep:
		test := "<nil>"
		if s.Test != nil {
			test = s.Test.String()
		}
		return fmt.Sprintf("%s(%s) --true--> %s --false--> %s", Label(s), test, Label(s.True), Label(s.False))
	case *JumpStep:
		return fmt.Sprintf("%s(%s) --target--> %s", Label(s), s.Kind, Label(s.Target))
	case *ReturnStep:
		return fmt.Sprintf("%s (returns: %s)", Label(s), exprString(s.Value))
	case *YieldStep:
		return fmt.Sprintf("%s (yields: %s) --next--> %s", Label(s), exprString(s.Value), Label(s.Next))
	default:
		return Label(s)
	}
}

func instrString(in fragment.Instr) string {
	if in == nil {
		return "<nil>"
	}
	return in.String()
}

func exprString(e *fragment.Expr) string {
	if e == nil {
		return "None"
	}
	return e.String()
}
