package fragment

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// iterator is the hidden cursor state of one for loop.
type iterator struct {
	keys   []cty.Value
	vals   []cty.Value
	keyed  bool // map or object: a single loop name binds the key
	cursor int
}

func newIterator(v cty.Value) (*iterator, error) {
	v, _ = v.UnmarkDeep()
	if v.IsNull() {
		return nil, fmt.Errorf("cannot iterate over null")
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("cannot iterate over an unknown value")
	}
	ty := v.Type()
	it := &iterator{}
	switch {
	case ty == cty.String:
		for i, r := range []rune(v.AsString()) {
			it.keys = append(it.keys, cty.NumberIntVal(int64(i)))
			it.vals = append(it.vals, cty.StringVal(string(r)))
		}
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		i := int64(0)
		for e := v.ElementIterator(); e.Next(); i++ {
			_, val := e.Element()
			it.keys = append(it.keys, cty.NumberIntVal(i))
			it.vals = append(it.vals, val)
		}
	case ty.IsMapType() || ty.IsObjectType():
		it.keyed = true
		for e := v.ElementIterator(); e.Next(); {
			key, val := e.Element()
			it.keys = append(it.keys, key)
			it.vals = append(it.vals, val)
		}
	default:
		return nil, fmt.Errorf("cannot iterate over %s", ty.FriendlyName())
	}
	return it, nil
}

// IterInit evaluates a collection and stores a fresh cursor over it in Slot.
type IterInit struct {
	Slot string
	Coll *Expr
}

func (i *IterInit) Exec(_ context.Context, env *Env) error {
	v, err := i.Coll.Eval(env)
	if err != nil {
		return err
	}
	it, err := newIterator(v)
	if err != nil {
		return &StepEvaluationError{Src: i.Coll.String(), Err: err}
	}
	env.iters[i.Slot] = it
	return nil
}

func (i *IterInit) String() string { return i.Slot + " = iter(" + i.Coll.String() + ")" }

// IterNext advances the cursor in Slot. It binds the next element and reports
// true, or reports false once the collection is exhausted. With Key set, Key
// receives the index or map key and Val the element.
type IterNext struct {
	Slot string
	Key  string
	Val  string
}

func (n *IterNext) Eval(_ context.Context, env *Env) (bool, error) {
	it, ok := env.iters[n.Slot]
	if !ok {
		return false, &StepEvaluationError{Src: n.String(), Err: fmt.Errorf("iterator %s is not initialized", n.Slot)}
	}
	if it.cursor >= len(it.vals) {
		delete(env.iters, n.Slot)
		return false, nil
	}
	k, v := it.keys[it.cursor], it.vals[it.cursor]
	it.cursor++
	switch {
	case n.Key != "":
		env.Set(n.Key, k)
		env.Set(n.Val, v)
	case it.keyed:
		env.Set(n.Val, k)
	default:
		env.Set(n.Val, v)
	}
	return true, nil
}

func (n *IterNext) String() string {
	if n.Key != "" {
		return n.Key + ", " + n.Val + " = next(" + n.Slot + ")"
	}
	return n.Val + " = next(" + n.Slot + ")"
}
