package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/builder"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/executor"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/graph"
	"github.com/vk/agentgrid/internal/handler"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/vk/agentgrid/internal/task"
	"github.com/vk/agentgrid/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func build(t *testing.T, src string) *graph.Graph {
	t.Helper()
	g, err := builder.Build(testutil.Unindent(src))
	require.NoError(t, err)
	return g
}

func native(t *testing.T, v cty.Value) any {
	t.Helper()
	out, err := ctyconv.ToNative(v)
	require.NoError(t, err)
	return out
}

func ints(vals ...int64) []cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberIntVal(v)
	}
	return out
}

func TestRun_ConcreteScenario(t *testing.T) {
	ctx, _ := testutil.Context(t)
	exec := executor.New(build(t, "x = 1\ny = 2\nreturn x + y"), nil)

	results := exec.Run(ctx, []cty.Value{cty.StringVal("anything"), cty.NullVal(cty.DynamicPseudoType), cty.True})
	require.Len(t, results, 3)
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, i, res.Index)
		assert.Equal(t, int64(3), native(t, res.Output()))
	}
}

func TestRun_Determinism(t *testing.T) {
	ctx, _ := testutil.Context(t)
	exec := executor.New(build(t, `
		total = 0
		for i, v in input:
		    if v % 2 == 0:
		        continue
		    total += v * i
		    yield total
		return total
	`), nil)

	inputs := []cty.Value{cty.TupleVal(ints(1, 2, 3, 5)), cty.TupleVal(ints(7)), cty.EmptyTupleVal}
	first := exec.Run(ctx, inputs)
	second := exec.Run(ctx, inputs)
	require.Len(t, second, len(first))
	for i := range first {
		require.NoError(t, first[i].Err)
		assert.True(t, first[i].Output().RawEquals(second[i].Output()), "input %d differs", i)
	}
	assert.Equal(t, []any{int64(0), int64(6), int64(21)}, native(t, first[0].Output()))
	assert.Equal(t, int64(0), native(t, first[2].Output()))
}

func TestRun_Isolation(t *testing.T) {
	ctx, _ := testutil.Context(t)
	exec := executor.New(build(t, `
		seen = input * 10
		if input == 2:
		    return undefined_name
		return seen
	`), nil)

	results := exec.Run(ctx, ints(1, 2, 3))
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, int64(10), native(t, results[0].Return))

	var be *fragment.BindingError
	require.True(t, errors.As(results[1].Err, &be), "got %v", results[1].Err)
	assert.Equal(t, "undefined_name", be.Name)

	require.NoError(t, results[2].Err)
	assert.Equal(t, int64(30), native(t, results[2].Return))
}

func TestRun_EnvironmentSeeding(t *testing.T) {
	ctx, _ := testutil.Context(t)
	inst := &handler.Static{
		Attrs: map[string]cty.Value{
			"model": cty.StringVal("small"),
			"shade": cty.StringVal("from attribute"),
		},
		Vars: map[string]cty.Value{
			"prefix": cty.StringVal("P"),
			"input":  cty.StringVal("from scope"),
		},
	}
	exec := executor.New(build(t, `return [shade, model, self.model, prefix, input, None]`), inst,
		executor.WithGlobals(map[string]cty.Value{"shade": cty.StringVal("from globals")}),
	)

	res := exec.RunOne(ctx, cty.StringVal("the input"))
	require.NoError(t, res.Err)
	assert.Equal(t, []any{"from globals", "small", "small", "P", "the input", nil}, native(t, res.Return))
}

func TestRun_NilInstanceHasNoSelf(t *testing.T) {
	ctx, _ := testutil.Context(t)
	res := executor.New(build(t, "return self"), nil).RunOne(ctx, cty.True)
	var be *fragment.BindingError
	require.True(t, errors.As(res.Err, &be))
	assert.Equal(t, "self", be.Name)
}

func TestRun_AwaitedCallsGoThroughTasks(t *testing.T) {
	ctx, _ := testutil.Context(t)
	tasks := task.New(ctx)
	t.Cleanup(tasks.Stop)
	rec := testutil.NewRecorder(10 * time.Millisecond)

	exec := executor.New(build(t, `
		a = await fetch(1)
		b = await fetch(2)
		c = await fetch(a + b)
		return c
	`), nil,
		executor.WithTasks(tasks),
		executor.WithAsyncFuncs(map[string]fragment.AsyncFunc{"fetch": rec.Func("fetch")}),
	)

	entry, ok := exec.Graph().Entry.(*graph.ActionStep)
	require.True(t, ok)
	gather, ok := entry.Instr.(*fragment.Gather)
	require.True(t, ok, "independent awaits should be fused, got %s", exec.Graph())
	assert.Equal(t, []string{"a", "b"}, gather.Names)

	res := exec.RunOne(ctx, cty.NullVal(cty.DynamicPseudoType))
	require.NoError(t, res.Err)
	assert.Equal(t, int64(3), native(t, res.Return))
	calls := rec.Calls()
	require.Len(t, calls, 3)
	assert.ElementsMatch(t, []string{"fetch(1)", "fetch(2)"}, calls[:2])
	assert.Equal(t, "fetch(3)", calls[2])
	assert.Equal(t, 0, tasks.Stats().PendingFutures)
}

func TestRun_TaskFailureIsStepEvaluationError(t *testing.T) {
	ctx, _ := testutil.Context(t)
	tasks := task.New(ctx)
	t.Cleanup(tasks.Stop)
	boom := errors.New("upstream down")

	exec := executor.New(build(t, "x = await fail()\nreturn x"), nil,
		executor.WithTasks(tasks),
		executor.WithAsyncFuncs(map[string]fragment.AsyncFunc{
			"fail": func(ctx context.Context, args []cty.Value) (cty.Value, error) { return cty.NilVal, boom },
		}),
	)
	res := exec.RunOne(ctx, cty.True)
	var se *fragment.StepEvaluationError
	require.True(t, errors.As(res.Err, &se))
	assert.ErrorIs(t, res.Err, boom)
	var te *task.TaskError
	assert.True(t, errors.As(res.Err, &te))
}

func TestRun_RegistryBindings(t *testing.T) {
	ctx, _ := testutil.Context(t)
	reg := registry.New().Use(&testutil.SimpleModule{
		Globals: map[string]cty.Value{"greeting": cty.StringVal("hello")},
	}, &testutil.NoOpModule{})

	exec := executor.New(build(t, `
		await noop()
		return upper(format("%s %s", greeting, input))
	`), nil, executor.WithRegistry(reg))

	res := exec.RunOne(ctx, cty.StringVal("world"))
	require.NoError(t, res.Err)
	assert.Equal(t, "HELLO WORLD", res.Return.AsString())
}

func TestRun_GuardedBlocks(t *testing.T) {
	testutil.RunRoutineTests(t, []testutil.RoutineTestCase{
		{
			Name: "raise is caught and bound",
			Source: `
				try:
				    raise "boom"
				except Exception as e:
				    msg = "caught: ${e}"
				return msg
			`,
			Expect: cty.StringVal("caught: boom"),
		},
		{
			Name: "finally runs after success",
			Source: `
				log = []
				try:
				    log = concat(log, ["body"])
				finally:
				    log = concat(log, ["finally"])
				return log
			`,
			Expect: cty.TupleVal([]cty.Value{cty.StringVal("body"), cty.StringVal("finally")}),
		},
		{
			Name: "uncaught raise fails the input",
			Source: `
				try:
				    raise "boom"
				finally:
				    pass
			`,
			ExpectErr: new(*fragment.StepEvaluationError),
		},
		{
			Name:      "empty routine returns null",
			Source:    "# nothing here",
			Expect:    cty.NullVal(cty.DynamicPseudoType),
			ExpectErr: nil,
		},
		{
			Name:   "while loop with break",
			Source: "n = 0\nwhile True:\n    n += 1\n    if n >= input:\n        break\nreturn n",
			Input:  cty.NumberIntVal(4),
			Validate: func(t *testing.T, res executor.Result) {
				assert.Equal(t, int64(4), native(t, res.Return))
			},
		},
	})
}

func TestStream(t *testing.T) {
	ctx, _ := testutil.Context(t)
	exec := executor.New(build(t, `
		for v in input:
		    yield v * 2
		return length(input)
	`), nil)

	var events []executor.Event
	for ev := range exec.Stream(ctx, []cty.Value{cty.TupleVal(ints(1, 2)), cty.TupleVal(ints(3)), cty.StringVal("x")}) {
		events = append(events, ev)
	}

	require.Len(t, events, 6)
	type flat struct {
		Index int
		Value any
		Final bool
	}
	var got []flat
	for _, ev := range events[:5] {
		require.NoError(t, ev.Err)
		got = append(got, flat{ev.Index, native(t, ev.Value), ev.Final})
	}
	assert.Equal(t, []flat{
		{0, int64(2), false},
		{0, int64(4), false},
		{0, int64(2), true},
		{1, int64(6), false},
		{1, int64(1), true},
	}, got)

	// Iterating a string yields characters, so "x" * 2 fails the third input.
	last := events[5]
	assert.Equal(t, 2, last.Index)
	assert.True(t, last.Final)
	assert.Error(t, last.Err)
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := executor.New(build(t, "yield 1\nyield 2"), nil)

	ch := exec.Stream(ctx, []cty.Value{cty.True, cty.True})
	first := <-ch
	assert.Equal(t, int64(1), native(t, first.Value))
	cancel()

	// The channel is closed even though nobody reads the remaining events.
	require.Eventually(t, func() bool {
		for range ch {
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestResult_Output(t *testing.T) {
	assert.True(t, executor.Result{}.Output().IsNull())
	r := executor.Result{Return: cty.NumberIntVal(1), Yields: ints(5)}
	assert.True(t, r.Output().RawEquals(cty.TupleVal(ints(5))))
}
