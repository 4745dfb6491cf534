package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestExecutor creates an executor that is stopped when the test ends.
func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e := New(context.Background(), opts...)
	t.Cleanup(e.Stop)
	return e
}

// blocker submits a task that holds its worker until the returned func is called.
func blocker(t *testing.T, e *Executor) (started <-chan struct{}, release func()) {
	t.Helper()
	startedCh := make(chan struct{})
	releaseCh := make(chan struct{})
	e.Submit(func(ctx context.Context) (any, error) {
		close(startedCh)
		<-releaseCh
		return nil, nil
	}, -100)
	var once sync.Once
	return startedCh, func() { once.Do(func() { close(releaseCh) }) }
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmit_ReturnsValue(t *testing.T) {
	e := newTestExecutor(t)

	f := e.Submit(func(ctx context.Context) (any, error) {
		return "hello", nil
	}, DefaultPriority)

	v, err := f.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Equal(t, Succeeded, f.State())
}

func TestSubmit_PriorityOrder(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(1))
	started, release := blocker(t, e)
	<-started

	var mu sync.Mutex
	var order []int
	var futures []*Future
	for _, p := range []int{10, 1, 5} {
		p := p
		futures = append(futures, e.Submit(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return p, nil
		}, p))
	}
	release()

	for _, f := range futures {
		_, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 5, 10}, order)
}

func TestSubmit_EqualPriorityIsFIFO(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(1))
	started, release := blocker(t, e)
	<-started

	var mu sync.Mutex
	var order []string
	var futures []*Future
	for _, name := range []string{"a", "b", "c", "d"} {
		name := name
		futures = append(futures, e.Submit(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}, 3))
	}
	release()

	for _, f := range futures {
		_, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestSubmit_FailureIsIsolated(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(2))
	boom := errors.New("boom")

	bad := e.Submit(func(ctx context.Context) (any, error) {
		return nil, boom
	}, 1)
	good := e.Submit(func(ctx context.Context) (any, error) {
		return 42, nil
	}, 2)

	_, err := bad.Wait(waitCtx(t))
	require.Error(t, err)
	var te *TaskError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, bad.Seq(), te.Seq)
	assert.Equal(t, Failed, bad.State())

	v, err := good.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, e.IsHealthy())
}

func TestSubmit_PanicBecomesTaskError(t *testing.T) {
	e := newTestExecutor(t)

	f := e.Submit(func(ctx context.Context) (any, error) {
		panic("kaboom")
	}, DefaultPriority)

	_, err := f.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.True(t, e.IsHealthy())

	after := e.Submit(func(ctx context.Context) (any, error) { return 1, nil }, DefaultPriority)
	v, err := after.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSubmit_NilWork(t *testing.T) {
	e := newTestExecutor(t)
	f := e.Submit(nil, DefaultPriority)
	require.True(t, f.Resolved())
	_, err := f.Result()
	assert.Error(t, err)
}

func TestCancel_BeforeStart(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(1))
	started, release := blocker(t, e)
	<-started

	ran := false
	f := e.Submit(func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	}, DefaultPriority)
	f.Cancel()
	release()

	_, err := f.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, Cancelled, f.State())

	// A later task proves the cancelled one was skipped rather than delayed.
	next := e.Submit(func(ctx context.Context) (any, error) { return nil, nil }, DefaultPriority)
	_, err = next.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestCancel_WhileRunning(t *testing.T) {
	e := newTestExecutor(t)
	running := make(chan struct{})

	f := e.Submit(func(ctx context.Context) (any, error) {
		close(running)
		<-ctx.Done()
		return nil, ctx.Err()
	}, DefaultPriority)
	<-running
	f.Cancel()

	_, err := f.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestCancel_ResolvedIsNoop(t *testing.T) {
	e := newTestExecutor(t)
	f := e.Submit(func(ctx context.Context) (any, error) { return "done", nil }, DefaultPriority)
	_, err := f.Wait(waitCtx(t))
	require.NoError(t, err)

	f.Cancel()
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestForward(t *testing.T) {
	e := newTestExecutor(t)

	t.Run("resolved source", func(t *testing.T) {
		src := e.Submit(func(ctx context.Context) (any, error) { return 7, nil }, DefaultPriority)
		_, err := src.Wait(waitCtx(t))
		require.NoError(t, err)

		f := e.Forward(src, DefaultPriority)
		require.True(t, f.Resolved())
		v, err := f.Result()
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("pending source", func(t *testing.T) {
		gate := make(chan struct{})
		src := e.Submit(func(ctx context.Context) (any, error) {
			<-gate
			return "late", nil
		}, DefaultPriority)

		f := e.Forward(src, DefaultPriority)
		close(gate)
		v, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, "late", v)
	})

	t.Run("failed source", func(t *testing.T) {
		src := e.Submit(func(ctx context.Context) (any, error) { return nil, errors.New("nope") }, DefaultPriority)
		f := e.Forward(src, DefaultPriority)
		_, err := f.Wait(waitCtx(t))
		var te *TaskError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, src.Seq(), te.Seq)
	})
}

func TestForward_SourceQueuedBehindBusyWorker(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(1))
	started, release := blocker(t, e)
	<-started

	src := e.Submit(func(ctx context.Context) (any, error) { return "mirrored", nil }, 20)
	f := e.Forward(src, 1)
	assert.False(t, f.Resolved())
	release()

	v, err := f.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "mirrored", v)
	assert.Equal(t, Succeeded, src.State())
}

func TestForward_RaisesWaitingSource(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(1))
	started, release := blocker(t, e)
	<-started

	var mu sync.Mutex
	var order []string
	record := func(name string) Work {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}
	other := e.Submit(record("other"), 5)
	src := e.Submit(record("src"), 20)
	f := e.Forward(src, 1)
	release()

	for _, fut := range []*Future{other, f} {
		_, err := fut.Wait(waitCtx(t))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"src", "other"}, order)
}

func TestForward_CancelStopsMirroring(t *testing.T) {
	e := newTestExecutor(t)
	gate := make(chan struct{})
	src := e.Submit(func(ctx context.Context) (any, error) {
		<-gate
		return 1, nil
	}, DefaultPriority)

	f := e.Forward(src, DefaultPriority)
	f.Cancel()
	_, err := f.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrCancelled)

	close(gate)
	v, err := src.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestDefaultWorkersRunConcurrently(t *testing.T) {
	e := newTestExecutor(t)
	first := make(chan struct{})
	second := make(chan struct{})

	a := e.Submit(func(ctx context.Context) (any, error) {
		close(first)
		<-second
		return nil, nil
	}, 1)
	b := e.Submit(func(ctx context.Context) (any, error) {
		<-first
		close(second)
		return nil, nil
	}, 2)

	for _, f := range []*Future{a, b} {
		_, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
	}
}

func TestStats(t *testing.T) {
	e := newTestExecutor(t, WithWorkers(1))
	started, release := blocker(t, e)
	<-started

	f1 := e.Submit(func(ctx context.Context) (any, error) { return nil, nil }, 1)
	f2 := e.Submit(func(ctx context.Context) (any, error) { return nil, nil }, 2)

	s := e.Stats()
	assert.Equal(t, 2, s.Waiting)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 3, s.PendingFutures)
	assert.True(t, s.Healthy)

	release()
	for _, f := range []*Future{f1, f2} {
		_, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
	}

	s = e.Stats()
	assert.Equal(t, 0, s.Waiting)
	assert.Equal(t, 0, s.PendingFutures)
}

func TestStop_MarksUnhealthy(t *testing.T) {
	e := New(context.Background(), WithTickInterval(10*time.Millisecond))
	assert.True(t, e.IsHealthy())

	e.Stop()
	assert.False(t, e.IsHealthy())
	e.Stop()

	f := e.Submit(func(ctx context.Context) (any, error) { return nil, nil }, DefaultPriority)
	assert.False(t, f.Resolved())
	assert.Equal(t, 1, e.Stats().Waiting)
}

func TestParentContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(ctx, WithTickInterval(10*time.Millisecond))
	cancel()

	require.Eventually(t, func() bool { return !e.IsHealthy() }, time.Second, 5*time.Millisecond)
}
