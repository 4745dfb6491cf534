package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is delivered by a future whose task was cancelled, either before
// it started or cooperatively while running.
var ErrCancelled = errors.New("task cancelled")

// TaskError is the failure recorded on a future when the submitted work
// returned an error or panicked.
type TaskError struct {
	Seq uint64
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d failed: %v", e.Seq, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// State is the resolution state of a Future.
type State int32

const (
	// Pending means no outcome has been delivered yet.
	Pending State = iota
	// Succeeded means the work returned a value.
	Succeeded
	// Failed means the work returned an error or panicked.
	Failed
	// Cancelled means the task was cancelled before or during execution.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// canceller is implemented by the executor that owns a future.
type canceller interface {
	cancel(seq uint64)
}

// Future is the handle returned by Submit. Exactly one outcome is ever applied.
type Future struct {
	seq   uint64
	owner canceller

	once  sync.Once
	done  chan struct{}
	mu    sync.RWMutex
	state State
	value any
	err   error
}

func newFuture(seq uint64, owner canceller) *Future {
	return &Future{seq: seq, owner: owner, done: make(chan struct{})}
}

// Seq returns the submission sequence number of the underlying task.
func (f *Future) Seq() uint64 {
	return f.seq
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// State returns the current resolution state.
func (f *Future) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Resolved reports whether an outcome has been delivered.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future is resolved or ctx is done. A cancelled task
// yields ErrCancelled; a failed one yields a *TaskError.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. It returns nil, nil while pending.
func (f *Future) Result() (any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	switch f.state {
	case Succeeded:
		return f.value, nil
	case Failed:
		return nil, f.err
	case Cancelled:
		return nil, ErrCancelled
	default:
		return nil, nil
	}
}

// snapshot returns the resolved state together with its value and error.
func (f *Future) snapshot() (State, any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state, f.value, f.err
}

// Cancel requests cancellation. A waiting task is resolved as cancelled without
// running; a running task has its context cancelled and ends in whatever state
// its work reports.
func (f *Future) Cancel() {
	if f.Resolved() {
		return
	}
	if f.owner != nil {
		f.owner.cancel(f.seq)
		return
	}
	f.resolve(Cancelled, nil, nil)
}

// resolve applies the outcome once. It reports whether this call won.
func (f *Future) resolve(state State, value any, err error) bool {
	applied := false
	f.once.Do(func() {
		f.mu.Lock()
		f.state = state
		f.value = value
		f.err = err
		f.mu.Unlock()
		close(f.done)
		applied = true
	})
	return applied
}

// outcome classifies the result of a piece of work.
func outcome(seq uint64, value any, err error) (State, any, error) {
	switch {
	case err == nil:
		return Succeeded, value, nil
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return Cancelled, nil, nil
	default:
		var te *TaskError
		if errors.As(err, &te) {
			return Failed, nil, err
		}
		return Failed, nil, &TaskError{Seq: seq, Err: err}
	}
}
