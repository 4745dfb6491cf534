// Package task implements the priority-ordered asynchronous task executor that
// every outbound call of a handler (model completions, tool invocations,
// registered async functions) is funnelled through.
//
// # Ordering
//
// Submitted work is held in a min-heap keyed by (priority, submission
// sequence). Lower priority values run first; equal priorities run in
// submission order.
//
// The executor runs up to DefaultWorkers tasks at once, so priority only
// decides which waiting task takes the next free slot. Ascending completion
// order holds only while the workers are saturated. For a strictly serial
// run-loop that finishes each task before starting the next, create the
// executor with WithWorkers(1).
//
// # Futures
//
// Submit returns a *Future that is resolved exactly once:
//
//	f := exec.Submit(func(ctx context.Context) (any, error) {
//	    return client.Complete(ctx, prompt)
//	}, task.DefaultPriority)
//	value, err := f.Wait(ctx)
//
// A failed task resolves its own future with a *TaskError and never affects
// other tasks or the run-loop. A panic inside work is recovered and reported
// the same way. Cancelling a waiting future removes the task from the heap
// without running it; cancelling a running future cancels the context passed to
// its work. Forward mirrors another future without occupying a worker.
//
// # Health
//
// The run-loop records a heartbeat on every iteration and at least once per
// tick interval while idle. IsHealthy reports false once Stop has been called,
// once the loop has exited, or when the heartbeat is older than three tick
// intervals.
package task
