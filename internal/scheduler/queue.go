package scheduler

import (
	"context"
	"sync"
)

// completionQueue is an unbounded FIFO of responses shared by every consumer.
// Pushing never blocks, so a finished request never waits for a reader.
type completionQueue struct {
	mu      sync.Mutex
	items   []Response
	changed chan struct{}
	closed  bool
}

func newCompletionQueue() *completionQueue {
	return &completionQueue{changed: make(chan struct{})}
}

func (q *completionQueue) push(r Response) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
	q.broadcast()
}

// pushFront returns a response that was popped but could not be delivered.
func (q *completionQueue) pushFront(r Response) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]Response{r}, q.items...)
	q.broadcast()
}

// pop blocks until a response is available. It reports false once the queue
// is closed and drained, or when ctx is done.
func (q *completionQueue) pop(ctx context.Context) (Response, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.items[0]
			q.items[0] = Response{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, true
		}
		if q.closed {
			q.mu.Unlock()
			return Response{}, false
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Response{}, false
		}
	}
}

func (q *completionQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *completionQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcast()
}

// broadcast wakes every waiting pop. Callers hold mu.
func (q *completionQueue) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}
