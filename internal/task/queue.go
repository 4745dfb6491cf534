package task

import (
	"container/heap"
	"context"
)

// Work is a unit of asynchronous work accepted by the executor.
type Work func(ctx context.Context) (any, error)

// entry is a task as held by the executor.
type entry struct {
	priority int
	seq      uint64
	work     Work
	future   *Future

	index  int // position in the waiting heap, -1 once popped
	ctx    context.Context
	cancel context.CancelFunc
}

// waitingQueue is a min-heap ordered by (priority, seq).
type waitingQueue []*entry

func (q waitingQueue) Len() int { return len(q) }

func (q waitingQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q waitingQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waitingQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *waitingQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (q *waitingQueue) push(e *entry) {
	heap.Push(q, e)
}

func (q *waitingQueue) pop() *entry {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*entry)
}

func (q *waitingQueue) remove(e *entry) bool {
	if e.index < 0 || e.index >= q.Len() || (*q)[e.index] != e {
		return false
	}
	heap.Remove(q, e.index)
	return true
}

// reprioritize changes the priority of a waiting entry and restores heap
// order. It reports false when e is not waiting.
func (q *waitingQueue) reprioritize(e *entry, priority int) bool {
	if e.index < 0 || e.index >= q.Len() || (*q)[e.index] != e {
		return false
	}
	e.priority = priority
	heap.Fix(q, e.index)
	return true
}
