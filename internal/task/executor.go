package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/vk/agentgrid/internal/ctxlog"
)

const (
	// DefaultPriority is used by callers that have no opinion on ordering.
	DefaultPriority = 10
	// DefaultWorkers bounds how many tasks run at the same time. Priority
	// order only decides which waiting task starts next; use WithWorkers(1)
	// for strictly serial execution in that order.
	DefaultWorkers = 16
	// DefaultTickInterval is how often an idle run-loop wakes for health bookkeeping.
	DefaultTickInterval = time.Second
)

// Stats is a point-in-time snapshot of the executor.
type Stats struct {
	Waiting        int  `json:"waiting"`
	Running        int  `json:"running"`
	PendingFutures int  `json:"pending_futures"`
	Healthy        bool `json:"healthy"`
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the number of tasks that may run concurrently. One worker
// gives strict (priority, submission) ordered, serial execution.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithTickInterval sets the idle re-check interval of the run-loop.
func WithTickInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// Executor runs submitted work in ascending (priority, submission) order on a
// bounded set of workers and resolves one Future per task.
type Executor struct {
	workers  int
	interval time.Duration
	logger   *slog.Logger

	// mu guards waiting, running and entries.
	mu      sync.Mutex
	waiting waitingQueue
	running map[uint64]*entry
	entries map[uint64]*entry

	seq     atomic.Uint64
	futures *haxmap.Map[uint64, *Future]

	wake  chan struct{}
	slots chan struct{}

	loopCtx  context.Context
	stopLoop context.CancelFunc
	loopDone chan struct{}
	stopped  atomic.Bool
	lastBeat atomic.Int64
}

// New creates an executor and starts its run-loop. The loop stops when ctx is
// cancelled or Stop is called.
func New(ctx context.Context, opts ...Option) *Executor {
	e := &Executor{
		workers:  DefaultWorkers,
		interval: DefaultTickInterval,
		logger:   ctxlog.FromContext(ctx),
		running:  make(map[uint64]*entry),
		entries:  make(map[uint64]*entry),
		futures:  haxmap.New[uint64, *Future](),
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.slots = make(chan struct{}, e.workers)
	e.loopCtx, e.stopLoop = context.WithCancel(ctx)
	e.beat()

	e.logger.Debug("Starting task executor run-loop.", "workers", e.workers, "tick", e.interval)
	go e.run(e.loopCtx)
	return e
}

// Submit queues work with the given priority (lower runs first) and returns
// its future.
func (e *Executor) Submit(work Work, priority int) *Future {
	seq := e.seq.Add(1)
	f := newFuture(seq, e)
	if work == nil {
		f.resolve(Failed, nil, &TaskError{Seq: seq, Err: errors.New("nil work submitted")})
		return f
	}
	if e.stopped.Load() {
		e.logger.Warn("Task submitted to a stopped executor.", "seq", seq)
	}

	en := &entry{priority: priority, seq: seq, work: work, future: f}
	e.futures.Set(seq, f)

	e.mu.Lock()
	e.waiting.push(en)
	e.entries[seq] = en
	e.mu.Unlock()

	e.logger.Debug("Task queued.", "seq", seq, "priority", priority)
	e.signal()
	return f
}

// Forward mirrors src onto a new future. If src is already resolved the new
// future is resolved immediately. Otherwise the mirror waits outside the worker
// pool, so it never holds a slot its source needs; a source still waiting in
// this executor is raised to priority when that is more urgent.
func (e *Executor) Forward(src *Future, priority int) *Future {
	f := newFuture(e.seq.Add(1), nil)
	if src.Resolved() {
		f.resolve(src.snapshot())
		return f
	}
	if src.owner == e {
		e.raise(src.seq, priority)
	}
	go func() {
		select {
		case <-src.Done():
			f.resolve(src.snapshot())
		case <-f.Done():
		}
	}()
	return f
}

// raise moves a waiting task forward to priority if that is lower than its
// current one.
func (e *Executor) raise(seq uint64, priority int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[seq]
	if !ok || priority >= en.priority {
		return
	}
	if e.waiting.reprioritize(en, priority) {
		e.logger.Debug("Waiting task raised by a forward.", "seq", seq, "priority", priority)
	}
}

// Stats returns the current queue sizes and health.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	waiting, running := e.waiting.Len(), len(e.running)
	e.mu.Unlock()
	return Stats{
		Waiting:        waiting,
		Running:        running,
		PendingFutures: int(e.futures.Len()),
		Healthy:        e.IsHealthy(),
	}
}

// IsHealthy reports whether the run-loop is alive and has recently checked in.
func (e *Executor) IsHealthy() bool {
	if e.stopped.Load() {
		return false
	}
	select {
	case <-e.loopDone:
		return false
	default:
	}
	last := time.Unix(0, e.lastBeat.Load())
	return time.Since(last) <= 3*e.interval
}

// Stop cancels the run-loop and the contexts of running tasks. Submissions are
// still accepted afterwards but will not be started.
func (e *Executor) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.logger.Debug("Stopping task executor.")
	e.stopLoop()
	<-e.loopDone
	e.logger.Debug("Task executor stopped.")
}

func (e *Executor) beat() {
	e.lastBeat.Store(time.Now().UnixNano())
}

func (e *Executor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// run is the dispatch loop: take a worker slot, then the most urgent task.
func (e *Executor) run(ctx context.Context) {
	defer close(e.loopDone)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.beat()
		select {
		case <-ctx.Done():
			e.logger.Debug("Task executor run-loop cancelled.")
			return
		case <-ticker.C:
			continue
		case e.slots <- struct{}{}:
		}

		en := e.pop(ctx)
		for en == nil {
			select {
			case <-ctx.Done():
				<-e.slots
				e.logger.Debug("Task executor run-loop cancelled.")
				return
			case <-e.wake:
			case <-ticker.C:
				e.beat()
			}
			en = e.pop(ctx)
		}
		go e.execute(en)
	}
}

// pop moves the most urgent waiting task into the running set.
func (e *Executor) pop(ctx context.Context) *entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	en := e.waiting.pop()
	if en == nil {
		return nil
	}
	en.ctx, en.cancel = context.WithCancel(ctx)
	e.running[en.seq] = en
	return en
}

func (e *Executor) execute(en *entry) {
	defer func() { <-e.slots }()
	logger := e.logger.With("seq", en.seq, "priority", en.priority)
	logger.Debug("Task started.")

	value, err := invoke(en.ctx, en.work)
	en.cancel()

	e.mu.Lock()
	delete(e.running, en.seq)
	delete(e.entries, en.seq)
	e.mu.Unlock()
	e.futures.Del(en.seq)

	state, value, err := outcome(en.seq, value, err)
	if state == Failed {
		logger.Debug("Task failed.", "error", err)
	} else {
		logger.Debug("Task finished.", "state", state.String())
	}
	en.future.resolve(state, value, err)
}

// cancel implements canceller for futures owned by this executor.
func (e *Executor) cancel(seq uint64) {
	e.mu.Lock()
	en, ok := e.entries[seq]
	if !ok {
		e.mu.Unlock()
		return
	}
	if e.waiting.remove(en) {
		delete(e.entries, seq)
		e.mu.Unlock()
		e.futures.Del(seq)
		e.logger.Debug("Waiting task cancelled.", "seq", seq)
		en.future.resolve(Cancelled, nil, nil)
		return
	}
	cancelRunning := en.cancel
	e.mu.Unlock()
	if cancelRunning != nil {
		e.logger.Debug("Running task cancellation requested.", "seq", seq)
		cancelRunning()
	}
}

// invoke runs work, converting a panic into an error so that it stays on the
// task's own future.
func invoke(ctx context.Context, w Work) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w(ctx)
}
