package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/executor"
	"github.com/vk/agentgrid/internal/graph"
	"github.com/vk/agentgrid/internal/handler"
	"golang.org/x/sync/semaphore"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers bounds how many requests execute at the same time. Zero or a
// negative value means unbounded.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		} else {
			s.sem = nil
		}
	}
}

// WithExecutorOptions applies opts to the executor of every registered module,
// before the module's own options.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *Scheduler) {
		s.execOpts = append(s.execOpts, opts...)
	}
}

// Scheduler runs requests against registered modules concurrently.
type Scheduler struct {
	ctx    context.Context
	logger *slog.Logger

	execOpts []executor.Option
	sem      *semaphore.Weighted

	mu      sync.RWMutex
	modules map[string]*executor.Executor
	closed  bool

	inflight sync.WaitGroup
	queue    *completionQueue
}

// New creates a scheduler. ctx bounds every request started by Enqueue and
// carries the logger.
func New(ctx context.Context, opts ...Option) *Scheduler {
	s := &Scheduler{
		ctx:     ctx,
		logger:  ctxlog.FromContext(ctx),
		modules: make(map[string]*executor.Executor),
		queue:   newCompletionQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register makes a compiled graph available under module. instance may be nil.
func (s *Scheduler) Register(module string, g *graph.Graph, instance handler.Instance, opts ...executor.Option) error {
	if module == "" {
		return fmt.Errorf("module name must not be empty")
	}
	if g == nil {
		return fmt.Errorf("module %q: graph must not be nil", module)
	}

	all := make([]executor.Option, 0, len(s.execOpts)+len(opts))
	all = append(all, s.execOpts...)
	all = append(all, opts...)
	exec := executor.New(g, instance, all...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.modules[module]; exists {
		return fmt.Errorf("module %q is already registered", module)
	}
	s.modules[module] = exec
	s.logger.Debug("Module registered.", "module", module, "captures", g.Captures)
	return nil
}

// Modules returns the registered module names in sorted order.
func (s *Scheduler) Modules() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch starts every request at once and returns their responses in
// completion order. The channel is closed after exactly len(reqs) responses.
// If any request names an unknown module nothing is started and a
// *ModuleNotFoundError is returned. Responses are also pushed onto the shared
// completion queue read by Responses.
func (s *Scheduler) Dispatch(ctx context.Context, reqs []Request) (<-chan Response, error) {
	execs, err := s.resolve(reqs)
	if err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Dispatching batch.", "requests", len(reqs))

	out := make(chan Response, len(reqs))
	var wg sync.WaitGroup
	for i := range reqs {
		req := reqs[i]
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		exec := execs[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.inflight.Done()
			resp := s.run(ctx, exec, req)
			out <- resp
			s.queue.push(resp)
		}()
	}
	go func() {
		wg.Wait()
		close(out)
		logger.Debug("Batch finished.", "requests", len(reqs))
	}()
	return out, nil
}

// Enqueue starts a request without waiting for it and returns its ID. The
// response is delivered through Responses.
func (s *Scheduler) Enqueue(req Request) (string, error) {
	execs, err := s.resolve([]Request{req})
	if err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	go func() {
		defer s.inflight.Done()
		s.queue.push(s.run(s.ctx, execs[0], req))
	}()
	s.logger.Debug("Request enqueued.", "id", req.ID, "module", req.Module)
	return req.ID, nil
}

// Responses streams completed responses from the shared completion queue. The
// channel is closed when ctx is done, or after Close once the queue is
// drained. Concurrent readers each receive a disjoint share.
func (s *Scheduler) Responses(ctx context.Context) <-chan Response {
	out := make(chan Response)
	go func() {
		defer close(out)
		for {
			resp, ok := s.queue.pop(ctx)
			if !ok {
				return
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				s.queue.pushFront(resp)
				return
			}
		}
	}()
	return out
}

// Pending reports how many completed responses are waiting to be read.
func (s *Scheduler) Pending() int {
	return s.queue.len()
}

// Close rejects further submissions, waits for in-flight requests to finish
// and then closes the completion queue.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("Closing scheduler, waiting for in-flight requests.")
	s.inflight.Wait()
	s.queue.close()
	s.logger.Debug("Scheduler closed.")
}

// resolve looks up the executor of every request, failing on the first
// unknown module. On success the requests are counted as in flight.
func (s *Scheduler) resolve(reqs []Request) ([]*executor.Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	execs := make([]*executor.Executor, len(reqs))
	for i, req := range reqs {
		exec, ok := s.modules[req.Module]
		if !ok {
			return nil, &ModuleNotFoundError{Module: req.Module}
		}
		execs[i] = exec
	}
	s.inflight.Add(len(reqs))
	return execs, nil
}

func (s *Scheduler) run(ctx context.Context, exec *executor.Executor, req Request) Response {
	ctx, logger := ctxlog.With(ctx, "request", req.ID, "module", req.Module)
	resp := Response{ID: req.ID, Module: req.Module}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			resp.Err = fmt.Errorf("waiting for a worker: %w", err)
			return resp
		}
		defer s.sem.Release(1)
	}

	start := time.Now()
	res := exec.RunOne(ctx, req.Input)
	resp.Elapsed = time.Since(start)
	resp.Output = res.Output()
	resp.Return = res.Return
	resp.Yields = res.Yields
	if res.Err != nil {
		resp.Err = fmt.Errorf("request %s (%s): %w", req.ID, req.Module, res.Err)
		logger.Debug("Request failed.", "error", res.Err, "elapsed", resp.Elapsed)
	} else {
		logger.Debug("Request finished.", "elapsed", resp.Elapsed)
	}
	return resp
}
