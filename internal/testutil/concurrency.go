package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/fragment"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// ExecutionRecord is the wall-clock span of one recorded call.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Recorder provides async functions that record when and in which order they
// were called. Each call sleeps for the configured duration, honouring
// cancellation, and returns its first argument.
type Recorder struct {
	mu      sync.Mutex
	calls   []string
	records map[string]*ExecutionRecord
	sleep   time.Duration
}

// NewRecorder creates a recorder whose calls take the given time.
func NewRecorder(sleep time.Duration) *Recorder {
	return &Recorder{
		records: make(map[string]*ExecutionRecord),
		sleep:   sleep,
	}
}

// Func returns an async function that records "name(arg)" on every call.
func (r *Recorder) Func(name string) fragment.AsyncFunc {
	return func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		key := name + "("
		if len(args) > 0 {
			key += ctyconv.Display(args[0])
		}
		key += ")"

		start := time.Now()
		if r.sleep > 0 {
			select {
			case <-time.After(r.sleep):
			case <-ctx.Done():
				return cty.NilVal, ctx.Err()
			}
		}

		r.mu.Lock()
		r.calls = append(r.calls, key)
		r.records[key] = &ExecutionRecord{Start: start, End: time.Now()}
		r.mu.Unlock()

		if len(args) == 0 {
			return ctyconv.Null, nil
		}
		return args[0], nil
	}
}

// Calls returns the recorded calls in completion order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Record returns the timing of a recorded call.
func (r *Recorder) Record(key string) (*ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	return rec, ok
}

// Register exposes the recorder to routines as the async function "record".
func (r *Recorder) Register(reg *registry.Registry) {
	reg.RegisterAsync("record", r.Func("record"))
}
