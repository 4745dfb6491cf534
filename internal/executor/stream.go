package executor

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Event is one item of a streamed run. Non-final events carry a yielded value
// as soon as it is produced; the final event of an input carries its return
// value or error.
type Event struct {
	Index int
	Value cty.Value
	Final bool
	Err   error
}

// Stream executes inputs in order and emits their events on the returned
// channel, which is closed after the last input. If ctx is cancelled the
// remaining inputs fail with the context error and undelivered events are
// dropped.
func (e *Executor) Stream(ctx context.Context, inputs []cty.Value) <-chan Event {
	out := make(chan Event)
	send := func(ev Event) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)
		for i, input := range inputs {
			idx := i
			res := e.execute(ctx, idx, input, func(v cty.Value) {
				send(Event{Index: idx, Value: v})
			})
			send(Event{Index: idx, Value: res.Return, Final: true, Err: res.Err})
		}
	}()
	return out
}
