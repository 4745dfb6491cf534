package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("scheduler is closed")

// Request asks a module to process one input. An empty ID is replaced with a
// generated one.
type Request struct {
	ID     string
	Module string
	Input  cty.Value
}

// Response is the outcome of one request.
type Response struct {
	ID     string
	Module string
	// Output is the tuple of yields when any were produced, otherwise Return.
	Output  cty.Value
	Return  cty.Value
	Yields  []cty.Value
	Err     error
	Elapsed time.Duration
}

// ModuleNotFoundError reports a request for a module that is not registered.
type ModuleNotFoundError struct {
	Module string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %q is not registered", e.Module)
}
