package fragment

import (
	"errors"
	"fmt"

	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/zclconf/go-cty/cty"
)

// ErrEmptyFragment is the cause recorded when a step carries no instruction or
// an expression with no source.
var ErrEmptyFragment = errors.New("empty fragment")

// BindingError reports a name or function that could not be resolved in the
// environment while evaluating a fragment.
type BindingError struct {
	Name     string
	Function bool
	Src      string
}

func (e *BindingError) Error() string {
	kind := "name"
	if e.Function {
		kind = "function"
	}
	if e.Src == "" {
		return fmt.Sprintf("unresolved %s %q", kind, e.Name)
	}
	return fmt.Sprintf("unresolved %s %q in %q", kind, e.Name, e.Src)
}

// StepEvaluationError reports a fragment that was empty or failed while
// evaluating. Err carries the cause.
type StepEvaluationError struct {
	Src string
	Err error
}

func (e *StepEvaluationError) Error() string {
	if e.Src == "" {
		return fmt.Sprintf("step evaluation failed: %v", e.Err)
	}
	return fmt.Sprintf("evaluating %q: %v", e.Src, e.Err)
}

func (e *StepEvaluationError) Unwrap() error {
	return e.Err
}

// Raised is the cause of a StepEvaluationError produced by a raise statement.
type Raised struct {
	Value cty.Value
}

func (e *Raised) Error() string {
	return "raised: " + ctyconv.Display(e.Value)
}

// Message returns the text bound to an except clause's name: the raised value
// for a raise statement, otherwise the error text.
func Message(err error) string {
	var r *Raised
	if errors.As(err, &r) {
		return ctyconv.Display(r.Value)
	}
	return err.Error()
}

// wrap gives err the fragment error taxonomy, leaving already-classified
// errors untouched.
func wrap(src string, err error) error {
	if err == nil {
		return nil
	}
	var be *BindingError
	if errors.As(err, &be) {
		return err
	}
	var se *StepEvaluationError
	if errors.As(err, &se) {
		return err
	}
	return &StepEvaluationError{Src: src, Err: err}
}

// Wrap is wrap for callers outside the package that run their own fragments.
func Wrap(src string, err error) error {
	return wrap(src, err)
}
