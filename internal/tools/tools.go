// Package tools defines how handler routines reach external tools: a Client
// interface, a socket.io transport for remote tool servers, and an in-process
// Static client.
package tools

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownTool is returned when a tool name is not offered by the client.
var ErrUnknownTool = errors.New("unknown tool")

// Spec describes a tool. Parameters is a JSON schema for its arguments.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Client lists and invokes tools.
type Client interface {
	ListTools(ctx context.Context) ([]Spec, error)
	CallTool(ctx context.Context, name string, params map[string]any) (any, error)
}

// ToolError reports a failed tool invocation.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
