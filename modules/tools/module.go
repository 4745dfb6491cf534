// Package tools exposes a tool client to handler routines as the async
// functions "call_tool" and "list_tools".
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/registry"
	toolclient "github.com/vk/agentgrid/internal/tools"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Client toolclient.Client
}

// Register registers the tool functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAsync("call_tool", m.CallTool)
	r.RegisterAsync("list_tools", m.ListTools)
}

// CallTool is the "call_tool(name, params)" async function.
func (m *Module) CallTool(ctx context.Context, args []cty.Value) (cty.Value, error) {
	if m.Client == nil {
		return cty.NilVal, errors.New("call_tool: no tool client configured")
	}
	if len(args) < 1 || len(args) > 2 {
		return cty.NilVal, fmt.Errorf("call_tool: expected 1 or 2 arguments, got %d", len(args))
	}
	if args[0].IsNull() || args[0].Type() != cty.String {
		return cty.NilVal, errors.New("call_tool: tool name must be a string")
	}
	name := args[0].AsString()

	params := map[string]any{}
	if len(args) == 2 {
		native, err := ctyconv.ToNative(args[1])
		if err != nil {
			return cty.NilVal, fmt.Errorf("call_tool: %w", err)
		}
		switch p := native.(type) {
		case nil:
		case map[string]any:
			params = p
		default:
			return cty.NilVal, fmt.Errorf("call_tool: params must be an object, got %s", args[1].Type().FriendlyName())
		}
	}

	ctxlog.FromContext(ctx).Debug("Calling tool.", "tool", name)
	out, err := m.Client.CallTool(ctx, name, params)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyconv.FromNative(out)
}

// ListTools is the "list_tools()" async function.
func (m *Module) ListTools(ctx context.Context, args []cty.Value) (cty.Value, error) {
	if m.Client == nil {
		return cty.NilVal, errors.New("list_tools: no tool client configured")
	}
	if len(args) != 0 {
		return cty.NilVal, fmt.Errorf("list_tools: expected no arguments, got %d", len(args))
	}
	specs, err := m.Client.ListTools(ctx)
	if err != nil {
		return cty.NilVal, fmt.Errorf("list_tools: %w", err)
	}
	if len(specs) == 0 {
		return cty.EmptyTupleVal, nil
	}

	out := make([]cty.Value, len(specs))
	for i, spec := range specs {
		params := map[string]any{}
		if spec.Parameters != nil {
			params = spec.Parameters
		}
		paramsVal, err := ctyconv.FromNative(params)
		if err != nil {
			return cty.NilVal, fmt.Errorf("list_tools: tool %q: %w", spec.Name, err)
		}
		out[i] = cty.ObjectVal(map[string]cty.Value{
			"name":        cty.StringVal(spec.Name),
			"description": cty.StringVal(spec.Description),
			"parameters":  paramsVal,
		})
	}
	return cty.TupleVal(out), nil
}
