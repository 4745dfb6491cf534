// Package llm exposes a language-model client to handler routines as the
// async function "llm".
//
//	reply = await llm("Summarize: ${request.text}", { model = self.model })
//	return reply.content
//
// The first argument is either a prompt string or a list of message objects
// ({ role, content, tool_call_id }). The optional second argument is an object
// with model, temperature, max_tokens, system, stream and tools. The result is
// an object with content, tool_calls and finish_reason.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/ctyconv"
	llmclient "github.com/vk/agentgrid/internal/llm"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Client llmclient.Client
	// Model is used when a call names none.
	Model string
	// Stream requests streamed completions by default.
	Stream bool
}

// Register registers the "llm" async function.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAsync("llm", m.Chat)
}

// Chat is the "llm" async function.
func (m *Module) Chat(ctx context.Context, args []cty.Value) (cty.Value, error) {
	if m.Client == nil {
		return cty.NilVal, errors.New("llm: no client configured")
	}
	if len(args) < 1 || len(args) > 2 {
		return cty.NilVal, fmt.Errorf("llm: expected 1 or 2 arguments, got %d", len(args))
	}

	opts := llmclient.Options{Model: m.Model, Stream: m.Stream}
	var system string
	if len(args) == 2 {
		var err error
		if system, err = decodeOptions(args[1], &opts); err != nil {
			return cty.NilVal, fmt.Errorf("llm: options: %w", err)
		}
	}

	messages, err := decodeMessages(args[0])
	if err != nil {
		return cty.NilVal, fmt.Errorf("llm: %w", err)
	}
	if system != "" {
		messages = append([]llmclient.Message{{Role: llmclient.RoleSystem, Content: system}}, messages...)
	}

	logger := ctxlog.FromContext(ctx).With("module", "llm", "model", opts.Model)
	logger.Debug("Calling language model.", "messages", len(messages), "tools", len(opts.Tools))

	reply, err := m.Client.Chat(ctx, messages, opts)
	if err != nil {
		return cty.NilVal, err
	}
	logger.Debug("Language model replied.", "finish_reason", reply.FinishReason, "tool_calls", len(reply.ToolCalls))
	return encodeReply(reply), nil
}

func decodeMessages(v cty.Value) ([]llmclient.Message, error) {
	native, err := ctyconv.ToNative(v)
	if err != nil {
		return nil, err
	}
	switch in := native.(type) {
	case string:
		return []llmclient.Message{{Role: llmclient.RoleUser, Content: in}}, nil
	case []any:
		msgs := make([]llmclient.Message, 0, len(in))
		for i, item := range in {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("message %d: must be an object", i)
			}
			msg := llmclient.Message{Role: llmclient.RoleUser}
			if role, ok := obj["role"].(string); ok {
				msg.Role = llmclient.Role(role)
			}
			content, ok := obj["content"].(string)
			if !ok && obj["content"] != nil {
				return nil, fmt.Errorf("message %d: content must be a string", i)
			}
			msg.Content = content
			if id, ok := obj["tool_call_id"].(string); ok {
				msg.ToolCallID = id
			}
			calls, _ := obj["tool_calls"].([]any)
			for _, c := range calls {
				call, ok := c.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("message %d: tool call must be an object", i)
				}
				id, _ := call["id"].(string)
				name, _ := call["name"].(string)
				arguments, _ := call["arguments"].(string)
				msg.ToolCalls = append(msg.ToolCalls, llmclient.ToolCall{ID: id, Name: name, Arguments: arguments})
			}
			msgs = append(msgs, msg)
		}
		return msgs, nil
	case nil:
		return nil, errors.New("prompt must not be null")
	default:
		return nil, fmt.Errorf("prompt must be a string or a list of messages, got %s", v.Type().FriendlyName())
	}
}

func decodeOptions(v cty.Value, opts *llmclient.Options) (string, error) {
	native, err := ctyconv.ToNative(v)
	if err != nil {
		return "", err
	}
	if native == nil {
		return "", nil
	}
	obj, ok := native.(map[string]any)
	if !ok {
		return "", fmt.Errorf("must be an object, got %s", v.Type().FriendlyName())
	}

	var system string
	for key, val := range obj {
		switch key {
		case "model":
			s, ok := val.(string)
			if !ok {
				return "", errors.New("model must be a string")
			}
			opts.Model = s
		case "system":
			s, ok := val.(string)
			if !ok {
				return "", errors.New("system must be a string")
			}
			system = s
		case "temperature":
			f, ok := number(val)
			if !ok {
				return "", errors.New("temperature must be a number")
			}
			opts.Temperature = &f
		case "max_tokens":
			f, ok := number(val)
			if !ok {
				return "", errors.New("max_tokens must be a number")
			}
			opts.MaxTokens = int(f)
		case "stream":
			b, ok := val.(bool)
			if !ok {
				return "", errors.New("stream must be a bool")
			}
			opts.Stream = b
		case "tools":
			list, ok := val.([]any)
			if !ok {
				return "", errors.New("tools must be a list")
			}
			for i, item := range list {
				spec, ok := item.(map[string]any)
				if !ok {
					return "", fmt.Errorf("tool %d must be an object", i)
				}
				name, _ := spec["name"].(string)
				if name == "" {
					return "", fmt.Errorf("tool %d has no name", i)
				}
				desc, _ := spec["description"].(string)
				params, _ := spec["parameters"].(map[string]any)
				opts.Tools = append(opts.Tools, llmclient.ToolSpec{Name: name, Description: desc, Parameters: params})
			}
		default:
			return "", fmt.Errorf("unknown option %q", key)
		}
	}
	return system, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func encodeReply(reply *llmclient.Reply) cty.Value {
	calls := make([]cty.Value, len(reply.ToolCalls))
	for i, tc := range reply.ToolCalls {
		calls[i] = cty.ObjectVal(map[string]cty.Value{
			"id":        cty.StringVal(tc.ID),
			"name":      cty.StringVal(tc.Name),
			"arguments": cty.StringVal(tc.Arguments),
		})
	}
	toolCalls := cty.EmptyTupleVal
	if len(calls) > 0 {
		toolCalls = cty.TupleVal(calls)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"content":       cty.StringVal(reply.Content),
		"tool_calls":    toolCalls,
		"finish_reason": cty.StringVal(reply.FinishReason),
	})
}
