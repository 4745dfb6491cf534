// Package llm defines the language-model client the runtime calls from
// handler routines, and an adapter for OpenAI-compatible chat completion APIs.
package llm

import "context"

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    Role
	Content string
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
	// ToolCalls are the calls an assistant message requested.
	ToolCalls []ToolCall
}

// ToolSpec describes a tool the model may call. Parameters is a JSON schema.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by the model. Arguments is the raw
// JSON text produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Options are per-call parameters. Zero values leave the provider default.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Tools       []ToolSpec
	Stream      bool
}

// Reply is the model's answer: either content, tool calls, or both.
type Reply struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Client is a language-model chat client.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts Options) (*Reply, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, opts Options) (*Reply, error)

// Chat implements Client.
func (f ClientFunc) Chat(ctx context.Context, messages []Message, opts Options) (*Reply, error) {
	return f(ctx, messages, opts)
}
