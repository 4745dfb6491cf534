package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/vk/agentgrid/internal/ctxlog"
)

// DefaultModel is used when neither the adapter nor the call names a model.
const DefaultModel = openai.ChatModelGPT4oMini

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries is the retry count. Negative keeps the client default.
	MaxRetries int
}

// OpenAI is a Client backed by an OpenAI-compatible chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the adapter. Extra request options are passed to the
// underlying client.
func NewOpenAI(cfg OpenAIConfig, opts ...option.RequestOption) *OpenAI {
	var reqOpts []option.RequestOption
	if cfg.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.MaxRetries))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: &client, model: model}
}

// Chat implements Client.
func (o *OpenAI) Chat(ctx context.Context, messages []Message, opts Options) (*Reply, error) {
	params, err := o.params(messages, opts)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("model", params.Model, "messages", len(messages))

	if opts.Stream {
		logger.Debug("Requesting streamed chat completion.")
		return o.stream(ctx, params)
	}

	logger.Debug("Requesting chat completion.")
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}
	return replyFrom(resp.Choices[0]), nil
}

func (o *OpenAI) stream(ctx context.Context, params openai.ChatCompletionNewParams) (*Reply, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		if !acc.AddChunk(stream.Current()) {
			return nil, errors.New("openai: could not accumulate stream chunk")
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai streaming error: %w", err)
	}
	if len(acc.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}
	return replyFrom(acc.Choices[0]), nil
}

func replyFrom(choice openai.ChatCompletionChoice) *Reply {
	reply := &Reply{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply
}

func (o *OpenAI) params(messages []Message, opts Options) (openai.ChatCompletionNewParams, error) {
	model := opts.Model
	if model == "" {
		model = o.model
	}
	params := openai.ChatCompletionNewParams{Model: model}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			params.Messages = append(params.Messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: calls},
			})
		case RoleTool:
			if m.ToolCallID == "" {
				return params, fmt.Errorf("tool message without a tool call id")
			}
			params.Messages = append(params.Messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			return params, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	for _, t := range opts.Tools {
		def := openai.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: openai.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			def.Description = openai.String(t.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{Function: def})
	}
	return params, nil
}
