package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string           `json:"model"`
	Messages []map[string]any `json:"messages"`
	Tools    []map[string]any `json:"tools"`
	Stream   bool             `json:"stream"`
}

func completionServer(t *testing.T, body string, streamed bool) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, captured))
		if streamed {
			w.Header().Set("Content-Type", "text/event-stream")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestClient(srv *httptest.Server) *OpenAI {
	return NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "test-model"})
}

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "test-model",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "hello there"}
  }]
}`

func TestOpenAI_Chat(t *testing.T) {
	srv, captured := completionServer(t, completion, false)
	client := newTestClient(srv)

	temp := 0.2
	reply, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, Options{Temperature: &temp, MaxTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, "hello there", reply.Content)
	assert.Equal(t, "stop", reply.FinishReason)
	assert.Empty(t, reply.ToolCalls)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0]["role"])
	assert.Equal(t, "hi", captured.Messages[1]["content"])
}

func TestOpenAI_ToolCalls(t *testing.T) {
	body := `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1,
  "model": "test-model",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "search", "arguments": "{\"q\":\"go\"}"}
      }]
    }
  }]
}`
	srv, captured := completionServer(t, body, false)
	client := newTestClient(srv)

	reply, err := client.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "find go"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: "search", Arguments: `{"q":"x"}`}}},
		{Role: RoleTool, ToolCallID: "call_0", Content: "nothing"},
	}, Options{
		Model: "other-model",
		Tools: []ToolSpec{{
			Name:        "search",
			Description: "web search",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Name: "search", Arguments: `{"q":"go"}`}, reply.ToolCalls[0])
	assert.Equal(t, "tool_calls", reply.FinishReason)

	assert.Equal(t, "other-model", captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "tool", captured.Messages[2]["role"])
	assert.Equal(t, "call_0", captured.Messages[2]["tool_call_id"])
	require.Len(t, captured.Tools, 1)
	fn, ok := captured.Tools[0]["function"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "search", fn["name"])
}

func TestOpenAI_Stream(t *testing.T) {
	chunk := func(content string, finish string) string {
		fr := "null"
		if finish != "" {
			fr = fmt.Sprintf("%q", finish)
		}
		return fmt.Sprintf(`data: {"id":"c","object":"chat.completion.chunk","created":1,"model":"test-model","choices":[{"index":0,"delta":{"content":%q},"finish_reason":%s}]}`+"\n\n", content, fr)
	}
	body := chunk("hel", "") + chunk("lo", "stop") + "data: [DONE]\n\n"
	srv, captured := completionServer(t, body, true)
	client := newTestClient(srv)

	reply, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Content)
	assert.True(t, captured.Stream)
}

func TestOpenAI_InvalidMessages(t *testing.T) {
	client := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: "http://127.0.0.1:1", MaxRetries: 0})

	_, err := client.Chat(context.Background(), []Message{{Role: "narrator", Content: "x"}}, Options{})
	assert.ErrorContains(t, err, "unknown message role")

	_, err = client.Chat(context.Background(), []Message{{Role: RoleTool, Content: "x"}}, Options{})
	assert.ErrorContains(t, err, "tool call id")
}

func TestOpenAI_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(srv).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(ctx context.Context, msgs []Message, opts Options) (*Reply, error) {
		return &Reply{Content: msgs[len(msgs)-1].Content}, nil
	})
	reply, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "echo"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "echo", reply.Content)
}
