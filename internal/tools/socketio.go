package tools

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names of the tool protocol. Requests carry an "id" that the server
// echoes in its answer.
const (
	EventListTools  = "list_tools"
	EventToolList   = "tool_list"
	EventCallTool   = "call_tool"
	EventToolResult = "tool_result"
)

const (
	defaultPath           = "/socket.io/"
	defaultConnectTimeout = 15 * time.Second
	defaultCallTimeout    = 30 * time.Second
)

// ErrDisconnected fails calls that were in flight when the connection dropped.
var ErrDisconnected = errors.New("tool server disconnected")

// SocketIOConfig configures a SocketIO client.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
	// CallTimeout bounds a single request when the caller's context has no deadline.
	CallTimeout time.Duration
}

// answer is the envelope of both response events.
type answer struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Tools  []Spec `json:"tools,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SocketIO is a Client talking to a remote tool server over socket.io.
type SocketIO struct {
	io          *socket.Socket
	logger      *slog.Logger
	callTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan answer
}

// DialSocketIO connects to a tool server and waits for the connection to be
// established.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("component", "tools", "url", cfg.URL)
	logger.Info("Connecting to tool server...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	path := parsedURL.Path
	if path == "" || path == "/" {
		path = defaultPath
	}

	opts := socket.DefaultOptions()
	opts.SetPath(path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	c := &SocketIO{
		logger:      logger,
		callTimeout: cfg.CallTimeout,
		pending:     make(map[string]chan answer),
	}
	if c.callTimeout <= 0 {
		c.callTimeout = defaultCallTimeout
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	c.io = manager.Socket(cfg.Namespace, opts)

	connectChan := make(chan error, 1)
	c.io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to tool server", "sid", c.io.Id())
		connectChan <- nil
	})
	c.io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})
	c.io.On(types.EventName(EventToolList), c.onAnswer)
	c.io.On(types.EventName(EventToolResult), c.onAnswer)
	c.io.On(types.EventName("disconnect"), func(...any) {
		logger.Warn("Tool server connection lost")
		c.failPending()
	})

	c.io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			c.io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		c.io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		c.io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", connectTimeout)
	}
}

// ListTools asks the server for its tool list.
func (c *SocketIO) ListTools(ctx context.Context) ([]Spec, error) {
	ans, err := c.request(ctx, EventListTools, map[string]any{})
	if err != nil {
		return nil, err
	}
	if ans.Error != "" {
		return nil, errors.New(ans.Error)
	}
	return ans.Tools, nil
}

// CallTool invokes a tool on the server.
func (c *SocketIO) CallTool(ctx context.Context, name string, params map[string]any) (any, error) {
	if params == nil {
		params = map[string]any{}
	}
	ans, err := c.request(ctx, EventCallTool, map[string]any{"name": name, "params": params})
	if err != nil {
		return nil, &ToolError{Tool: name, Err: err}
	}
	if ans.Error != "" {
		return nil, &ToolError{Tool: name, Err: errors.New(ans.Error)}
	}
	return ans.Result, nil
}

// Close disconnects from the server.
func (c *SocketIO) Close() error {
	c.logger.Info("Disconnecting from tool server", "sid", c.io.Id())
	c.io.Disconnect()
	c.failPending()
	return nil
}

func (c *SocketIO) request(ctx context.Context, event string, payload map[string]any) (answer, error) {
	if !c.io.Connected() {
		return answer{}, ErrDisconnected
	}
	id := uuid.NewString()
	payload["id"] = id
	ch := make(chan answer, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	c.logger.Debug("Emitting tool request", "event", event, "id", id)
	if err := c.io.Emit(event, payload); err != nil {
		return answer{}, fmt.Errorf("emit %s: %w", event, err)
	}

	select {
	case ans, ok := <-ch:
		if !ok {
			return answer{}, ErrDisconnected
		}
		return ans, nil
	case <-ctx.Done():
		return answer{}, fmt.Errorf("waiting for %s answer: %w", event, ctx.Err())
	}
}

func (c *SocketIO) onAnswer(data ...any) {
	if len(data) == 0 {
		c.logger.Warn("Tool answer without payload")
		return
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		c.logger.Warn("Tool answer is not encodable", "error", err)
		return
	}
	var ans answer
	if err := json.Unmarshal(raw, &ans); err != nil {
		c.logger.Warn("Tool answer has an unexpected shape", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[ans.ID]
	delete(c.pending, ans.ID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("Dropping answer for unknown request", "id", ans.ID)
		return
	}
	ch <- ans
}

func (c *SocketIO) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
