package app

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/scheduler"
	"github.com/zclconf/go-cty/cty"
)

var jsonNull = json.RawMessage("null")

// requestLine is one line of the request stream.
type requestLine struct {
	ID     string          `json:"id"`
	Module string          `json:"module"`
	Input  json.RawMessage `json:"input"`
}

// responseLine is one line of the response stream.
type responseLine struct {
	ID        string            `json:"id"`
	Module    string            `json:"module,omitempty"`
	Output    json.RawMessage   `json:"output"`
	Yields    []json.RawMessage `json:"yields,omitempty"`
	Error     string            `json:"error,omitempty"`
	ElapsedMS float64           `json:"elapsed_ms"`
}

// decodeRequest parses a request line. The returned request carries whatever
// identification could be read even when an error is returned.
func decodeRequest(line []byte) (scheduler.Request, error) {
	var raw requestLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return scheduler.Request{}, fmt.Errorf("invalid request: %w", err)
	}
	req := scheduler.Request{ID: raw.ID, Module: raw.Module}
	if raw.Module == "" {
		return req, errors.New("invalid request: module is required")
	}
	input, err := ctyconv.UnmarshalJSON(raw.Input)
	if err != nil {
		return req, fmt.Errorf("invalid request input: %w", err)
	}
	req.Input = input
	return req, nil
}

// encodeResponse converts a scheduler response to its wire form.
func encodeResponse(resp scheduler.Response) responseLine {
	line := responseLine{
		ID:        resp.ID,
		Module:    resp.Module,
		Output:    jsonNull,
		ElapsedMS: float64(resp.Elapsed) / float64(time.Millisecond),
	}
	if resp.Err != nil {
		line.Error = resp.Err.Error()
		return line
	}
	var err error
	if line.Output, err = marshalValue(resp.Output); err != nil {
		line.Output = jsonNull
		line.Error = fmt.Sprintf("encoding output: %v", err)
		return line
	}
	for i, y := range resp.Yields {
		b, err := marshalValue(y)
		if err != nil {
			line.Error = fmt.Sprintf("encoding yield %d: %v", i, err)
			return line
		}
		line.Yields = append(line.Yields, b)
	}
	return line
}

func marshalValue(v cty.Value) (json.RawMessage, error) {
	b, err := ctyconv.MarshalJSON(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// lineWriter serializes JSON lines from concurrent writers.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &lineWriter{enc: enc}
}

func (w *lineWriter) write(line responseLine) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(line)
}
