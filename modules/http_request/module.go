// Package http_request exposes outbound HTTP calls to handler routines as the
// async function "http_request(url, options)".
//
// options may set method (default GET), headers (an object of strings) and
// body (a string, or any other value which is sent as JSON). The result is an
// object with status_code, body and headers.
package http_request

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vk/agentgrid/internal/ctxlog"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is shared by every call. A default client is created on Register
	// when nil.
	Client *resty.Client
}

// Register registers the "http_request" async function.
func (m *Module) Register(r *registry.Registry) {
	if m.Client == nil {
		m.Client = resty.New()
	}
	r.RegisterAsync("http_request", m.Do)
}

// Close releases the client's resources.
func (m *Module) Close() error {
	if m.Client == nil {
		return nil
	}
	return m.Client.Close()
}

// Do is the "http_request" async function.
func (m *Module) Do(ctx context.Context, args []cty.Value) (cty.Value, error) {
	if m.Client == nil {
		return cty.NilVal, errors.New("http_request: module not registered")
	}
	if len(args) < 1 || len(args) > 2 {
		return cty.NilVal, fmt.Errorf("http_request: expected 1 or 2 arguments, got %d", len(args))
	}
	if args[0].IsNull() || args[0].Type() != cty.String {
		return cty.NilVal, errors.New("http_request: url must be a string")
	}
	url := args[0].AsString()

	req := m.Client.R().SetContext(ctx)
	method := http.MethodGet
	if len(args) == 2 {
		native, err := ctyconv.ToNative(args[1])
		if err != nil {
			return cty.NilVal, fmt.Errorf("http_request: %w", err)
		}
		opts, ok := native.(map[string]any)
		if !ok && native != nil {
			return cty.NilVal, fmt.Errorf("http_request: options must be an object, got %s", args[1].Type().FriendlyName())
		}
		for key, val := range opts {
			switch key {
			case "method":
				s, ok := val.(string)
				if !ok {
					return cty.NilVal, errors.New("http_request: method must be a string")
				}
				method = strings.ToUpper(s)
			case "headers":
				hdrs, ok := val.(map[string]any)
				if !ok {
					return cty.NilVal, errors.New("http_request: headers must be an object")
				}
				for name, hv := range hdrs {
					req.SetHeader(name, fmt.Sprint(hv))
				}
			case "body":
				if s, ok := val.(string); ok {
					req.SetBody(s)
					continue
				}
				req.SetHeader("Content-Type", "application/json")
				req.SetBody(val)
			default:
				return cty.NilVal, fmt.Errorf("http_request: unknown option %q", key)
			}
		}
	}

	logger := ctxlog.FromContext(ctx).With("module", "http_request", "method", method, "url", url)
	logger.Debug("Making HTTP request.")

	resp, err := req.Execute(method, url)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute request: %w", err)
	}
	logger.Debug("Received HTTP response.", "status", resp.StatusCode())

	headers := make(map[string]cty.Value, len(resp.Header()))
	for name := range resp.Header() {
		headers[strings.ToLower(name)] = cty.StringVal(resp.Header().Get(name))
	}
	headersVal := cty.EmptyObjectVal
	if len(headers) > 0 {
		headersVal = cty.ObjectVal(headers)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"status_code": cty.NumberIntVal(int64(resp.StatusCode())),
		"body":        cty.StringVal(string(resp.Bytes())),
		"headers":     headersVal,
	}), nil
}
