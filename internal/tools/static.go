package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func implements one in-process tool.
type Func func(ctx context.Context, params map[string]any) (any, error)

// Static is a Client over in-process functions.
type Static struct {
	mu    sync.RWMutex
	specs map[string]Spec
	funcs map[string]Func
}

// NewStatic returns an empty Static client.
func NewStatic() *Static {
	return &Static{
		specs: make(map[string]Spec),
		funcs: make(map[string]Func),
	}
}

// Add registers a tool under spec.Name. It panics on an empty or duplicate name.
func (s *Static) Add(spec Spec, fn Func) *Static {
	if spec.Name == "" {
		panic("tools: empty tool name")
	}
	if fn == nil {
		panic(fmt.Sprintf("tools: nil function for tool %q", spec.Name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.funcs[spec.Name]; exists {
		panic(fmt.Sprintf("tools: tool %q registered twice", spec.Name))
	}
	s.specs[spec.Name] = spec
	s.funcs[spec.Name] = fn
	return s
}

// ListTools returns the registered tools sorted by name.
func (s *Static) ListTools(ctx context.Context) ([]Spec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Spec, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CallTool runs the named tool.
func (s *Static) CallTool(ctx context.Context, name string, params map[string]any) (any, error) {
	s.mu.RLock()
	fn, ok := s.funcs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, &ToolError{Tool: name, Err: ErrUnknownTool}
	}
	if params == nil {
		params = map[string]any{}
	}
	out, err := fn(ctx, params)
	if err != nil {
		return nil, &ToolError{Tool: name, Err: err}
	}
	return out, nil
}
