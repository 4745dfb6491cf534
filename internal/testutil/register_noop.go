package testutil

import (
	"context"

	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// NoOpModule registers an async function "noop" that does nothing. It is
// useful for routines that only need an awaitable call to exist.
type NoOpModule struct{}

// Register implements registry.Module.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterAsync("noop", func(ctx context.Context, args []cty.Value) (cty.Value, error) {
		return ctyconv.Null, nil
	})
}
