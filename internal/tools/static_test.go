package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic().
		Add(Spec{Name: "upper", Description: "uppercase text"}, func(ctx context.Context, p map[string]any) (any, error) {
			text, _ := p["text"].(string)
			return map[string]any{"text": text + "!"}, nil
		}).
		Add(Spec{Name: "fail"}, func(ctx context.Context, p map[string]any) (any, error) {
			return nil, errors.New("broken")
		})

	specs, err := s.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "fail", specs[0].Name)
	assert.Equal(t, "upper", specs[1].Name)

	out, err := s.CallTool(ctx, "upper", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "hi!"}, out)

	_, err = s.CallTool(ctx, "fail", nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fail", te.Tool)
	assert.EqualError(t, err, `tool "fail": broken`)

	_, err = s.CallTool(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestStatic_AddPanics(t *testing.T) {
	fn := func(ctx context.Context, p map[string]any) (any, error) { return nil, nil }
	s := NewStatic().Add(Spec{Name: "a"}, fn)

	assert.Panics(t, func() { s.Add(Spec{Name: "a"}, fn) })
	assert.Panics(t, func() { s.Add(Spec{}, fn) })
	assert.Panics(t, func() { s.Add(Spec{Name: "b"}, nil) })
}
