package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/zclconf/go-cty/cty"
)

// ResponseByID returns the response with the given id, failing the test when
// there is none.
func ResponseByID(t *testing.T, result *AppResult, id string) AppResponse {
	t.Helper()
	for _, r := range result.Responses {
		if r.ID == id {
			return r
		}
	}
	require.Failf(t, "response not found", "no response with id %q among %d responses", id, len(result.Responses))
	return AppResponse{}
}

// AssertOutput checks that the request succeeded with the expected output.
// JSON round-tripping turns lists into tuples, so values are compared
// structurally by their JSON encoding.
func AssertOutput(t *testing.T, result *AppResult, id string, want cty.Value) {
	t.Helper()
	resp := ResponseByID(t, result, id)
	require.Empty(t, resp.Error, "request %q failed", id)
	wantJSON, err := ctyconv.MarshalJSON(want)
	require.NoError(t, err)
	gotJSON, err := ctyconv.MarshalJSON(resp.Output)
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON), "request %q", id)
}

// AssertFailed checks that the request failed with an error containing substr.
func AssertFailed(t *testing.T, result *AppResult, id, substr string) {
	t.Helper()
	resp := ResponseByID(t, result, id)
	require.Contains(t, resp.Error, substr, "request %q", id)
}
