package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/vk/agentgrid/internal/app"
	"github.com/vk/agentgrid/internal/ctyconv"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// AppResponse is one decoded response line.
type AppResponse struct {
	ID     string
	Module string
	Output cty.Value
	Yields []cty.Value
	Error  string
}

// AppResult holds everything an App run produced.
type AppResult struct {
	// Responses are in the order they were written.
	Responses []AppResponse
	LogOutput string
	Err       error
}

// AppTestCase describes one end-to-end run of the application.
type AppTestCase struct {
	// Handlers maps file names to HCL handler definitions.
	Handlers map[string]string
	// Requests is the JSON-lines request stream.
	Requests string
	// Modules replace the core modules when set.
	Modules []registry.Module
	// Configure may adjust the configuration before the app is built.
	Configure func(*app.Config)
}

// RunApp writes the handler files to a temporary directory, builds the App
// and serves the requests. Startup errors fail the test; run errors are
// returned in the result.
func RunApp(t *testing.T, tc AppTestCase) *AppResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range tc.Handlers {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(Unindent(content)), 0600))
	}

	cfg, err := app.NewConfig(app.Config{
		HandlersPath: dir,
		RequestsPath: app.StdinPath,
		LogFormat:    "text",
		LogLevel:     "debug",
	})
	require.NoError(t, err)
	if tc.Configure != nil {
		tc.Configure(cfg)
	}

	ctx, _ := Context(t)
	out := &SafeBuffer{}
	logs := &SafeBuffer{}
	a, err := app.NewApp(out, logs, cfg, tc.Modules...)
	require.NoError(t, err, "app startup failed:\n%s", logs.String())

	runErr := a.Run(ctx, strings.NewReader(tc.Requests))
	t.Cleanup(func() {
		if os.Getenv("AGENTGRID_TEST_LOGS") == "true" {
			t.Logf("--- App Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return &AppResult{
		Responses: decodeResponses(t, out.String()),
		LogOutput: logs.String(),
		Err:       runErr,
	}
}

func decodeResponses(t *testing.T, stream string) []AppResponse {
	t.Helper()
	var out []AppResponse
	scanner := bufio.NewScanner(strings.NewReader(stream))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw struct {
			ID     string            `json:"id"`
			Module string            `json:"module"`
			Output json.RawMessage   `json:"output"`
			Yields []json.RawMessage `json:"yields"`
			Error  string            `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &raw), "bad response line %q", line)

		resp := AppResponse{ID: raw.ID, Module: raw.Module, Error: raw.Error}
		var err error
		resp.Output, err = ctyconv.UnmarshalJSON(raw.Output)
		require.NoError(t, err)
		for _, y := range raw.Yields {
			v, err := ctyconv.UnmarshalJSON(y)
			require.NoError(t, err)
			resp.Yields = append(resp.Yields, v)
		}
		out = append(out, resp)
	}
	require.NoError(t, scanner.Err())
	return out
}
