package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600), "failed to set up test file")
	return path
}

func TestRun_InvalidHandlerFile(t *testing.T) {
	t.Parallel()

	invalidHCL := `
		handler "echo" {
			forward = "return input"
		// Missing closing brace here
	`
	path := writeFile(t, t.TempDir(), "main.hcl", invalidHCL)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	runErr := run(context.Background(), strings.NewReader(""), out, errOut, []string{path})

	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "failed to load handlers")
	require.Empty(t, out.String())
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := run(context.Background(), strings.NewReader(""), out, errOut, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, errOut.String(), "Usage:", "Expected help text to be printed")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := run(context.Background(), strings.NewReader(""), out, errOut, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_ServesRequests(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "echo.hcl", `
handler "echo" {
  forward = "return input"
}
`)
	in := strings.NewReader(`{"id":"r1","module":"echo","input":{"text":"hi"}}` + "\n")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := run(context.Background(), in, out, errOut, []string{"--log-level=error", path})
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"hi"}`, extractOutput(t, out.String()))
}

// extractOutput returns the "output" member of the single response line.
func extractOutput(t *testing.T, lines string) string {
	t.Helper()
	trimmed := strings.TrimSpace(lines)
	require.NotContains(t, trimmed, "\n", "expected exactly one response line")
	var resp struct {
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(trimmed), &resp))
	require.Empty(t, resp.Error)
	return string(resp.Output)
}
