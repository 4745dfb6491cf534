package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/agentgrid/internal/app"
	"github.com/vk/agentgrid/internal/task"
)

// APIKeyEnv names the environment variable holding the language-model API key.
const APIKeyEnv = "AGENTGRID_LLM_API_KEY"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("agentgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
agentgrid - runs agent handler routines over a stream of JSON-lines requests.

Usage:
  agentgrid [options] [HANDLERS_PATH]

Arguments:
  HANDLERS_PATH
    Path to a single .hcl file or a directory containing handler .hcl files.

Requests are read one JSON object per line: {"id": "...", "module": "...", "input": ...}
Responses are written to stdout in completion order. Logs go to stderr.
The language-model API key is read from `+APIKeyEnv+`.

Options:
`)
		flagSet.PrintDefaults()
	}

	handlersFlag := flagSet.String("handlers", "", "Path to the handler file or directory.")
	hFlag := flagSet.String("H", "", "Path to the handler file or directory (shorthand).")
	requestsFlag := flagSet.String("requests", app.StdinPath, "Path to the JSON-lines request file. '-' reads stdin.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 10, "Number of requests processed concurrently. 0 is unbounded.")
	taskWorkersFlag := flagSet.Int("task-workers", task.DefaultWorkers, "Number of awaited calls executed concurrently.")
	llmBaseURLFlag := flagSet.String("llm-base-url", "", "Base URL of an OpenAI-compatible API. Empty uses the provider default.")
	llmModelFlag := flagSet.String("llm-model", "", "Default language model.")
	streamFlag := flagSet.Bool("stream", false, "Request streamed completions from the language model.")
	toolsURLFlag := flagSet.String("tools-url", "", "socket.io URL of a tool server. Empty disables remote tools.")
	toolsNamespaceFlag := flagSet.String("tools-namespace", "/", "socket.io namespace of the tool server.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *handlersFlag != "" {
		path = *handlersFlag
	} else if *hFlag != "" {
		path = *hFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Handlers path determined.", "path", path)

	if path == "" {
		slog.Debug("No handlers path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		HandlersPath:    path,
		RequestsPath:    *requestsFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		RequestWorkers:  *workersFlag,
		TaskWorkers:     *taskWorkersFlag,
		LLMBaseURL:      *llmBaseURLFlag,
		LLMModel:        *llmModelFlag,
		LLMAPIKey:       os.Getenv(APIKeyEnv),
		LLMStream:       *streamFlag,
		ToolsURL:        *toolsURLFlag,
		ToolsNamespace:  *toolsNamespaceFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "handlers", config.HandlersPath, "requests", config.RequestsPath)
	return config, false, nil
}
