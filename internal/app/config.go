package app

import (
	"errors"
	"fmt"
)

// StdinPath selects standard input as the request source.
const StdinPath = "-"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	HandlersPath string // hcl handler files or directories
	RequestsPath string // JSON-lines requests, StdinPath for stdin

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	RequestWorkers int // concurrent requests, 0 is unbounded
	TaskWorkers    int // concurrent awaited calls

	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
	LLMStream  bool

	ToolsURL       string
	ToolsNamespace string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.HandlersPath == "" {
		return nil, errors.New("HandlersPath is a required configuration field and cannot be empty")
	}
	if cfg.RequestsPath == "" {
		cfg.RequestsPath = StdinPath
	}
	if cfg.RequestWorkers < 0 {
		return nil, fmt.Errorf("request workers must not be negative, got %d", cfg.RequestWorkers)
	}
	if cfg.TaskWorkers < 0 {
		return nil, fmt.Errorf("task workers must not be negative, got %d", cfg.TaskWorkers)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port out of range: %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
