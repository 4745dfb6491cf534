package app

import (
	"io"

	"github.com/vk/agentgrid/internal/llm"
	"github.com/vk/agentgrid/internal/registry"
	"github.com/vk/agentgrid/internal/tools"
	"github.com/vk/agentgrid/modules/env_vars"
	"github.com/vk/agentgrid/modules/http_request"
	llmmod "github.com/vk/agentgrid/modules/llm"
	"github.com/vk/agentgrid/modules/print"
	toolsmod "github.com/vk/agentgrid/modules/tools"
)

// coreModules is the set of modules compiled into the agentgrid binary. The
// returned tools module has a local, empty client; Run replaces it when a
// tool server is configured.
func coreModules(cfg *Config, logW io.Writer) ([]registry.Module, *toolsmod.Module) {
	client := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Model:      cfg.LLMModel,
		MaxRetries: -1,
	})
	toolsModule := &toolsmod.Module{Client: tools.NewStatic()}

	return []registry.Module{
		&env_vars.Module{},
		&print.Module{Out: logW},
		&http_request.Module{},
		&llmmod.Module{Client: client, Model: cfg.LLMModel, Stream: cfg.LLMStream},
		toolsModule,
	}, toolsModule
}
