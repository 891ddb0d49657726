package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/semlayer/agent-engine/pkg/config"
)

// NewToolCallingClient builds the ToolCallingClient backing the Phase
// Orchestrator's step loop, selecting a provider per cfg.Provider.
func NewToolCallingClient(cfg *config.LLMConfig, logger *zap.Logger) (ToolCallingClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewStreamingClient(&Config{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(&Config{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
