package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/semlayer/agent-engine/pkg/config"
)

func TestNewToolCallingClient_OpenAIDefault(t *testing.T) {
	client, err := NewToolCallingClient(&config.LLMConfig{
		Endpoint: "https://api.openai.com/v1",
		Model:    "gpt-4o",
		APIKey:   "test-key",
	}, zap.NewNop())

	require.NoError(t, err)
	_, ok := client.(*StreamingClient)
	assert.True(t, ok, "default provider should build a StreamingClient")
}

func TestNewToolCallingClient_Anthropic(t *testing.T) {
	client, err := NewToolCallingClient(&config.LLMConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
		APIKey:   "test-key",
	}, zap.NewNop())

	require.NoError(t, err)
	_, ok := client.(*AnthropicClient)
	assert.True(t, ok, "anthropic provider should build an AnthropicClient")
}

func TestNewToolCallingClient_UnknownProvider(t *testing.T) {
	_, err := NewToolCallingClient(&config.LLMConfig{
		Provider: "bogus",
		Model:    "x",
		APIKey:   "k",
	}, zap.NewNop())

	require.Error(t, err)
}
