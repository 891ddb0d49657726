package llm

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient is the Claude-backed alternate to StreamingClient, selected
// when Config.Provider == "anthropic". It implements the same single-step
// ToolCallingClient shape so the Phase Orchestrator is provider-agnostic.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient creates a Claude Messages API client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm.anthropic"),
	}, nil
}

// CompleteStep performs exactly one Messages API call and returns either a
// final text answer or pending tool calls for the caller to execute.
func (a *AnthropicClient) CompleteStep(
	ctx context.Context,
	messages []Message,
	tools []ToolDefinition,
	systemPrompt string,
	temperature float64,
) (StepResult, error) {
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(a.model),
		MaxTokens:   4096,
		System:      systemPrompt,
		Temperature: floatPtr(temperature),
		Messages:    buildAnthropicMessages(messages),
		Tools:       buildAnthropicTools(tools),
	}

	resp, err := a.client.CreateMessages(ctx, req)
	if err != nil {
		a.logger.Error("anthropic messages call failed", zap.Error(err))
		return StepResult{}, fmt.Errorf("anthropic: %w", err)
	}

	var content string
	var toolCalls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				content += *block.Text
			}
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse == nil {
				continue
			}
			argsJSON, err := json.Marshal(block.MessageContentToolUse.Input)
			if err != nil {
				continue
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   block.MessageContentToolUse.ID,
				Type: "function",
				Function: ToolCallFunc{
					Name:      block.MessageContentToolUse.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}

	return StepResult{Content: content, ToolCalls: toolCalls}, nil
}

func buildAnthropicMessages(messages []Message) []anthropic.Message {
	result := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			result = append(result, anthropic.Message{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewToolResultMessageContent(m.ToolCallID, m.Content, false),
				},
			})
		case RoleAssistant:
			blocks := []anthropic.MessageContent{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextMessageContent(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
				inputJSON, _ := json.Marshal(input)
				blocks = append(blocks, anthropic.NewToolUseMessageContent(tc.ID, tc.Function.Name, inputJSON))
			}
			result = append(result, anthropic.Message{Role: anthropic.RoleAssistant, Content: blocks})
		default:
			result = append(result, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		}
	}
	return result
}

func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolDefinition, len(tools))
	for i, def := range tools {
		schema, _ := json.Marshal(def.Parameters)
		result[i] = anthropic.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: json.RawMessage(schema),
		}
	}
	return result
}

func floatPtr(f float64) *float32 {
	v := float32(f)
	return &v
}
