// Package llm wraps the chat-completion providers behind one client type.
package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pretzelai/email-use/core/agent/tools"
	"github.com/pretzelai/email-use/core/domain"
)

// Client talks to one chat-completion backend. Both supported providers speak
// the same wire protocol, so provider selection is a configuration concern
// (see Registry), not a type hierarchy.
type Client struct {
	client    *openai.Client
	maxTokens int
}

// ClientConfig holds per-provider connection settings.
type ClientConfig struct {
	APIKey    string
	BaseURL   string // empty selects the provider's default endpoint
	MaxTokens int
}

// NewClient creates a client for one provider endpoint.
func NewClient(cfg ClientConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return &Client{
		client:    openai.NewClientWithConfig(apiCfg),
		maxTokens: maxTokens,
	}
}

// CompleteWithTools calls the model with function calling enabled and returns
// the free-text content plus every tool call the response carried, in
// emission order. Provider failures are wrapped in domain.ErrAIInvocation.
func (c *Client) CompleteWithTools(ctx context.Context, model, systemPrompt, userPrompt string, toolDefs []tools.ToolDefinition) (string, []tools.ToolCall, error) {
	openaiTools := make([]openai.Tool, len(toolDefs))
	for i, t := range toolDefs {
		openaiTools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toJSONSchema(t.Parameters),
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: openaiTools,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrAIInvocation, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil, nil
	}

	var text string
	var toolCalls []tools.ToolCall
	for _, choice := range resp.Choices {
		if text == "" {
			text = choice.Message.Content
		}
		for _, tc := range choice.Message.ToolCalls {
			var args map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					// Rejected whole: every emitted call must reach the executor.
					return "", nil, fmt.Errorf("%w: malformed arguments for tool %s: %v", domain.ErrAIInvocation, tc.Function.Name, err)
				}
			}
			toolCalls = append(toolCalls, tools.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			})
		}
	}

	return text, toolCalls, nil
}

// toJSONSchema converts a parameter list to the JSON-schema object the
// function-calling API expects.
func toJSONSchema(params []tools.ParameterSpec) map[string]any {
	properties := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
