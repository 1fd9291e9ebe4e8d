package llm

import (
	"fmt"

	"github.com/pretzelai/email-use/core/domain"
)

// Anthropic exposes an OpenAI-compatible chat completions endpoint, so both
// providers are served by the same client against different base URLs.
const anthropicBaseURL = "https://api.anthropic.com/v1/"

// Registry resolves a rule's provider key to a concrete client at call time.
type Registry struct {
	clients map[domain.AIProvider]*Client
}

// RegistryConfig carries the per-provider API keys.
type RegistryConfig struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MaxTokens       int
}

// NewRegistry builds clients for every provider with a configured key.
func NewRegistry(cfg RegistryConfig) *Registry {
	clients := make(map[domain.AIProvider]*Client)
	if cfg.OpenAIAPIKey != "" {
		clients[domain.ProviderOpenAI] = NewClient(ClientConfig{
			APIKey:    cfg.OpenAIAPIKey,
			MaxTokens: cfg.MaxTokens,
		})
	}
	if cfg.AnthropicAPIKey != "" {
		clients[domain.ProviderAnthropic] = NewClient(ClientConfig{
			APIKey:    cfg.AnthropicAPIKey,
			BaseURL:   anthropicBaseURL,
			MaxTokens: cfg.MaxTokens,
		})
	}
	return &Registry{clients: clients}
}

// Resolve returns the client for a provider key.
func (r *Registry) Resolve(provider domain.AIProvider) (*Client, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for provider %q", provider)
	}
	return client, nil
}
