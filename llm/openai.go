package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"psychotest/config"
)

// OpenAIGenerator sends requests to OpenAI-compatible chat completion endpoints,
// one client per configured provider.
type OpenAIGenerator struct {
	clients map[string]*openai.Client
}

// NewOpenAIGenerator builds clients for every provider that has an API key.
// Providers without a key are skipped and reported as unavailable.
func NewOpenAIGenerator(providers map[string]config.LLMProvider) *OpenAIGenerator {
	clients := make(map[string]*openai.Client, len(providers))
	for key, provider := range providers {
		if provider.APIKey == "" {
			log.Printf("WARN: [Generator] Provider '%s' has no API key; skipping.", key)
			continue
		}
		clientConfig := openai.DefaultConfig(provider.APIKey)
		if provider.BaseURL != "" {
			clientConfig.BaseURL = provider.BaseURL
		}
		clients[key] = openai.NewClientWithConfig(clientConfig)
		log.Printf("INFO: [Generator] Provider '%s' ready.", key)
	}
	return &OpenAIGenerator{clients: clients}
}

func (g *OpenAIGenerator) Available(provider string) bool {
	_, ok := g.clients[provider]
	return ok
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	client, ok := g.clients[req.Provider]
	if !ok {
		return "", fmt.Errorf("provider '%s': %w", req.Provider, ErrUnavailable)
	}
	if req.Model == "" {
		return "", fmt.Errorf("provider '%s' has no model configured: %w", req.Provider, ErrUnavailable)
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Input})

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}

	log.Printf("INFO: [Generator] Requesting completion from '%s' (model %s, prompt %s v%s).", req.Provider, req.Model, req.PromptID, req.PromptVersion)
	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			log.Printf("ERROR: [Generator] Provider '%s' returned HTTP %d: %s", req.Provider, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", &ProviderError{Provider: req.Provider, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: req.Provider, Err: errors.New("response has no choices")}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &ProviderError{Provider: req.Provider, Err: errors.New("response text is empty")}
	}
	return text, nil
}
