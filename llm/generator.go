package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable means no provider is configured for the request.
var ErrUnavailable = errors.New("text generation is not configured")

// ProviderError wraps a failed, cancelled, timed out or malformed generation.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Request is one generation call.
type Request struct {
	Provider      string
	Model         string
	PromptID      string
	PromptVersion string
	SystemPrompt  string
	Input         string // user message, usually a JSON document
}

// Generator produces narrative text from structured input.
type Generator interface {
	// Available reports whether the provider has usable credentials.
	Available(provider string) bool
	Generate(ctx context.Context, req Request) (string, error)
}
