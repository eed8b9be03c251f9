// Package llm provides the text generation surface used by automation
// modules, with one provider implementation per supported vendor.
package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	// ProviderOpenAI selects the OpenAI Responses API implementation.
	ProviderOpenAI = "openai"
	// ProviderGemini selects the Gemini Developer API implementation.
	ProviderGemini = "gemini"
)

// Request is one non-streaming generation request.
type Request struct {
	// System is the optional system instruction.
	System string
	// Prompt is the user prompt.
	Prompt string
	// Model identifies the provider model name to call.
	Model string
	// MaxOutputTokens optionally limits generated token count.
	MaxOutputTokens int
	// Temperature optionally controls output randomness.
	Temperature float64
}

// Validate checks request coherence.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("validate llm request: empty prompt")
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("validate llm request: empty model")
	}
	if r.MaxOutputTokens < 0 {
		return fmt.Errorf("validate llm request: max output tokens must be >= 0")
	}
	if r.Temperature < 0 {
		return fmt.Errorf("validate llm request: temperature must be >= 0")
	}

	return nil
}

// Generator produces one completion per request.
type Generator interface {
	// Generate returns the full output text for one request.
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and credentials one provider.
type Config struct {
	// Provider is openai or gemini.
	Provider string
	// APIKey is the provider credential.
	APIKey string
	// BaseURL optionally overrides the provider endpoint (OpenAI only).
	BaseURL string
}

// Validate checks provider configuration.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderOpenAI, ProviderGemini:
	case "":
		return fmt.Errorf("validate llm config: missing provider")
	default:
		return fmt.Errorf("validate llm config: unsupported provider %q", c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("validate llm config: missing api key")
	}

	return nil
}
