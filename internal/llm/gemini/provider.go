// Package gemini implements llm.Generator on the Gemini Developer API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"memorykeep/internal/llm"

	"google.golang.org/genai"
)

// Provider is a Gemini-backed generator.
type Provider struct {
	models geminiModelsClient
}

type geminiModelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// New builds a Gemini generator.
func New(cfg llm.Config) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new gemini generator: missing api key")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if client == nil || client.Models == nil {
		return nil, fmt.Errorf("new gemini client: models client is nil")
	}

	return &Provider{models: client.Models}, nil
}

// Generate runs one non-streaming GenerateContent request.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	if p == nil || p.models == nil {
		return "", fmt.Errorf("gemini generate: nil provider")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if req.Temperature > 0 {
		temperature := float32(req.Temperature)
		config.Temperature = &temperature
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	contents := []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}

	response, err := p.models.GenerateContent(ctx, strings.TrimSpace(req.Model), contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty output")
	}

	return text, nil
}
