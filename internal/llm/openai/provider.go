// Package openai implements llm.Generator on the OpenAI Responses API.
package openai

import (
	"context"
	"fmt"
	"strings"

	"memorykeep/internal/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// Provider is an OpenAI-backed generator.
type Provider struct {
	responses openAIResponsesClient
}

type openAIResponsesClient interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

type openAIResponseServiceAdapter struct {
	service responses.ResponseService
}

func (a openAIResponseServiceAdapter) New(
	ctx context.Context,
	body responses.ResponseNewParams,
	opts ...option.RequestOption,
) (*responses.Response, error) {
	return a.service.New(ctx, body, opts...)
}

// New builds an OpenAI generator.
func New(cfg llm.Config) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new openai generator: missing api key")
	}

	options := make([]option.RequestOption, 0, 2)
	options = append(options, option.WithAPIKey(apiKey))
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &Provider{
		responses: openAIResponseServiceAdapter{service: client.Responses},
	}, nil
}

// Generate runs one non-streaming Responses API request.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	if p == nil || p.responses == nil {
		return "", fmt.Errorf("openai generate: nil provider")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: strings.TrimSpace(req.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Prompt),
		},
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.Instructions = openai.String(system)
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	response, err := p.responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		return "", fmt.Errorf("openai generate: empty output")
	}

	return text, nil
}
