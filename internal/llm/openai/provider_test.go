package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"memorykeep/internal/llm"
)

type stubResponsesClient struct {
	params   responses.ResponseNewParams
	response *responses.Response
	err      error
}

func (c *stubResponsesClient) New(
	_ context.Context,
	body responses.ResponseNewParams,
	_ ...option.RequestOption,
) (*responses.Response, error) {
	c.params = body
	if c.err != nil {
		return nil, c.err
	}

	return c.response, nil
}

func textResponse(text string) *responses.Response {
	return &responses.Response{
		Output: []responses.ResponseOutputItemUnion{{
			Type: "message",
			Content: []responses.ResponseOutputMessageContentUnion{{
				Type: "output_text",
				Text: text,
			}},
		}},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(llm.Config{Provider: llm.ProviderOpenAI}); err == nil {
		t.Fatal("missing api key accepted")
	}
}

func TestGenerateBuildsRequest(t *testing.T) {
	t.Parallel()

	stub := &stubResponsesClient{response: textResponse("  a summary  ")}
	provider := &Provider{responses: stub}

	text, err := provider.Generate(context.Background(), llm.Request{
		System:          "be brief",
		Prompt:          "summarize this",
		Model:           "gpt-4o-mini",
		MaxOutputTokens: 256,
		Temperature:     0.2,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "a summary" {
		t.Fatalf("text = %q, want trimmed output", text)
	}

	if stub.params.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", stub.params.Model)
	}
	if got := stub.params.Input.OfString.Value; got != "summarize this" {
		t.Fatalf("input = %q", got)
	}
	if got := stub.params.Instructions.Value; got != "be brief" {
		t.Fatalf("instructions = %q", got)
	}
	if got := stub.params.MaxOutputTokens.Value; got != 256 {
		t.Fatalf("max output tokens = %d", got)
	}
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	provider := &Provider{responses: &stubResponsesClient{response: textResponse("x")}}

	if _, err := provider.Generate(context.Background(), llm.Request{Model: "m"}); err == nil {
		t.Fatal("empty prompt accepted")
	}
}

func TestGenerateWrapsAPIErrors(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("insufficient_quota")
	provider := &Provider{responses: &stubResponsesClient{err: apiErr}}

	_, err := provider.Generate(context.Background(), llm.Request{Prompt: "p", Model: "m"})
	if !errors.Is(err, apiErr) {
		t.Fatalf("generate error = %v, want wrapped api error", err)
	}
}

func TestGenerateRejectsEmptyOutput(t *testing.T) {
	t.Parallel()

	provider := &Provider{responses: &stubResponsesClient{response: textResponse("   ")}}

	if _, err := provider.Generate(context.Background(), llm.Request{Prompt: "p", Model: "m"}); err == nil {
		t.Fatal("empty output accepted")
	}
}
