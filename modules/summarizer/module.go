// Package summarizer condenses one memory category into a short summary.
//
// A descriptor is one structured record of the form:
//
//	{"type": "memory-summary", "source": "notebook", "target": "core",
//	 "prompt": "optional extra instruction"}
//
// The source category is taken from the cycle context, summarized through
// the configured LLM generator, and the result is appended to the target
// category as a structured record.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"memorykeep/internal/llm"
	"memorykeep/pkg/memorykeep"
)

// ModuleType is the declared type this handler serves.
const ModuleType = "memory-summary"

const (
	defaultSourceCategory = "notebook"
	defaultTargetCategory = "core"

	systemInstruction = "You condense an agent's memory log into a short, " +
		"factual summary. Keep every concrete fact; drop filler."

	maxSourceBytes = 16 * 1024
)

// Config configures the summarizer handler.
type Config struct {
	// Generator produces summaries.
	Generator llm.Generator
	// Client writes summaries back through the Memory API.
	Client memorykeep.MemoryClient
	// Model is the provider model name used for every summary.
	Model string
	// MaxOutputTokens optionally bounds summary length.
	MaxOutputTokens int
	// Logger receives handler diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
}

// Module is the memory-summary automation handler.
type Module struct {
	generator       llm.Generator
	client          memorykeep.MemoryClient
	model           string
	maxOutputTokens int
	logger          *slog.Logger
}

// New creates the handler.
func New(cfg Config) (*Module, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("new memory-summary module: nil generator")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("new memory-summary module: nil memory client")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("new memory-summary module: empty model")
	}
	if cfg.MaxOutputTokens < 0 {
		return nil, fmt.Errorf("new memory-summary module: max output tokens must be >= 0")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Module{
		generator:       cfg.Generator,
		client:          cfg.Client,
		model:           strings.TrimSpace(cfg.Model),
		maxOutputTokens: cfg.MaxOutputTokens,
		logger:          logger,
	}, nil
}

// Handle summarizes the source category and appends the summary to the target.
func (m *Module) Handle(ctx context.Context, invocation memorykeep.Invocation) error {
	source := strings.TrimSpace(invocation.Descriptor.String("source"))
	if source == "" {
		source = defaultSourceCategory
	}
	target := strings.TrimSpace(invocation.Descriptor.String("target"))
	if target == "" {
		target = defaultTargetCategory
	}

	content, err := sourceContent(invocation.Memories, source)
	if err != nil {
		return fmt.Errorf("memory-summary: %w", err)
	}
	if content == "" {
		// Nothing fetched for the source this cycle; not an error.
		return nil
	}

	prompt := fmt.Sprintf("Summarize the following %q memory:\n\n%s", source, content)
	if extra := strings.TrimSpace(invocation.Descriptor.String("prompt")); extra != "" {
		prompt = extra + "\n\n" + prompt
	}

	summary, err := m.generator.Generate(ctx, llm.Request{
		System:          systemInstruction,
		Prompt:          prompt,
		Model:           m.model,
		MaxOutputTokens: m.maxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("memory-summary: %w", err)
	}

	record := map[string]any{
		"summary": summary,
		"source":  source,
	}
	if err := m.client.Append(ctx, invocation.Credential, target, record); err != nil {
		return fmt.Errorf("memory-summary: write back: %w", err)
	}

	m.logger.Info("memory summary written",
		"tenant", invocation.Tenant,
		"source", source,
		"target", target,
	)

	return nil
}

// sourceContent renders the source category's payload as prompt text,
// truncated to a bounded size.
func sourceContent(memories map[string]memorykeep.Payload, source string) (string, error) {
	payload, exists := memories[source]
	if !exists {
		return "", nil
	}

	var content string
	switch payload.Format {
	case memorykeep.FormatRaw:
		content = payload.Text
	case memorykeep.FormatStructured:
		var value any
		if err := json.Unmarshal(payload.JSON, &value); err != nil {
			return "", fmt.Errorf("decode source %s: %w", source, err)
		}
		rendered, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render source %s: %w", source, err)
		}
		content = string(rendered)
	default:
		return "", fmt.Errorf("source %s: unknown format %q", source, payload.Format)
	}

	content = strings.TrimSpace(content)
	if len(content) > maxSourceBytes {
		content = content[:maxSourceBytes]
	}

	return content, nil
}
