// Package llm provides text generation through langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/memcapsule/internal/config"
	"github.com/raphaelgruber/memcapsule/internal/models"
)

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	logger    *slog.Logger
}

// NewModel creates an LLM model based on configuration.
// It returns (nil, nil) when the provider is "none".
func NewModel(cfg config.Config, logger *slog.Logger) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderNone:
		return nil, nil

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.LLMModel)}
		if cfg.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return newModel(model, cfg.LLMModel, logger), nil
}

func newModel(model llms.Model, name string, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{llm: model, modelName: name, logger: logger}
}

// Generate generates text based on a prompt. Failures and empty completions
// wrap models.ErrUpstreamUnavailable; auth and quota failures also wrap ErrFatalAPI.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	duration := time.Since(start)

	if err != nil {
		m.logger.Warn("generation failed", "model", m.modelName, "prompt_len", len(prompt), "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("%w: generate: %w", models.ErrUpstreamUnavailable, wrapFatalError(err))
	}
	if strings.TrimSpace(response) == "" {
		return "", fmt.Errorf("%w: generate: empty completion", models.ErrUpstreamUnavailable)
	}

	m.logger.Debug("generation complete", "model", m.modelName, "prompt_len", len(prompt), "output_len", len(response), "duration_ms", duration.Milliseconds())
	return response, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}
