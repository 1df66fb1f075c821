package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/memcapsule/internal/config"
	"github.com/raphaelgruber/memcapsule/internal/models"
)

// LangchainClient wraps a langchaingo embedder with dimension validation.
// It serves hosted providers such as OpenAI.
type LangchainClient struct {
	model     embeddings.Embedder
	dimension int
	modelName string
	logger    *slog.Logger
}

var _ Embedder = (*LangchainClient)(nil)

// NewLangchainClient creates an OpenAI-backed embedder from configuration.
func NewLangchainClient(cfg config.Config, logger *slog.Logger) (*LangchainClient, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	llm, err := openai.New(
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithEmbeddingModel(cfg.EmbedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	model, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return newLangchainClient(model, cfg.EmbedModel, cfg.EmbedDimension, logger), nil
}

// knownDimensions are the output sizes of common hosted embedding models.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// defaultDimension is the dimension assumed when none is configured.
func defaultDimension(model string) int {
	if d, ok := knownDimensions[model]; ok {
		return d
	}
	return DefaultOllamaDimension
}

func newLangchainClient(model embeddings.Embedder, name string, dimension int, logger *slog.Logger) *LangchainClient {
	if logger == nil {
		logger = slog.Default()
	}
	if dimension <= 0 {
		dimension = defaultDimension(name)
	}
	return &LangchainClient{model: model, dimension: dimension, modelName: name, logger: logger}
}

// Embed generates an embedding vector for text.
func (e *LangchainClient) Embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	e.logger.Debug("embedding text", "model", e.modelName, "text_len", textLen)

	start := time.Now()
	vectors, err := e.EmbedBatch(ctx, []string{text})
	duration := time.Since(start)

	if err != nil {
		e.logger.Warn("embedding failed", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}

	e.logger.Debug("embedding complete", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LangchainClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := e.model.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", models.ErrUpstreamUnavailable, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: count mismatch: got %d, want %d", models.ErrUpstreamUnavailable, len(vectors), len(texts))
	}

	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedding %d: %w: got %d, want %d", i, models.ErrDimensionMismatch, len(v), e.dimension)
		}
	}

	return vectors, nil
}

// Model returns the embedding model name.
func (e *LangchainClient) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *LangchainClient) Dimension() int {
	return e.dimension
}
