// Package embedding turns journal text into vectors through an external
// embedding service.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/memcapsule/internal/config"
)

// Embedder defines the interface for text embedding providers.
// Failures wrap models.ErrUpstreamUnavailable.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// More efficient than multiple Embed calls for bulk operations.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	Dimension() int
}

// New creates the Embedder selected by cfg.EmbedProvider, rate limited when
// cfg.EmbedRPS is positive.
func New(cfg config.Config, logger *slog.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch cfg.EmbedProvider {
	case config.ProviderOllama, "":
		e, err = NewOllamaClient(cfg.OllamaHost, cfg.EmbedModel, cfg.EmbedDimension)
	case config.ProviderOpenAI:
		e, err = NewLangchainClient(cfg, logger)
	case config.ProviderNone:
		e = NewZero(cfg.EmbedDimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbedProvider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EmbedRPS > 0 {
		e = NewLimited(e, cfg.EmbedRPS, 1)
	}
	return e, nil
}
