package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// Limited throttles calls to an Embedder. A batch counts as one call.
type Limited struct {
	next    Embedder
	limiter *rate.Limiter
}

var _ Embedder = (*Limited)(nil)

// NewLimited allows rps calls per second with the given burst.
func NewLimited(next Embedder, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", models.ErrUpstreamUnavailable, err)
	}
	return nil
}

// Embed waits for a token, then delegates.
func (l *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Embed(ctx, text)
}

// EmbedBatch waits for a token, then delegates.
func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.EmbedBatch(ctx, texts)
}

func (l *Limited) Model() string  { return l.next.Model() }
func (l *Limited) Dimension() int { return l.next.Dimension() }
