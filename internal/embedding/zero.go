package embedding

import "context"

// Zero returns all-zero vectors. It stands in when no embedding service is
// configured and is the fallback vector shape used on embedding failure.
type Zero struct {
	dimension int
}

var _ Embedder = Zero{}

// NewZero creates a Zero embedder; a non-positive dimension uses DefaultOllamaDimension.
func NewZero(dimension int) Zero {
	if dimension <= 0 {
		dimension = DefaultOllamaDimension
	}
	return Zero{dimension: dimension}
}

// Vector returns an all-zero vector of length dim.
func Vector(dim int) []float32 {
	return make([]float32, dim)
}

func (z Zero) Embed(context.Context, string) ([]float32, error) {
	return Vector(z.dimension), nil
}

func (z Zero) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = Vector(z.dimension)
	}
	return out, nil
}

func (z Zero) Model() string  { return "none" }
func (z Zero) Dimension() int { return z.dimension }
