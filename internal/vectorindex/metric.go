package vectorindex

import (
	"fmt"
	"math"
)

// Metric scores the distance between two vectors of equal length.
// Lower scores are closer.
type Metric interface {
	Name() string
	Distance(a, b []float32) float64
}

// SquaredL2 is the sum of squared component differences.
type SquaredL2 struct{}

func (SquaredL2) Name() string { return "l2" }

func (SquaredL2) Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Cosine is one minus the cosine similarity. A zero vector on either side
// scores 1.
type Cosine struct{}

func (Cosine) Name() string { return "cosine" }

func (Cosine) Distance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// MetricByName resolves a configured metric name.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "", "l2":
		return SquaredL2{}, nil
	case "cosine":
		return Cosine{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}
