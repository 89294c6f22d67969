// Package mock provides a deterministic embedder for tests.
//
// Vectors are derived from a hash of the input text, so identical text
// always produces identical embeddings and different text produces
// near-orthogonal ones. Similarity thresholds can be exercised without a
// real model by embedding the same (or slightly padded) text.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultDimensions = 384

// Embedder implements pkg.Embedder with hash-seeded pseudo-random vectors.
type Embedder struct {
	dims int
}

// New creates a mock embedder with the default dimensionality.
func New() *Embedder {
	return &Embedder{dims: defaultDimensions}
}

// Embed generates a deterministic unit vector from the text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dims)
	state := seed
	var norm float64
	for i := range vec {
		// Linear congruential step (Numerical Recipes constants).
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state>>33))/float64(1<<30) - 1.0
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}
