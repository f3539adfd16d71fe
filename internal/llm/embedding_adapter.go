package llm

import (
	"context"
	"math"
)

// EmbeddingAdapter turns an EmbeddingGenerator into the Embed/Cosine shape
// the Entropy Filter's EmbeddingSource expects, converting model output
// ([]float32) to the float64 vectors the filter's cosine math uses.
type EmbeddingAdapter struct {
	Generator EmbeddingGenerator
	ctx       context.Context
}

// NewEmbeddingAdapter wraps generator for use as an entropy.EmbeddingSource.
// ctx is used for every Embed call the filter makes through this adapter,
// since EmbeddingSource's interface predates context plumbing.
func NewEmbeddingAdapter(ctx context.Context, generator EmbeddingGenerator) *EmbeddingAdapter {
	return &EmbeddingAdapter{Generator: generator, ctx: ctx}
}

func (a *EmbeddingAdapter) Embed(text string) ([]float64, error) {
	v32, err := a.Generator.Embed(a.ctx, text)
	if err != nil {
		return nil, err
	}
	v64 := make([]float64, len(v32))
	for i, f := range v32 {
		v64[i] = float64(f)
	}
	return v64, nil
}

func (a *EmbeddingAdapter) Cosine(a2, b []float64) float64 {
	return cosineSimilarity(a2, b)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
