// Package embedding provides text embedding providers: a local ONNX model,
// an OpenAI-compatible API, and a deterministic mock for tests.
package embedding

import (
	"context"
	"math"
)

// Embedder produces fixed-length vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// NormalizeL2 scales x in place to unit L2 norm. Zero vectors are unchanged.
// All providers normalize their output so cosine and dot agree on it.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range x {
		x[i] *= inv
	}
}
