//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// ONNXEmbedder is unavailable without CGO. Builds without the onnxruntime
// bindings still compile; constructing the embedder fails at runtime.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails in non-CGO builds.
func NewONNXEmbedder(modelPath string, dims, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	return nil, errors.New("onnx embedder requires a CGO-enabled build")
}

func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("onnx embedder requires a CGO-enabled build")
}

func (e *ONNXEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errors.New("onnx embedder requires a CGO-enabled build")
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
