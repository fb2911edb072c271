//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a sentence-transformer model (e.g. all-MiniLM-L6-v2
// exported to ONNX) locally via onnxruntime. Requires CGO and the
// onnxruntime shared library.
//
// Tensors are allocated once and reused across calls; inference is
// serialized by a mutex, with an LRU cache in front of it.
type ONNXEmbedder struct {
	session   *ort.AdvancedSession
	dims      int
	maxTokens int
	tokenizer Tokenizer
	cache     *cache

	mu        sync.Mutex
	inputIDs  *ort.Tensor[int64]
	attention *ort.Tensor[int64]
	tokenType *ort.Tensor[int64]
	output    *ort.Tensor[float32]
}

// NewONNXEmbedder loads the model at modelPath. The ONNX runtime environment
// is initialized on first use.
func NewONNXEmbedder(modelPath string, dims, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	e := &ONNXEmbedder{
		dims:      dims,
		maxTokens: maxTokens,
		tokenizer: WordTokenizer{},
		cache:     newCache(cacheSize),
	}

	shape := ort.NewShape(1, int64(maxTokens))
	ids, mask, types := e.tokenizer.Tokenize("", maxTokens)

	var err error
	if e.inputIDs, err = ort.NewTensor(shape, ids); err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	if e.attention, err = ort.NewTensor(shape, mask); err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	if e.tokenType, err = ort.NewTensor(shape, types); err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	if e.output, err = ort.NewTensor(ort.NewShape(1, int64(dims)), make([]float32, dims)); err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attention, e.tokenType},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}
	return e, nil
}

// Embed returns the normalized embedding for text.
func (e *ONNXEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.get(text); ok {
		return vec, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attention.GetData(), mask)
	copy(e.tokenType.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	vec := make([]float32, e.dims)
	copy(vec, e.output.GetData()[:e.dims])
	NormalizeL2(vec)
	e.cache.put(text, vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dims }

// Close releases the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	e.destroyTensors()
	return err
}

func (e *ONNXEmbedder) destroyTensors() {
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attention, e.tokenType} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	e.inputIDs, e.attention, e.tokenType, e.output = nil, nil, nil, nil
}
