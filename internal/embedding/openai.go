package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// APIEmbedder calls an OpenAI-compatible embeddings endpoint. Pointing
// baseURL at an Ollama or LM Studio server works the same way.
type APIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
	cache  *cache
}

// NewAPIEmbedder builds an embedder for the given endpoint and model.
// baseURL may be empty for the OpenAI default.
func NewAPIEmbedder(apiKey, baseURL, model string, dims, cacheSize int) *APIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &APIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dims:   dims,
		cache:  newCache(cacheSize),
	}
}

// Embed returns the normalized embedding for text.
func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.get(text); ok {
		return vec, nil
	}
	vecs, err := e.embedRemote(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	e.cache.put(text, vecs[0])
	return vecs[0], nil
}

// EmbedBatch embeds texts in one API call, going through the cache for
// entries already seen.
func (e *APIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var misses []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.get(text); ok {
			out[i] = vec
			continue
		}
		misses = append(misses, text)
		missIdx = append(missIdx, i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	vecs, err := e.embedRemote(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		e.cache.put(misses[j], vec)
		out[missIdx[j]] = vec
	}
	return out, nil
}

func (e *APIEmbedder) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings request: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embeddings request: index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		NormalizeL2(vec)
		out[item.Index] = vec
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *APIEmbedder) Dimensions() int { return e.dims }

// Close is a no-op; the HTTP client holds no resources.
func (e *APIEmbedder) Close() error { return nil }
