// Package retrieval turns user queries into ranked chunks: embed, search the
// vector store, filter by score, and optionally fuse results across LLM
// generated query variations.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/vectorstore"
)

// ErrEmptyStore is returned when retrieval runs against a store with no
// vectors, typically before any ingest has completed.
var ErrEmptyStore = errors.New("vector store is empty")

// Rewriter expands a query into variations. The original query must be the
// first element of the returned slice.
type Rewriter interface {
	Rewrite(ctx context.Context, query string, n int) ([]string, error)
}

// Retriever serves similarity queries against a swappable store. The store
// itself is immutable once built; rebuilds publish a fresh store with Swap,
// so readers never see partial state.
type Retriever struct {
	store    atomic.Pointer[vectorstore.Store]
	embedder embedding.Embedder
	rewriter Rewriter // nil disables multi-query fusion
	logger   *zap.Logger
}

// New builds a retriever. store may be nil when no index exists yet; rewriter
// may be nil when no LLM is configured.
func New(store *vectorstore.Store, embedder embedding.Embedder, rewriter Rewriter, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{
		embedder: embedder,
		rewriter: rewriter,
		logger:   logger,
	}
	if store != nil {
		r.store.Store(store)
	}
	return r
}

// Swap publishes a newly built store. In-flight queries finish against the
// store they started with.
func (r *Retriever) Swap(store *vectorstore.Store) {
	r.store.Store(store)
	if store != nil {
		stats := store.Stats()
		r.logger.Info("vector store swapped",
			zap.Int("vectors", stats.NumVectors),
			zap.Int("dim", stats.EmbeddingDim))
	}
}

// Store returns the currently published store, or nil.
func (r *Retriever) Store() *vectorstore.Store {
	return r.store.Load()
}

// Stats reports on the current store. A nil store reports zero vectors.
func (r *Retriever) Stats() vectorstore.Stats {
	s := r.store.Load()
	if s == nil {
		return vectorstore.Stats{}
	}
	return s.Stats()
}

// Retrieve embeds query and returns up to k chunks scoring at or above
// minScore, ordered best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, minScore float64) ([]models.RetrievedChunk, error) {
	store := r.store.Load()
	if store == nil || store.Len() == 0 {
		return nil, ErrEmptyStore
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	hits, err := store.Search(vec, k)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}
		results = append(results, models.RetrievedChunk{
			Content:         hit.Chunk.Content,
			Metadata:        hit.Chunk.Metadata.Clone(),
			SimilarityScore: hit.Score,
		})
	}

	r.logger.Debug("retrieve",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("hits", len(results)),
		zap.Duration("took", time.Since(start)))
	return results, nil
}
