// Package vectorstore provides a flat vector store with linear-scan
// similarity search and a three-file on-disk format.
//
// The store is built once (bulk appends) and then served read-only. It does
// no internal locking: the caller must not run AddVectors concurrently with
// searches. Serving layers share one immutable store and swap in a freshly
// built one to pick up corpus changes.
package vectorstore

import (
	"fmt"
	"iter"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Store holds embedding vectors and their source chunks in parallel,
// index-aligned slices: vectors[i] belongs to chunks[i], always equal length.
type Store struct {
	dim     int
	metric  Metric
	vectors [][]float32
	chunks  []*models.Chunk
}

// Stats describes the store's size and configuration.
type Stats struct {
	NumVectors   int    `json:"num_vectors"`
	EmbeddingDim int    `json:"embedding_dim"`
	Metric       Metric `json:"similarity_metric"`
}

// New creates an empty store with the given dimension and metric.
func New(dim int, metric Metric) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrInvalidConfig, dim)
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &Store{dim: dim, metric: m}, nil
}

// AddVectors appends vectors with their chunks, preserving order. The append
// is all-or-nothing: every vector is checked against the store dimension
// before anything is stored, so a failed call leaves the store unchanged.
func (s *Store) AddVectors(vectors [][]float32, chunks []*models.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", ErrDimensionMismatch, len(vectors), len(chunks))
	}
	for i, vec := range vectors {
		if len(vec) != s.dim {
			return fmt.Errorf("%w: vector %d has length %d, store dimension is %d", ErrDimensionMismatch, i, len(vec), s.dim)
		}
	}
	for i, vec := range vectors {
		v := make([]float32, s.dim)
		copy(v, vec)
		s.vectors = append(s.vectors, v)
		s.chunks = append(s.chunks, chunks[i])
	}
	return nil
}

// Stats returns the vector count, dimension, and metric.
func (s *Store) Stats() Stats {
	return Stats{NumVectors: len(s.vectors), EmbeddingDim: s.dim, Metric: s.metric}
}

// Len returns the number of stored vectors.
func (s *Store) Len() int { return len(s.vectors) }

// Dim returns the embedding dimension fixed at construction.
func (s *Store) Dim() int { return s.dim }

// Metric returns the similarity metric fixed at construction.
func (s *Store) Metric() Metric { return s.metric }

// All iterates (vector, chunk) pairs in insertion order. Each range starts
// from the beginning; the yielded vector slice must not be modified.
func (s *Store) All() iter.Seq2[[]float32, *models.Chunk] {
	return func(yield func([]float32, *models.Chunk) bool) {
		for i := range s.vectors {
			if !yield(s.vectors[i], s.chunks[i]) {
				return
			}
		}
	}
}
