package vectorstore

import (
	"fmt"
	"sort"

	"github.com/hyperjump/kotaeru/internal/models"
)

// SearchResult is a single similarity hit.
type SearchResult struct {
	Chunk *models.Chunk
	Score float64
}

// Search scores every stored vector against query under the configured
// metric and returns at most k results sorted by descending score. Equal
// scores keep insertion order, so results are deterministic.
//
// Searching an empty store returns an empty slice, not an error. The scan is
// O(n*d) per query, which is fine up to low hundreds of thousands of
// vectors; an approximate index would slot in behind this same contract.
func (s *Store) Search(query []float32, k int) ([]*SearchResult, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has length %d, store dimension is %d", ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 || len(s.vectors) == 0 {
		return []*SearchResult{}, nil
	}

	scores := make([]float64, len(s.vectors))
	order := make([]int, len(s.vectors))
	for i, vec := range s.vectors {
		scores[i] = s.metric.Score(query, vec)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	results := make([]*SearchResult, k)
	for i := 0; i < k; i++ {
		idx := order[i]
		results[i] = &SearchResult{Chunk: s.chunks[idx], Score: scores[idx]}
	}
	return results, nil
}
