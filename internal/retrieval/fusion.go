package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/models"
)

// fingerprintLen is how much of a chunk's content identifies it during
// cross-query deduplication. Chunks rarely share a 100-rune prefix unless
// they are the same chunk.
const fingerprintLen = 100

// FusedResult is the outcome of a multi-query retrieval pass.
type FusedResult struct {
	Results  []models.RetrievedChunk
	Variants []string
	Degraded bool
}

// RetrieveFused runs retrieval over the original query plus LLM generated
// variations, deduplicates the union, and re-ranks by best score. When no
// rewriter is configured or rewriting fails, it degrades to single-query
// retrieval and flags the response.
func (r *Retriever) RetrieveFused(ctx context.Context, req models.RetrieveRequest) (*FusedResult, error) {
	queries := []string{req.Query}
	degraded := false

	if r.rewriter == nil {
		degraded = true
	} else if req.NumVariations > 0 {
		rewritten, err := r.rewriter.Rewrite(ctx, req.Query, req.NumVariations)
		if err != nil {
			r.logger.Warn("query rewrite failed, using original query only", zap.Error(err))
			degraded = true
		} else {
			queries = rewritten
		}
	}

	type entry struct {
		chunk models.RetrievedChunk
		order int // first-encountered position, breaks score ties
	}
	seen := make(map[string]*entry)
	var fused []*entry

	for _, q := range queries {
		hits, err := r.Retrieve(ctx, q, req.KPerQuery, req.MinScore)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			fp := fingerprint(hit.Content)
			if prev, ok := seen[fp]; ok {
				if hit.SimilarityScore > prev.chunk.SimilarityScore {
					prev.chunk = hit
				}
				continue
			}
			e := &entry{chunk: hit, order: len(fused)}
			seen[fp] = e
			fused = append(fused, e)
		}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].chunk.SimilarityScore != fused[j].chunk.SimilarityScore {
			return fused[i].chunk.SimilarityScore > fused[j].chunk.SimilarityScore
		}
		return fused[i].order < fused[j].order
	})

	results := make([]models.RetrievedChunk, 0, req.K)
	for _, e := range fused {
		if len(results) == req.K {
			break
		}
		results = append(results, e.chunk)
	}

	return &FusedResult{
		Results:  results,
		Variants: queries,
		Degraded: degraded,
	}, nil
}

// fingerprint identifies a chunk by its content prefix, counted in runes so
// multibyte text does not split a character.
func fingerprint(content string) string {
	n := 0
	for i := range content {
		if n == fingerprintLen {
			return content[:i]
		}
		n++
	}
	return content
}
