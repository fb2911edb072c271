// Package rewrite generates alternative phrasings of a search query so that
// retrieval can cast a wider net over the index.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const rewriteSystemPrompt = "You rephrase search queries. Given a question, produce alternative phrasings that mean the same thing but use different words. Output one phrasing per line with no numbering or commentary."

// minVariantLen filters out degenerate model output lines such as bare
// numbering or punctuation.
const minVariantLen = 10

// Generator produces free-form text from a prompt. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Rewriter expands a query into semantic variations via an LLM.
type Rewriter struct {
	gen    Generator
	logger *zap.Logger
}

// New builds a rewriter around gen.
func New(gen Generator, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{gen: gen, logger: logger}
}

// Rewrite returns the original query followed by up to n variations. The
// original is always first so retrieval never loses the user's own wording.
// An LLM failure returns an error; callers fall back to the original query
// alone.
func (r *Rewriter) Rewrite(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		return []string{query}, nil
	}

	prompt := fmt.Sprintf("Generate %d alternative phrasings of this search query:\n\n%s", n, query)
	raw, err := r.gen.Generate(ctx, rewriteSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("rewrite query: %w", err)
	}

	queries := []string{query}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if len(line) <= minVariantLen {
			continue
		}
		if strings.EqualFold(line, query) {
			continue
		}
		queries = append(queries, line)
		if len(queries) > n {
			break
		}
	}

	r.logger.Debug("query rewritten",
		zap.String("query", query),
		zap.Int("variants", len(queries)-1))
	return queries, nil
}
