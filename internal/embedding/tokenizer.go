package embedding

import (
	"hash/fnv"
	"strings"
)

// BERT special token IDs used by MiniLM-family models.
const (
	tokenCLS = 101
	tokenSEP = 102
)

// Tokenizer produces the three input sequences BERT-style models expect.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordTokenizer is a whitespace tokenizer with hashed token IDs. It is not a
// real WordPiece vocabulary, but it is deterministic and keeps the model
// input well-formed, which is all the fallback path needs.
type WordTokenizer struct{}

// Tokenize splits text on whitespace and emits padded sequences of maxTokens.
func (WordTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(hashToken(word))
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = tokenSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// hashToken maps a word into the model's vocabulary range, avoiding the
// reserved special-token IDs at the bottom.
func hashToken(word string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return h.Sum32()%29000 + 1000
}
