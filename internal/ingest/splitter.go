// Package ingest turns files on disk into an embedded vector store: extract
// text, split it into overlapping chunks, embed, and record what was indexed.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// Default splitter geometry, in characters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// separators are tried in order: paragraph breaks, line breaks, sentence
// ends, then single spaces. Text that still exceeds the chunk size after all
// of them is cut at fixed rune windows.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into chunks of about chunkSize runes, with adjacent
// chunks sharing chunkOverlap runes so sentences near a boundary are not
// lost to either side.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter builds a splitter. Non-positive size or overlap fall back to
// the defaults; overlap is clamped below size.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split returns the chunks of text in document order. Empty or whitespace
// only text yields nil.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var chunks []string
	for _, c := range s.split(text, 0) {
		c = strings.TrimSpace(c)
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (s *Splitter) split(text string, sepIdx int) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return s.hardSplit(text)
	}

	parts := strings.SplitAfter(text, separators[sepIdx])
	if len(parts) == 1 {
		return s.split(text, sepIdx+1)
	}

	var pieces []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > s.chunkSize {
			pieces = append(pieces, s.split(p, sepIdx+1)...)
		} else {
			pieces = append(pieces, p)
		}
	}
	return s.merge(pieces)
}

// merge packs pieces into chunks up to chunkSize runes, carrying the overlap
// tail of each emitted chunk into the next.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen == 0 {
			return
		}
		chunk := cur.String()
		chunks = append(chunks, chunk)
		cur.Reset()
		tail := overlapTail(chunk, s.chunkOverlap)
		cur.WriteString(tail)
		curLen = utf8.RuneCountInString(tail)
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+n > s.chunkSize {
			flush()
		}
		cur.WriteString(p)
		curLen += n
	}
	if strings.TrimSpace(cur.String()) != "" {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// hardSplit cuts text at fixed rune windows when no separator helps.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// overlapTail returns the last n runes of chunk, extended left to the
// nearest word boundary so the carried text starts cleanly.
func overlapTail(chunk string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= n {
		return chunk
	}
	tail := string(runes[len(runes)-n:])
	if i := strings.IndexByte(tail, ' '); i >= 0 && i+1 < len(tail) {
		return tail[i+1:]
	}
	return tail
}
