package models

import "time"

// RetrievedChunk is a chunk augmented with its similarity score for one query.
// Ephemeral: produced per request, never persisted.
type RetrievedChunk struct {
	Content         string   `json:"content"`
	Metadata        Metadata `json:"metadata,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
}

// RetrieveResponse is the response for a retrieve request.
type RetrieveResponse struct {
	Results []RetrievedChunk `json:"results"`
	Total   int              `json:"total"`
	// Variants lists the query texts actually searched (original first).
	Variants []string `json:"variants,omitempty"`
	// Degraded is true when multi-query fusion fell back to single-query
	// retrieval because the rewriter was absent or failed.
	Degraded  bool   `json:"degraded,omitempty"`
	QueryTime int64  `json:"query_time_ms"`
	Query     string `json:"query"`
}

// QueryResponse is the response for an answer-generation request.
type QueryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []RetrievedChunk `json:"sources,omitempty"`
	Degraded  bool             `json:"degraded,omitempty"`
	QueryTime int64            `json:"query_time_ms"`
}

// Document records one ingested source file in the registry.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Type       string    `json:"type"`
	Chunks     int       `json:"chunks"`
	SizeBytes  int64     `json:"size_bytes"`
	MTimeNano  int64     `json:"mtime_nano"`
	IngestedAt time.Time `json:"ingested_at"`
}
