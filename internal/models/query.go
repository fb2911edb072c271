package models

import "fmt"

// Default and maximum values applied by request validation. These mirror the
// API defaults: a handful of chunks is enough context for one answer.
const (
	DefaultK         = 3
	MaxK             = 10
	DefaultVariants  = 2
	MaxVariants      = 5
	DefaultKPerQuery = 3
)

// RetrieveRequest asks for ranked chunks for a query.
type RetrieveRequest struct {
	Query string `json:"query"`
	// K is the final number of results to return.
	K int `json:"k,omitempty"`
	// MinScore drops results scoring below it. Zero means no filtering.
	MinScore float64 `json:"min_score,omitempty"`
	// NumVariations is the number of query paraphrases to fuse over.
	// Zero disables multi-query fusion.
	NumVariations int `json:"num_variations,omitempty"`
	// KPerQuery is the per-variant result cap during fusion.
	KPerQuery int `json:"k_per_query,omitempty"`
}

// Validate checks the request and normalizes out-of-range fields.
// Returns an error only when the query is empty.
func (r *RetrieveRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K <= 0 {
		r.K = DefaultK
	}
	if r.K > MaxK {
		r.K = MaxK
	}
	if r.NumVariations < 0 {
		r.NumVariations = 0
	}
	if r.NumVariations > MaxVariants {
		r.NumVariations = MaxVariants
	}
	if r.KPerQuery <= 0 {
		r.KPerQuery = DefaultKPerQuery
	}
	if r.MinScore < 0 {
		r.MinScore = 0
	}
	return nil
}

// QueryRequest asks for a generated answer grounded in retrieved chunks.
type QueryRequest struct {
	Query         string  `json:"query"`
	K             int     `json:"k,omitempty"`
	MinScore      float64 `json:"min_score,omitempty"`
	NumVariations int     `json:"num_variations,omitempty"`
}

// Validate checks the request and normalizes out-of-range fields.
func (r *QueryRequest) Validate() error {
	rr := RetrieveRequest{Query: r.Query, K: r.K, MinScore: r.MinScore, NumVariations: r.NumVariations}
	if err := rr.Validate(); err != nil {
		return err
	}
	r.K = rr.K
	r.MinScore = rr.MinScore
	r.NumVariations = rr.NumVariations
	return nil
}
