// Package cli provides output helpers for the Kotaeru command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteRetrieveResponse writes retrieval results to w in the given format.
func WriteRetrieveResponse(w io.Writer, resp *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "\nFound %d results in %dms for %q\n", resp.Total, resp.QueryTime, resp.Query)
	if len(resp.Variants) > 1 {
		fmt.Fprintf(w, "Searched %d query variants\n", len(resp.Variants))
	}
	if resp.Degraded {
		fmt.Fprintln(w, "(degraded: query rewriting unavailable, used the original query only)")
	}
	fmt.Fprintln(w)
	for i, result := range resp.Results {
		writeChunk(w, i+1, result)
	}
	return nil
}

// WriteQueryResponse writes a generated answer to w in the given format.
func WriteQueryResponse(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if resp.Degraded {
		fmt.Fprintln(w, "\n(degraded: query rewriting unavailable)")
	}
	fmt.Fprintf(w, "\n--- %d sources, %dms ---\n", len(resp.Sources), resp.QueryTime)
	for i, source := range resp.Sources {
		writeChunk(w, i+1, source)
	}
	return nil
}

func writeChunk(w io.Writer, rank int, chunk models.RetrievedChunk) {
	fmt.Fprintf(w, "─────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f", rank, chunk.SimilarityScore)
	if name := chunk.Metadata.GetString("file_name"); name != "" {
		fmt.Fprintf(w, " | %s", name)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(chunk.Content, 200))
}
