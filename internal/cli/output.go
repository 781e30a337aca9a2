// Package cli renders search, ingestion and status output for the lexsearch commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	rule           = "─────────────────────────────────────────────────────────"
	snippetPreview = 240
)

// Status is the summary printed by the status command.
type Status struct {
	Documents       int64                   `json:"documents"`
	ByStatus        map[models.Status]int64 `json:"documents_by_status"`
	Chunks          int64                   `json:"chunks"`
	VectorIndexSize int                     `json:"vector_index_size"`
	VectorBackend   string                  `json:"vector_backend"`
	Embedding       string                  `json:"embedding_provider"`
	Dimensions      int                     `json:"embedding_dimensions"`
	DiskUsageBytes  *int64                  `json:"disk_usage_bytes,omitempty"`
	DatabasePath    string                  `json:"database_path"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a search response. Unknown formats fall back to text.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms (%s search)\n",
		response.Total, response.Query, response.QueryTime, response.Mode)
	if response.Degraded {
		for _, b := range response.Branches {
			if b.Error != "" {
				fmt.Fprintf(w, "warning: %s search unavailable: %s\n", b.Branch, b.Error)
			}
		}
	}
	fmt.Fprintln(w)
	for _, r := range response.Results {
		writeResult(w, r)
	}
	return nil
}

func writeResult(w io.Writer, r *models.SearchResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "#%d  %.4f (semantic %.4f, keyword %.4f)\n", r.Rank, r.Score, r.SemanticScore, r.KeywordScore)
	title := r.Title
	if title == "" {
		title = r.DocumentID
	}
	fmt.Fprintf(w, "%s [%s, %s] chunk %d\n", title, r.DocumentType, r.Jurisdiction, r.Ordinal)
	fmt.Fprintf(w, "ID: %s\n", r.DocumentID)
	if len(r.Citations) > 0 {
		fmt.Fprintf(w, "Citations: %s\n", strings.Join(r.Citations, "; "))
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Text, snippetPreview))
}

// WriteOutcomes writes one line per ingested document followed by a summary.
func WriteOutcomes(w io.Writer, outcomes []*models.ProcessingOutcome, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, outcomes)
	}
	var completed, skipped, failed int
	for _, o := range outcomes {
		switch {
		case o.Status == models.StatusFailed:
			failed++
			fmt.Fprintf(w, "FAILED   %s  %s\n", o.DocumentID, o.Error)
		case o.Skipped:
			skipped++
			fmt.Fprintf(w, "SKIPPED  %s  already indexed\n", o.DocumentID)
		default:
			completed++
			fmt.Fprintf(w, "OK       %s  %d chunks via %s\n", o.DocumentID, o.Chunks, o.Method)
		}
	}
	fmt.Fprintf(w, "\n%d indexed, %d skipped, %d failed\n", completed, skipped, failed)
	return nil
}

// WriteSimilar writes documents similar to documentID.
func WriteSimilar(w io.Writer, documentID string, similar []*models.SimilarDocument, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, similar)
	}
	if len(similar) == 0 {
		fmt.Fprintf(w, "No documents similar to %s\n", documentID)
		return nil
	}
	fmt.Fprintf(w, "Documents similar to %s:\n\n", documentID)
	for i, s := range similar {
		fmt.Fprintf(w, "  [%d] %s (%.3f)\n", i+1, s.Title, s.Similarity)
		fmt.Fprintf(w, "      %s  %s, %s  %d matching chunks\n", s.DocumentID, s.DocumentType, s.Jurisdiction, s.MatchedChunks)
	}
	return nil
}

// WriteStatus writes the index summary.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "documents:          %d\n", status.Documents)
	for _, s := range []models.Status{models.StatusCompleted, models.StatusProcessing, models.StatusPending, models.StatusFailed} {
		if n := status.ByStatus[s]; n > 0 {
			fmt.Fprintf(w, "  %-16s  %d\n", s, n)
		}
	}
	fmt.Fprintf(w, "chunks:             %d\n", status.Chunks)
	fmt.Fprintf(w, "vector_index_size:  %d\n", status.VectorIndexSize)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "vector_backend:     %s\n", status.VectorBackend)
	fmt.Fprintf(w, "embedding:          %s (%d dims)\n", status.Embedding, status.Dimensions)
	fmt.Fprintf(w, "database_path:      %s\n", status.DatabasePath)
	return nil
}
