package models

import "time"

// Branch names a retrieval branch of the hybrid engine.
type Branch string

const (
	BranchSemantic Branch = "semantic"
	BranchKeyword  Branch = "keyword"
)

// SearchResult is one ranked chunk.
type SearchResult struct {
	DocumentID    string   `json:"document_id"`
	ChunkID       string   `json:"chunk_id"`
	Ordinal       int      `json:"chunk_index"`
	Title         string   `json:"document_title"`
	DocumentType  string   `json:"document_type"`
	Jurisdiction  string   `json:"jurisdiction"`
	Text          string   `json:"content"`
	Highlighted   string   `json:"highlighted_content,omitempty"`
	Score         float64  `json:"score"`
	SemanticScore float64  `json:"semantic_score"`
	KeywordScore  float64  `json:"keyword_score"`
	Sources       []Branch `json:"sources"`
	PageNumber    int      `json:"page_number,omitempty"`
	SectionTitle  string   `json:"section_title,omitempty"`
	Concepts      []string `json:"legal_concepts,omitempty"`
	Citations     []string `json:"citations,omitempty"`
	Rank          int      `json:"rank"`
}

// BranchReport says whether a branch contributed and why not, if it failed.
type BranchReport struct {
	Branch      Branch `json:"branch"`
	Contributed bool   `json:"contributed"`
	Candidates  int    `json:"candidates"`
	Error       string `json:"error,omitempty"`
}

// SearchResponse is the response for a search request. An empty Results slice with a nil
// error means the search succeeded and found nothing.
type SearchResponse struct {
	Query     string          `json:"query"`
	Mode      SearchMode      `json:"search_type"`
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total_results"`
	Offset    int             `json:"offset"`
	Limit     int             `json:"limit"`
	Branches  []BranchReport  `json:"branches"`
	Degraded  bool            `json:"degraded"`
	QueryTime int64           `json:"query_time_ms"`
}

// SimilarDocument is a document ranked by average chunk similarity to a source document.
type SimilarDocument struct {
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title"`
	DocumentType  string  `json:"document_type"`
	Jurisdiction  string  `json:"jurisdiction"`
	Similarity    float64 `json:"similarity"`
	MatchedChunks int     `json:"matched_chunks"`
}

// CitationResult is a citation occurrence with surrounding context.
type CitationResult struct {
	Citation     string  `json:"citation"`
	DocumentID   string  `json:"document_id"`
	Title        string  `json:"document_title"`
	ChunkOrdinal int     `json:"chunk_index"`
	Context      string  `json:"context"`
	Confidence   float64 `json:"confidence"`
}

// AvailableFilters lists the filter values present in the corpus.
type AvailableFilters struct {
	DocumentTypes []string   `json:"document_types"`
	Jurisdictions []string   `json:"jurisdictions"`
	Concepts      []string   `json:"legal_concepts"`
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
}

// SearchLogEntry records one executed search for analytics.
type SearchLogEntry struct {
	ID         string     `json:"id"`
	Query      string     `json:"query"`
	Mode       SearchMode `json:"search_type"`
	Results    int        `json:"results"`
	Degraded   bool       `json:"degraded"`
	DurationMS int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}
