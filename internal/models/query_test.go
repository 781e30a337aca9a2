package models

import (
	"errors"
	"testing"
	"time"
)

func TestSearchQuery_Validate(t *testing.T) {
	neg := -0.5
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"empty query", &SearchQuery{Query: "   "}, true},
		{"valid query", &SearchQuery{Query: "breach of contract"}, false},
		{"unknown mode", &SearchQuery{Query: "x", Mode: "fuzzy"}, true},
		{"limit over max", &SearchQuery{Query: "x", Limit: 51}, true},
		{"negative offset", &SearchQuery{Query: "x", Offset: -1}, true},
		{"negative weight", &SearchQuery{Query: "x", SemanticWeight: &neg}, true},
		{"inverted date range", &SearchQuery{Query: "x", Filters: Filters{DateFrom: &from, DateTo: &to}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(10, 50)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v should wrap ErrValidation", err)
			}
		})
	}
}

func TestSearchQuery_ValidateDefaults(t *testing.T) {
	q := &SearchQuery{Query: "  Contract Breach "}
	if err := q.Validate(10, 50); err != nil {
		t.Fatal(err)
	}
	if q.Mode != ModeHybrid {
		t.Errorf("mode = %q, want hybrid", q.Mode)
	}
	if q.Limit != 10 {
		t.Errorf("limit = %d, want 10", q.Limit)
	}
	terms := q.Terms()
	if len(terms) != 2 || terms[0] != "contract" || terms[1] != "breach" {
		t.Errorf("terms = %v", terms)
	}
	if !q.HighlightEnabled() {
		t.Error("highlight should default to true")
	}
}

func TestFilters_Match(t *testing.T) {
	published := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	chunk := &Chunk{
		DocumentType:  "court_decision",
		Jurisdiction:  "federal",
		Concepts:      []string{"tort_law"},
		DatePublished: &published,
	}
	from := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)
	early := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filters *Filters
		chunk   *Chunk
		want    bool
	}{
		{"nil filters", nil, chunk, true},
		{"type match case-insensitive", &Filters{DocumentTypes: []string{"Court_Decision"}}, chunk, true},
		{"type mismatch", &Filters{DocumentTypes: []string{"statute"}}, chunk, false},
		{"jurisdiction match", &Filters{Jurisdictions: []string{"federal", "state"}}, chunk, true},
		{"concept mismatch", &Filters{Concepts: []string{"contract_law"}}, chunk, false},
		{"date inside range", &Filters{DateFrom: &from, DateTo: &to}, chunk, true},
		{"date before range", &Filters{DateFrom: &early}, chunk, false},
		{"no date with range", &Filters{DateFrom: &from}, &Chunk{DocumentType: "statute"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Match(tt.chunk); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkRef_String(t *testing.T) {
	ref := ChunkRef{DocumentID: "42", Ordinal: 3}
	if got := ref.String(); got != "doc_42_chunk_3" {
		t.Errorf("String() = %q", got)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	err := &StageError{Stage: "extract", DocumentID: "d1", Err: ErrExtraction}
	if !errors.Is(err, ErrExtraction) {
		t.Error("StageError should unwrap to its cause")
	}
}
