package models

import (
	"strings"
	"time"
)

// SearchMode selects which retrieval branches a query runs.
type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
	ModeHybrid   SearchMode = "hybrid"
)

// Filters restricts results by flattened chunk metadata. Empty fields do not filter.
type Filters struct {
	DocumentTypes []string   `json:"document_type,omitempty"`
	Jurisdictions []string   `json:"jurisdiction,omitempty"`
	Concepts      []string   `json:"legal_concepts,omitempty"`
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
}

// IsEmpty reports whether no predicate is set.
func (f *Filters) IsEmpty() bool {
	return f == nil || (len(f.DocumentTypes) == 0 && len(f.Jurisdictions) == 0 &&
		len(f.Concepts) == 0 && f.DateFrom == nil && f.DateTo == nil)
}

// HasDateRange reports whether a date bound is set.
func (f *Filters) HasDateRange() bool {
	return f != nil && (f.DateFrom != nil || f.DateTo != nil)
}

// Match reports whether the chunk satisfies every predicate. Chunks without a
// publication date never match a date range.
func (f *Filters) Match(c *Chunk) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.DocumentTypes) > 0 && !containsFold(f.DocumentTypes, c.DocumentType) {
		return false
	}
	if len(f.Jurisdictions) > 0 && !containsFold(f.Jurisdictions, c.Jurisdiction) {
		return false
	}
	if len(f.Concepts) > 0 {
		found := false
		for _, concept := range c.Concepts {
			if containsFold(f.Concepts, concept) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.HasDateRange() {
		if c.DatePublished == nil {
			return false
		}
		if f.DateFrom != nil && c.DatePublished.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && c.DatePublished.After(*f.DateTo) {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// SearchQuery represents a search request.
type SearchQuery struct {
	Query          string     `json:"query"`
	Mode           SearchMode `json:"search_type,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
	Filters        Filters    `json:"filters,omitempty"`
	SemanticWeight *float64   `json:"semantic_weight,omitempty"`
	KeywordWeight  *float64   `json:"keyword_weight,omitempty"`
	Highlight      *bool      `json:"highlight,omitempty"`
}

// Validate trims the query and applies defaults. Malformed parameters return a ValidationError.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return NewValidationError("query", "cannot be empty")
	}
	if len(q.Query) > 1000 {
		return NewValidationError("query", "longer than 1000 characters")
	}
	switch q.Mode {
	case "":
		q.Mode = ModeHybrid
	case ModeSemantic, ModeKeyword, ModeHybrid:
	default:
		return NewValidationError("search_type", "unknown mode %q", q.Mode)
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit < 0 || (maxLimit > 0 && q.Limit > maxLimit) {
		return NewValidationError("limit", "must be between 1 and %d", maxLimit)
	}
	if q.Offset < 0 {
		return NewValidationError("offset", "must not be negative")
	}
	if q.SemanticWeight != nil && *q.SemanticWeight < 0 {
		return NewValidationError("semantic_weight", "must not be negative")
	}
	if q.KeywordWeight != nil && *q.KeywordWeight < 0 {
		return NewValidationError("keyword_weight", "must not be negative")
	}
	if q.Filters.DateFrom != nil && q.Filters.DateTo != nil && q.Filters.DateFrom.After(*q.Filters.DateTo) {
		return NewValidationError("filters.date_range", "start is after end")
	}
	return nil
}

// Terms returns the lower-cased whitespace-separated query terms.
func (q *SearchQuery) Terms() []string {
	return strings.Fields(strings.ToLower(q.Query))
}

// HighlightEnabled defaults to true.
func (q *SearchQuery) HighlightEnabled() bool {
	return q.Highlight == nil || *q.Highlight
}
