// Package models defines core data structures for legal documents, chunks, queries, and search results.
package models

import (
	"fmt"
	"time"
)

// Status is the processing state of a document in the ingestion pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further pipeline work is expected for the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document represents an ingested legal document.
type Document struct {
	ID               string                 `json:"id" db:"id"`
	Filename         string                 `json:"filename" db:"filename"`
	FileType         string                 `json:"file_type" db:"file_type"`
	Title            string                 `json:"title" db:"title"`
	DocumentType     string                 `json:"document_type" db:"document_type"`
	Jurisdiction     string                 `json:"jurisdiction" db:"jurisdiction"`
	Status           Status                 `json:"status" db:"status"`
	StatusReason     string                 `json:"status_reason,omitempty" db:"status_reason"`
	TextExtracted    bool                   `json:"text_extracted" db:"text_extracted"`
	ExtractionMethod string                 `json:"extraction_method,omitempty" db:"extraction_method"`
	Summary          string                 `json:"summary,omitempty" db:"summary"`
	DatePublished    *time.Time             `json:"date_published,omitempty" db:"date_published"`
	Content          string                 `json:"content,omitempty" db:"content"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" db:"updated_at"`
}

// ChunkRef identifies a chunk by its owning document and ordinal.
type ChunkRef struct {
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
}

// String returns the stable chunk identifier used by the indices.
func (r ChunkRef) String() string {
	return fmt.Sprintf("doc_%s_chunk_%d", r.DocumentID, r.Ordinal)
}

// Chunk is a bounded piece of a document's cleaned text. The document-level fields
// (DocumentType, Jurisdiction, Title, DatePublished) are flattened copies used for filtering.
type Chunk struct {
	DocumentID      string     `json:"document_id" db:"document_id"`
	Ordinal         int        `json:"ordinal" db:"ordinal"`
	Text            string     `json:"text" db:"text"`
	WordCount       int        `json:"word_count" db:"word_count"`
	CharCount       int        `json:"char_count" db:"char_count"`
	PageNumber      int        `json:"page_number,omitempty" db:"page_number"`
	SectionTitle    string     `json:"section_title,omitempty" db:"section_title"`
	Concepts        []string   `json:"concepts,omitempty" db:"concepts"`
	Citations       []string   `json:"citations,omitempty" db:"citations"`
	ImportanceScore float64    `json:"importance_score" db:"importance_score"`
	DocumentType    string     `json:"document_type,omitempty" db:"-"`
	Jurisdiction    string     `json:"jurisdiction,omitempty" db:"-"`
	Title           string     `json:"title,omitempty" db:"-"`
	DatePublished   *time.Time `json:"date_published,omitempty" db:"-"`
}

// Ref returns the chunk's composite key.
func (c *Chunk) Ref() ChunkRef {
	return ChunkRef{DocumentID: c.DocumentID, Ordinal: c.Ordinal}
}

// Clone returns a deep copy so indices never share slices with callers.
func (c *Chunk) Clone() *Chunk {
	out := *c
	out.Concepts = append([]string(nil), c.Concepts...)
	out.Citations = append([]string(nil), c.Citations...)
	if c.DatePublished != nil {
		t := *c.DatePublished
		out.DatePublished = &t
	}
	return &out
}

// ProcessingOutcome is the per-document result of an ingest call.
type ProcessingOutcome struct {
	DocumentID string `json:"document_id"`
	Status     Status `json:"status"`
	Extracted  bool   `json:"extracted"`
	Chunked    bool   `json:"chunked"`
	Indexed    bool   `json:"indexed"`
	Skipped    bool   `json:"skipped,omitempty"`
	Method     string `json:"extraction_method,omitempty"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}
