// Package keyword indexes chunk text for term matching and scores chunks by
// query term frequency.
package keyword

import (
	"context"

	"github.com/hyperjump/lexsearch/internal/models"
)

// Index is the keyword branch's text store, independent of the vector index.
type Index interface {
	// IndexChunks replaces every chunk of the document with chunks.
	IndexChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error
	// Search returns up to k chunks containing at least one term and matching filter,
	// ranked by TermFrequencyScore.
	Search(ctx context.Context, terms []string, k int, filter *models.Filters) ([]*Result, error)
	DeleteDocument(ctx context.Context, documentID string) error
	// Terms returns indexed terms starting with prefix, most frequent first.
	Terms(ctx context.Context, prefix string, limit int) ([]string, error)
	// Corrections returns indexed terms within a small edit distance of term.
	Corrections(ctx context.Context, term string, limit int) ([]Suggestion, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a keyword hit. Score is the raw term-frequency score, not clamped.
type Result struct {
	Key   models.ChunkRef
	Chunk *models.Chunk
	Score float64
}
