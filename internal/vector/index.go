// Package vector stores chunk embeddings with flattened metadata and answers
// nearest-neighbour queries over them.
package vector

import (
	"context"

	"github.com/hyperjump/lexsearch/internal/models"
)

// Key identifies a stored vector: one per chunk.
type Key = models.ChunkRef

// Entry is a chunk's vector plus the metadata copied in at upsert time.
// Chunk must carry the flattened document fields used for filtering.
type Entry struct {
	Key    Key
	Vector []float32
	Chunk  *models.Chunk
}

// Hit is a search result. Similarity is in [0, 1], higher is closer.
type Hit struct {
	Key        Key
	Chunk      *models.Chunk
	Similarity float64
}

// Index is a vector backend. Implementations must be safe for concurrent use and
// must never expose a document whose entries are only partially written or deleted.
type Index interface {
	// Upsert replaces every document present in entries with the given entries.
	Upsert(ctx context.Context, entries []Entry) error
	// Search returns up to k entries matching filter, most similar first.
	Search(ctx context.Context, query []float32, k int, filter *models.Filters) ([]Hit, error)
	// Get returns the stored entry or models.ErrNotFound.
	Get(ctx context.Context, key Key) (*Entry, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Size() int
	Save(path string) error
	Load(path string) error
	Close() error
}
