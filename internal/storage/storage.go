// Package storage persists documents, their chunk sequences and the search log.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/lexsearch/internal/models"
)

// Storage is the relational source of truth for documents and chunks. The vector and
// keyword indices hold copies.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	UpdateDocumentStatus(ctx context.Context, id string, status models.Status, reason string) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Chunk operations
	ReplaceChunks(ctx context.Context, docID string, chunks []*models.Chunk) error
	ListChunks(ctx context.Context, docID string) ([]*models.Chunk, error)
	SearchChunksByCitation(ctx context.Context, needle string, limit int) ([]*models.Chunk, error)

	// Filter values
	DistinctValues(ctx context.Context, field string) ([]string, error)
	DateRange(ctx context.Context) (from, to *time.Time, err error)

	// Analytics
	LogSearch(ctx context.Context, entry *models.SearchLogEntry) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountDocumentsByStatus(ctx context.Context) (map[models.Status]int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
