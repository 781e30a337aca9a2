// Package embedding turns chunk and query text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a model answers with a vector of the wrong size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
