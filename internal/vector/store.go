package vector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/lexsearch/internal/embedding"
	"github.com/hyperjump/lexsearch/internal/metrics"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

// DefaultEmbedConcurrency bounds parallel chunk embedding per upsert.
const DefaultEmbedConcurrency = 4

// Store embeds chunk text and keeps the vectors in an Index.
type Store struct {
	index       Index
	embedder    embedding.Embedder
	concurrency int
	logger      *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEmbedConcurrency sets how many chunks are embedded at once.
func WithEmbedConcurrency(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = utils.OrNop(l)
	}
}

// NewStore returns a Store over index and embedder.
func NewStore(index Index, embedder embedding.Embedder, opts ...StoreOption) *Store {
	s := &Store{
		index:       index,
		embedder:    embedder,
		concurrency: DefaultEmbedConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index returns the underlying backend.
func (s *Store) Index() Index {
	return s.index
}

// Upsert embeds the chunks and replaces their documents in the index. A chunk whose text
// is blank, or whose embedding fails, is stored with a zero vector. Index errors wrap
// models.ErrIndexWrite.
func (s *Store) Upsert(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	entries := make([]Entry, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			vec, err := s.embedChunk(gctx, chunk)
			if err != nil {
				return err
			}
			entries[i] = Entry{Key: chunk.Ref(), Vector: vec, Chunk: chunk}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("%w: %w", models.ErrIndexWrite, err)
	}
	return nil
}

// embedChunk only fails when ctx is done.
func (s *Store) embedChunk(ctx context.Context, chunk *models.Chunk) ([]float32, error) {
	zero := make([]float32, s.embedder.Dimensions())
	if strings.TrimSpace(chunk.Text) == "" {
		return zero, nil
	}
	vec, err := s.embedder.Embed(ctx, chunk.Text)
	if err == nil && len(vec) != len(zero) {
		err = fmt.Errorf("%w: got %d, expected %d", embedding.ErrDimensionMismatch, len(vec), len(zero))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.EmbeddingFailures.Inc()
		s.logger.Warn("embedding failed, indexing zero vector",
			zap.String("chunk", chunk.Ref().String()),
			zap.Error(err),
		)
		return zero, nil
	}
	return vec, nil
}

// Query embeds text and returns the k nearest chunks passing filter.
func (s *Store) Query(ctx context.Context, text string, k int, filter *models.Filters) ([]Hit, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	if utils.IsZeroVector(vec) {
		return []Hit{}, nil
	}
	return s.index.Search(ctx, vec, k, filter)
}

// FindSimilar returns up to k chunks nearest to the stored chunk at key, excluding it.
func (s *Store) FindSimilar(ctx context.Context, key Key, k int) ([]Hit, error) {
	entry, err := s.index.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if k <= 0 || utils.IsZeroVector(entry.Vector) {
		return []Hit{}, nil
	}
	hits, err := s.index.Search(ctx, entry.Vector, k+1, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Hit, 0, k)
	for _, h := range hits {
		if h.Key == key {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Delete removes every vector of the document.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: %w", models.ErrIndexWrite, err)
	}
	return nil
}

// Save snapshots the backend to path.
func (s *Store) Save(path string) error {
	return s.index.Save(path)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.index.Close()
}
