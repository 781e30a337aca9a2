package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/config"
)

// Backend names a vector index implementation.
type Backend string

const (
	// BackendMemory keeps vectors in process and snapshots them to disk. Good for a single node.
	BackendMemory Backend = "memory"
	// BackendMilvus stores vectors in a Milvus collection.
	BackendMilvus Backend = "milvus"
)

// NewIndex creates the backend selected by cfg. The memory backend is restored from
// snapshotPath when the file exists.
func NewIndex(ctx context.Context, cfg config.VectorConfig, dimensions int, snapshotPath string, logger *zap.Logger) (Index, error) {
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		idx, err := NewMemoryIndex(dimensions)
		if err != nil {
			return nil, err
		}
		if err := idx.Load(snapshotPath); err != nil {
			return nil, fmt.Errorf("load vector snapshot: %w", err)
		}
		return idx, nil
	case BackendMilvus:
		return NewMilvusIndex(ctx, MilvusConfig{
			Address:    cfg.Milvus.Address,
			Collection: cfg.Milvus.Collection,
			Dimensions: dimensions,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, milvus)", cfg.Backend)
	}
}
