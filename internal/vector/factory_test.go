package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex_Memory(t *testing.T) {
	idx, err := NewIndex(context.Background(), config.VectorConfig{Backend: "memory"}, 3, "", nil)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 0, idx.Size())
	assert.IsType(t, &MemoryIndex{}, idx)
}

func TestNewIndex_DefaultsToMemoryAndLoadsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.gob")
	seed, _ := NewMemoryIndex(2)
	require.NoError(t, seed.Upsert(context.Background(), []Entry{entry("a", 0, []float32{1, 0})}))
	require.NoError(t, seed.Save(path))

	idx, err := NewIndex(context.Background(), config.VectorConfig{}, 2, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Size())
}

func TestNewIndex_Unknown(t *testing.T) {
	_, err := NewIndex(context.Background(), config.VectorConfig{Backend: "faiss"}, 3, "", nil)
	assert.Error(t, err)
}
