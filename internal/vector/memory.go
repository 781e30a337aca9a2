package vector

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/lexsearch/internal/models"
)

// MemoryIndex is a brute-force cosine index held in memory, grouped by document.
// A document's entries are swapped in and out under one write lock, so readers
// see either the old set or the new one.
type MemoryIndex struct {
	dimensions int
	docs       map[string][]Entry
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		docs:       make(map[string][]Entry),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(BackendMemory)
}

// Upsert validates the batch, then replaces each document in it in a single critical section.
func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	grouped := make(map[string][]Entry)
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", e.Key, len(e.Vector), m.dimensions)
		}
		if e.Chunk == nil {
			return fmt.Errorf("entry %s has no chunk", e.Key)
		}
		grouped[e.Key.DocumentID] = append(grouped[e.Key.DocumentID], copyEntry(e))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, list := range grouped {
		sort.Slice(list, func(i, j int) bool { return list[i].Key.Ordinal < list[j].Key.Ordinal })
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for docID, list := range grouped {
		m.docs[docID] = list
	}
	return nil
}

// Search scores every entry that passes filter and returns the top k.
// Equal similarities are ordered by document id, then ordinal.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, filter *models.Filters) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	hits := make([]Hit, 0)
	for _, list := range m.docs {
		for _, e := range list {
			if !filter.Match(e.Chunk) {
				continue
			}
			hits = append(hits, Hit{Key: e.Key, Chunk: e.Chunk, Similarity: CosineSimilarity(query, e.Vector)})
		}
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Key.DocumentID != hits[j].Key.DocumentID {
			return hits[i].Key.DocumentID < hits[j].Key.DocumentID
		}
		return hits[i].Key.Ordinal < hits[j].Key.Ordinal
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Chunk = hits[i].Chunk.Clone()
	}
	return hits, nil
}

// Get returns a copy of the entry stored under key.
func (m *MemoryIndex) Get(ctx context.Context, key Key) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.docs[key.DocumentID] {
		if e.Key.Ordinal == key.Ordinal {
			out := copyEntry(e)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("vector %s: %w", key, models.ErrNotFound)
}

// DeleteDocument drops every entry of the document.
func (m *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, documentID)
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, list := range m.docs {
		n += len(list)
	}
	return n
}

// DocumentCount returns the number of documents with at least one vector.
func (m *MemoryIndex) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

type snapshot struct {
	Dimensions int
	Entries    []Entry
}

// Save writes a gob snapshot to path via a temp file and rename.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	snap := snapshot{Dimensions: m.dimensions}
	for _, list := range m.docs {
		snap.Entries = append(snap.Entries, list...)
	}
	m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the snapshot at path. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	if snap.Dimensions != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", snap.Dimensions, m.dimensions)
	}
	docs := make(map[string][]Entry)
	for _, e := range snap.Entries {
		docs[e.Key.DocumentID] = append(docs[e.Key.DocumentID], e)
	}
	m.mu.Lock()
	m.docs = docs
	m.mu.Unlock()
	return nil
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func copyEntry(e Entry) Entry {
	vec := make([]float32, len(e.Vector))
	copy(vec, e.Vector)
	var chunk *models.Chunk
	if e.Chunk != nil {
		chunk = e.Chunk.Clone()
	}
	return Entry{Key: e.Key, Vector: vec, Chunk: chunk}
}
