package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"

	"github.com/hyperjump/lexsearch/internal/metrics"
	"github.com/hyperjump/lexsearch/pkg/utils"
	"go.uber.org/zap"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text hash.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// RemoteCache is a shared second-tier cache such as Redis.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, value []float32) error
}

// CacheKey hashes text together with the model name so different models never share entries.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// CachedEmbedder consults an in-process LRU, then an optional remote cache, before the model.
// Remote cache failures are logged and treated as misses.
type CachedEmbedder struct {
	inner  Embedder
	model  string
	local  *EmbeddingCache
	remote RemoteCache
	logger *zap.Logger
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithRemoteCache adds a shared cache tier.
func WithRemoteCache(r RemoteCache) CacheOption {
	return func(c *CachedEmbedder) { c.remote = r }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(c *CachedEmbedder) { c.logger = l }
}

// NewCachedEmbedder wraps inner. model namespaces cache keys.
func NewCachedEmbedder(inner Embedder, model string, capacity int, opts ...CacheOption) *CachedEmbedder {
	c := &CachedEmbedder{
		inner: inner,
		model: model,
		local: NewEmbeddingCache(capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := c.local.Get(key); ok {
		metrics.EmbeddingCache.WithLabelValues("local", "hit").Inc()
		return clone(v), true
	}
	metrics.EmbeddingCache.WithLabelValues("local", "miss").Inc()
	if c.remote == nil {
		return nil, false
	}
	v, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("remote embedding cache get failed", zap.Error(err))
		metrics.EmbeddingCache.WithLabelValues("remote", "error").Inc()
		return nil, false
	}
	if !ok || len(v) != c.inner.Dimensions() {
		metrics.EmbeddingCache.WithLabelValues("remote", "miss").Inc()
		return nil, false
	}
	metrics.EmbeddingCache.WithLabelValues("remote", "hit").Inc()
	c.local.Set(key, v)
	return clone(v), true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, v []float32) {
	c.local.Set(key, clone(v))
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, key, v); err != nil {
		c.logger.Warn("remote embedding cache set failed", zap.Error(err))
	}
}

// Embed returns the cached embedding or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, text)
	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, v)
	return v, nil
}

// EmbedBatch embeds only the texts that miss both cache tiers, in one inner call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = CacheKey(c.model, text)
		if v, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.store(ctx, keys[i], vecs[j])
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the inner embedder and the remote cache when it holds a connection.
func (c *CachedEmbedder) Close() error {
	err := c.inner.Close()
	if closer, ok := c.remote.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
