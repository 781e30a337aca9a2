package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/hyperjump/lexsearch/pkg/utils"
	"go.uber.org/zap"
)

// New builds the process-wide embedder for cfg, wrapped in the LRU cache and, when
// configured and reachable, the Redis cache.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)

	var base Embedder
	switch cfg.Provider {
	case "", "hash":
		base = NewHashEmbedder(cfg.Dimensions)
	case "onnx":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		base = onnx
	case "openai":
		oa, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:            os.Getenv(cfg.APIKeyEnv),
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		base = oa
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	opts := []CacheOption{WithCacheLogger(logger)}
	if cfg.Redis.Addr != "" {
		rc, err := NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Warn("redis embedding cache unavailable, using local cache only",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			opts = append(opts, WithRemoteCache(rc))
		}
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", base.Dimensions()))
	return NewCachedEmbedder(base, cfg.Provider+"/"+cfg.Model, cfg.CacheSize, opts...), nil
}
