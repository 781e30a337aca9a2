package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/lexsearch/pkg/retry"
	"github.com/hyperjump/lexsearch/pkg/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const openAIBatchSize = 100

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// OpenAIEmbedder calls the embeddings endpoint, paced by a token bucket and retried with backoff.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
	retry      retry.Config
	logger     *zap.Logger
}

// NewOpenAIEmbedder validates cfg and builds the client.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai embedder: model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("openai embedder: dimensions must be positive")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	logger := utils.OrNop(cfg.Logger)
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    rate.NewLimiter(limit, 1),
		retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
			Logger:       logger,
		},
		logger: logger,
	}, nil
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends texts in batches of 100 and places vectors by their response index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := start + openAIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
			resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(e.model),
			})
			if err != nil {
				return fmt.Errorf("create embeddings: %w", err)
			}
			if len(resp.Data) != len(batch) {
				return fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
			}
			for _, d := range resp.Data {
				if d.Index < 0 || d.Index >= len(batch) {
					return fmt.Errorf("create embeddings: index %d out of range", d.Index)
				}
				if len(d.Embedding) != e.dimensions {
					return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), e.dimensions)
				}
				out[start+d.Index] = d.Embedding
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	e.logger.Debug("openai embeddings generated", zap.Int("count", len(texts)))
	return out, nil
}

// Dimensions returns the configured dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client has no resources to release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
