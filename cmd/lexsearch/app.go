package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/hyperjump/lexsearch/internal/embedding"
	"github.com/hyperjump/lexsearch/internal/extract"
	"github.com/hyperjump/lexsearch/internal/indexer"
	"github.com/hyperjump/lexsearch/internal/keyword"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/internal/search"
	"github.com/hyperjump/lexsearch/internal/storage"
	"github.com/hyperjump/lexsearch/internal/vector"
)

// app holds the wired components for one command run.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	storage  *storage.SQLiteStorage
	embedder embedding.Embedder
	index    vector.Index
	vectors  *vector.Store
	keyword  *keyword.BleveIndex
	engine   *search.Engine
	pipeline *indexer.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var err error
	a.storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.embedder, err = embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.index, err = vector.NewIndex(ctx, cfg.Vector, cfg.Embedding.Dimensions, cfg.Storage.VectorIndexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	a.vectors = vector.NewStore(a.index, a.embedder,
		vector.WithEmbedConcurrency(cfg.Ingest.EmbedConcurrency),
		vector.WithStoreLogger(logger))
	a.keyword, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath,
		keyword.WithCandidates(cfg.Search.KeywordCandidates),
		keyword.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	logger.Info("Indices ready",
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.Int("vectors", a.index.Size()))

	extractor := extract.NewExtractor(
		extract.WithLogger(logger),
		extract.WithTools(extract.Tools{
			Pdftotext: cfg.Ingest.PdftotextPath,
			Pdftoppm:  cfg.Ingest.PdftoppmPath,
			Tesseract: cfg.Ingest.TesseractPath,
			Language:  cfg.Ingest.OCRLanguage,
		}),
		extract.WithMinTextChars(cfg.Ingest.MinTextChars),
		extract.WithOCRMaxPages(cfg.Ingest.OCRMaxPages),
		extract.WithMaxBytes(cfg.Ingest.MaxFileBytes()),
	)
	chunker := indexer.NewChunker(cfg.Ingest.ChunkSize, indexer.WithChunkLogger(logger))
	ix := indexer.NewIndexer(a.storage, extractor, chunker, a.vectors, a.keyword, indexer.WithLogger(logger))
	a.pipeline = indexer.NewPipeline(ix, a.storage,
		indexer.WithWorkers(cfg.Ingest.Workers),
		indexer.WithPipelineLogger(logger),
		indexer.WithOutcomeHandler(a.logOutcome))
	a.engine = search.NewEngine(a.storage, a.vectors, a.keyword, &cfg.Search, logger)

	ok = true
	return a, nil
}

// close saves the vector snapshot and releases every component.
func (a *app) close() {
	if a.index != nil {
		if err := a.index.Save(a.cfg.Storage.VectorIndexPath); err != nil {
			a.logger.Warn("Vector index save failed", zap.String("path", a.cfg.Storage.VectorIndexPath), zap.Error(err))
		}
		_ = a.index.Close()
	}
	if a.keyword != nil {
		_ = a.keyword.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.storage != nil {
		_ = a.storage.Close()
	}
}

// logOutcome reports documents finished by the worker pool.
func (a *app) logOutcome(out *models.ProcessingOutcome) {
	if out.Status == models.StatusFailed {
		a.logger.Warn("Ingestion failed", zap.String("doc_id", out.DocumentID), zap.String("error", out.Error))
		return
	}
	a.logger.Info("Ingested",
		zap.String("doc_id", out.DocumentID),
		zap.Int("chunks", out.Chunks),
		zap.Bool("skipped", out.Skipped))
}
