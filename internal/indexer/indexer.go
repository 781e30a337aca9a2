// Package indexer runs legal documents through extraction, cleaning, metadata tagging,
// chunking and indexing.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/extract"
	"github.com/hyperjump/lexsearch/internal/keyword"
	"github.com/hyperjump/lexsearch/internal/legal"
	"github.com/hyperjump/lexsearch/internal/metrics"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/internal/storage"
	"github.com/hyperjump/lexsearch/pkg/retry"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

// Pipeline stage names, used in StageError and metrics.
const (
	StageExtract  = "extract"
	StageMetadata = "metadata"
	StageChunk    = "chunk"
	StageVector   = "vector_index"
	StageKeyword  = "keyword_index"
	StagePersist  = "persist"
)

// VectorWriter is the vector side of indexing.
type VectorWriter interface {
	Upsert(ctx context.Context, chunks []*models.Chunk) error
	Delete(ctx context.Context, documentID string) error
}

// Job is one document submitted for ingestion.
type Job struct {
	DocumentID string
	Filename   string
	FileType   string
	Content    []byte
	// Force reprocesses a document that already completed.
	Force bool
	// Metadata is merged into the stored document metadata.
	Metadata map[string]interface{}
}

// Indexer runs the stages for one document.
type Indexer struct {
	storage   storage.Storage
	extractor *extract.Extractor
	chunker   *Chunker
	vectors   VectorWriter
	keyword   keyword.Index
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for stage events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	storage storage.Storage,
	extractor *extract.Extractor,
	chunker *Chunker,
	vectors VectorWriter,
	keywordIndex keyword.Index,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		vectors:   vectors,
		keyword:   keywordIndex,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Process runs every stage for job. Re-running the same document overwrites its chunks
// and index entries. A failed stage marks the document failed and returns a StageError
// along with the partial outcome.
func (idx *Indexer) Process(ctx context.Context, job *Job) (*models.ProcessingOutcome, error) {
	start := time.Now()
	out := &models.ProcessingOutcome{DocumentID: job.DocumentID, Status: models.StatusProcessing}

	doc, err := idx.prepareDocument(ctx, job)
	if err != nil {
		return idx.fail(ctx, out, StagePersist, err)
	}

	var res *extract.Result
	err = idx.timed(StageExtract, func() error {
		res, err = idx.extractor.Extract(ctx, job.Content, job.FileType)
		if err != nil {
			return err
		}
		if res.Method == extract.MethodUnsupported {
			return fmt.Errorf("%w: unsupported file type %q", models.ErrExtraction, res.FileType)
		}
		return nil
	})
	if err != nil {
		return idx.fail(ctx, out, StageExtract, err)
	}
	metrics.ExtractionMethod.WithLabelValues(res.FileType, res.Method).Inc()
	out.Method = res.Method

	text := Clean(res.Text)
	if text == "" {
		return idx.fail(ctx, out, StageExtract, fmt.Errorf("%w: no text after cleaning", models.ErrExtraction))
	}
	out.Extracted = true

	var md legal.Metadata
	err = idx.timed(StageMetadata, func() error {
		md = legal.ExtractMetadata(job.Filename, text)
		applyMetadata(doc, md, res, text, job.Metadata)
		return idx.storage.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return idx.fail(ctx, out, StageMetadata, err)
	}

	var chunks []*models.Chunk
	_ = idx.timed(StageChunk, func() error {
		chunks = idx.chunker.Annotate(doc.ID, idx.chunker.Chunk(text))
		for _, c := range chunks {
			c.Title = doc.Title
			c.DocumentType = doc.DocumentType
			c.Jurisdiction = doc.Jurisdiction
			c.DatePublished = doc.DatePublished
		}
		return nil
	})
	out.Chunked = len(chunks) > 0
	out.Chunks = len(chunks)

	err = idx.timed(StageVector, func() error {
		return retry.Do(ctx, retry.Once(idx.logger), func(ctx context.Context) error {
			return idx.vectors.Upsert(ctx, chunks)
		})
	})
	if err != nil {
		return idx.fail(ctx, out, StageVector, err)
	}

	err = idx.timed(StageKeyword, func() error {
		return retry.Do(ctx, retry.Once(idx.logger), func(ctx context.Context) error {
			return idx.keyword.IndexChunks(ctx, doc.ID, chunks)
		})
	})
	if err != nil {
		return idx.fail(ctx, out, StageKeyword, fmt.Errorf("%w: %w", models.ErrIndexWrite, err))
	}
	out.Indexed = true

	err = idx.timed(StagePersist, func() error {
		if err := idx.storage.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		return idx.storage.UpdateDocumentStatus(ctx, doc.ID, models.StatusCompleted, "")
	})
	if err != nil {
		return idx.fail(ctx, out, StagePersist, err)
	}

	out.Status = models.StatusCompleted
	metrics.IngestTotal.WithLabelValues(string(models.StatusCompleted)).Inc()
	idx.logger.Info("Document indexed",
		zap.String("doc_id", doc.ID),
		zap.String("method", out.Method),
		zap.Int("chunks", out.Chunks),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// prepareDocument creates the document record on first sight and marks it processing.
func (idx *Indexer) prepareDocument(ctx context.Context, job *Job) (*models.Document, error) {
	doc, err := idx.storage.GetDocument(ctx, job.DocumentID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		doc = &models.Document{
			ID:       job.DocumentID,
			Filename: job.Filename,
			FileType: extract.NormalizeFileType(job.FileType),
			Title:    job.Filename,
			Status:   models.StatusPending,
		}
		if err := idx.storage.CreateDocument(ctx, doc); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		doc.Filename = job.Filename
		doc.FileType = extract.NormalizeFileType(job.FileType)
	}
	if err := idx.storage.UpdateDocumentStatus(ctx, doc.ID, models.StatusProcessing, ""); err != nil {
		return nil, err
	}
	doc.Status = models.StatusProcessing
	doc.StatusReason = ""
	return doc, nil
}

func applyMetadata(doc *models.Document, md legal.Metadata, res *extract.Result, text string, extra map[string]interface{}) {
	doc.Title = md.Title
	doc.DocumentType = md.DocumentType
	doc.Jurisdiction = md.Jurisdiction
	doc.DatePublished = md.DatePublished
	doc.TextExtracted = true
	doc.ExtractionMethod = res.Method
	doc.Content = text

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	doc.Metadata["citations"] = md.Citations
	doc.Metadata["case_names"] = md.CaseNames
	doc.Metadata["statutes"] = md.Statutes
	doc.Metadata["dates"] = md.Dates
	doc.Metadata["legal_concepts"] = md.Concepts
	doc.Metadata["word_count"] = utils.WordCount(text)
	if res.Pages > 0 {
		doc.Metadata["pages"] = res.Pages
	}
	for k, v := range extra {
		doc.Metadata[k] = v
	}
}

func (idx *Indexer) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.IngestDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

func (idx *Indexer) fail(ctx context.Context, out *models.ProcessingOutcome, stage string, err error) (*models.ProcessingOutcome, error) {
	stageErr := &models.StageError{Stage: stage, DocumentID: out.DocumentID, Err: err}
	out.Status = models.StatusFailed
	out.Error = stageErr.Error()
	out.Err = stageErr
	metrics.IngestTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	idx.logger.Warn("Document ingestion failed",
		zap.String("doc_id", out.DocumentID),
		zap.String("stage", stage),
		zap.Error(err))

	reason := utils.Truncate(stage+": "+err.Error(), 500)
	if serr := idx.storage.UpdateDocumentStatus(context.WithoutCancel(ctx), out.DocumentID, models.StatusFailed, reason); serr != nil &&
		!errors.Is(serr, models.ErrNotFound) {
		idx.logger.Error("Failed to record document failure", zap.String("doc_id", out.DocumentID), zap.Error(serr))
	}
	return out, stageErr
}

// DeleteDocument removes a document from both indices and storage.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if _, err := idx.storage.GetDocument(ctx, id); err != nil {
		return err
	}
	idx.logger.Debug("Deleting document", zap.String("doc_id", id))
	if err := idx.vectors.Delete(ctx, id); err != nil {
		return err
	}
	if err := idx.keyword.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

func fileTypeOf(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
