package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/lexsearch/internal/fileid"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/internal/storage"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

// ErrPipelineClosed is returned by Submit after Close.
var ErrPipelineClosed = errors.New("pipeline closed")

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// Pipeline schedules documents through an Indexer. At most one run per document identity
// is in flight; completed documents are not reprocessed unless the job is forced.
type Pipeline struct {
	indexer *Indexer
	storage storage.Storage
	workers int
	logger  *zap.Logger

	flight singleflight.Group
	locks  docLocks

	mu       sync.RWMutex
	outcomes map[string]*models.ProcessingOutcome
	queue    chan *Job
	closed   bool

	onOutcome func(*models.ProcessingOutcome)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithOutcomeHandler is called with the outcome of every job run by the worker pool.
func WithOutcomeHandler(fn func(*models.ProcessingOutcome)) PipelineOption {
	return func(p *Pipeline) { p.onOutcome = fn }
}

// NewPipeline creates a pipeline over indexer.
func NewPipeline(indexer *Indexer, store storage.Storage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		indexer:  indexer,
		storage:  store,
		workers:  DefaultWorkers,
		outcomes: make(map[string]*models.ProcessingOutcome),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = utils.OrNop(p.logger)
	p.queue = make(chan *Job, p.workers*4)
	return p
}

// Ingest processes job synchronously. Concurrent calls for the same document share one
// run. A document that already completed is skipped unless job.Force is set; a document
// left processing or failed by an earlier run is processed again.
func (p *Pipeline) Ingest(ctx context.Context, job *Job) (*models.ProcessingOutcome, error) {
	if err := normalizeJob(job); err != nil {
		return nil, err
	}

	executed := false
	v, err, _ := p.flight.Do(job.DocumentID, func() (interface{}, error) {
		executed = true
		unlock := p.locks.lock(job.DocumentID)
		defer unlock()
		return p.run(ctx, job)
	})
	out, _ := v.(*models.ProcessingOutcome)
	if !executed && out != nil {
		dup := *out
		dup.Skipped = true
		out = &dup
	}
	return out, err
}

func (p *Pipeline) run(ctx context.Context, job *Job) (*models.ProcessingOutcome, error) {
	if !job.Force {
		if recorded, ok, err := p.completed(ctx, job.DocumentID); err != nil {
			return nil, err
		} else if ok {
			p.logger.Debug("Skipping completed document", zap.String("doc_id", job.DocumentID))
			return recorded, nil
		}
	}

	out, err := p.indexer.Process(ctx, job)
	p.mu.Lock()
	p.outcomes[job.DocumentID] = out
	p.mu.Unlock()
	return out, err
}

// completed returns the recorded outcome of a document that finished successfully.
func (p *Pipeline) completed(ctx context.Context, id string) (*models.ProcessingOutcome, bool, error) {
	doc, err := p.storage.GetDocument(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if doc.Status != models.StatusCompleted {
		return nil, false, nil
	}

	p.mu.RLock()
	recorded, ok := p.outcomes[id]
	p.mu.RUnlock()
	if ok && recorded.Status == models.StatusCompleted {
		out := *recorded
		out.Skipped = true
		return &out, true, nil
	}
	chunks, err := p.storage.ListChunks(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return &models.ProcessingOutcome{
		DocumentID: id,
		Status:     models.StatusCompleted,
		Extracted:  doc.TextExtracted,
		Chunked:    len(chunks) > 0,
		Indexed:    true,
		Skipped:    true,
		Method:     doc.ExtractionMethod,
		Chunks:     len(chunks),
	}, true, nil
}

// IngestBatch processes jobs with bounded parallelism. A failed document never stops the
// batch; its outcome carries the reason. Outcomes are returned in job order.
func (p *Pipeline) IngestBatch(ctx context.Context, jobs []*Job) []*models.ProcessingOutcome {
	outcomes := make([]*models.ProcessingOutcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			outcomes[i] = p.ingestOutcome(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) ingestOutcome(ctx context.Context, job *Job) *models.ProcessingOutcome {
	out, err := p.Ingest(ctx, job)
	if out == nil {
		out = &models.ProcessingOutcome{DocumentID: job.DocumentID, Status: models.StatusFailed}
	}
	if err != nil && out.Error == "" {
		out.Error = err.Error()
		out.Err = err
	}
	return out
}

// Submit queues job for the worker pool started by Run. It blocks while the queue is full.
func (p *Pipeline) Submit(ctx context.Context, job *Job) error {
	if err := normalizeJob(job); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPipelineClosed
	}
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes submitted jobs with the configured number of workers until Close is
// called and the queue drains, or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case job, ok := <-p.queue:
					if !ok {
						return nil
					}
					out := p.ingestOutcome(gctx, job)
					if p.onOutcome != nil {
						p.onOutcome(out)
					}
				}
			}
		})
	}
	return g.Wait()
}

// Close stops accepting jobs. Workers finish what is already queued.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

// Outcome returns the last outcome recorded for a document in this process.
func (p *Pipeline) Outcome(id string) (*models.ProcessingOutcome, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out, ok := p.outcomes[id]
	return out, ok
}

// Delete removes a document from every store. It waits for a run of the same document
// that is in flight.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	unlock := p.locks.lock(id)
	defer unlock()
	if err := p.indexer.DeleteDocument(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.outcomes, id)
	p.mu.Unlock()
	return nil
}

// docLocks hands out one mutex per document ID, dropped once no caller holds it.
type docLocks struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	sync.Mutex
	refs int
}

func (d *docLocks) lock(id string) (unlock func()) {
	d.mu.Lock()
	if d.locks == nil {
		d.locks = make(map[string]*docLock)
	}
	l, ok := d.locks[id]
	if !ok {
		l = &docLock{}
		d.locks[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, id)
		}
		d.mu.Unlock()
	}
}

// FileJob reads path into a Job. The document ID is derived from the absolute path so
// re-ingesting a file updates the same document. A file whose size or mtime differs from
// the stored copy is forced through again.
func (p *Pipeline) FileJob(ctx context.Context, path string, allowedExts []string, force bool) (*Job, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, models.NewValidationError("file", "extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	docID := fileid.FileDocID(absPath)
	if !force {
		force = p.sourceChanged(ctx, docID, absPath, info)
	}
	return &Job{
		DocumentID: docID,
		Filename:   filepath.Base(absPath),
		FileType:   fileTypeOf(absPath),
		Content:    content,
		Force:      force,
		Metadata: map[string]interface{}{
			metaKeySourcePath:  absPath,
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}, nil
}

// sourceChanged reports whether a stored document came from path with a different
// size or mtime. Unknown documents report false; they are processed anyway.
func (p *Pipeline) sourceChanged(ctx context.Context, docID, absPath string, info os.FileInfo) bool {
	doc, err := p.storage.GetDocument(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return false
	}
	if doc.Metadata[metaKeySourcePath] != absPath {
		return true
	}
	// Values are stored as strings to avoid JSON float64 precision loss (UnixNano exceeds 53 bits).
	return metadataInt64(doc.Metadata, metaKeySourceMtime) != info.ModTime().UnixNano() ||
		metadataInt64(doc.Metadata, metaKeySourceSize) != info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// CollectFiles walks dir recursively and returns the regular files whose extension is in
// allowedExts (all files when allowedExts is empty).
func CollectFiles(dir string, allowedExts []string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var files []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are returned
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func normalizeJob(job *Job) error {
	if job == nil {
		return models.NewValidationError("job", "is nil")
	}
	if len(job.Content) == 0 {
		return models.NewValidationError("content", "is empty")
	}
	if job.DocumentID == "" {
		job.DocumentID = uuid.NewString()
	}
	if job.FileType == "" {
		job.FileType = fileTypeOf(job.Filename)
	}
	if job.Filename == "" {
		job.Filename = job.DocumentID
		if job.FileType != "" {
			job.Filename += "." + job.FileType
		}
	}
	return nil
}
