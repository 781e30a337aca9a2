package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/hyperjump/lexsearch/internal/keyword"
	"github.com/hyperjump/lexsearch/internal/metrics"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/internal/storage"
	"github.com/hyperjump/lexsearch/internal/vector"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

// SemanticSearcher is the semantic branch: a vector store that embeds the query itself.
type SemanticSearcher interface {
	Query(ctx context.Context, text string, k int, filter *models.Filters) ([]vector.Hit, error)
	FindSimilar(ctx context.Context, key vector.Key, k int) ([]vector.Hit, error)
}

// Engine runs hybrid (keyword + semantic) search.
type Engine struct {
	storage  storage.Storage
	semantic SemanticSearcher
	keyword  keyword.Index
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	semantic SemanticSearcher,
	keywordIndex keyword.Index,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		storage:  storage,
		semantic: semantic,
		keyword:  keywordIndex,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

type branchResult struct {
	branch     models.Branch
	candidates []*ScoredChunk
	err        error
}

// Search validates the query, runs the branches its mode selects concurrently, fuses and
// paginates the candidates. A failed branch degrades the response; the query fails only
// when every branch it ran failed.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		metrics.SearchTotal.WithLabelValues(string(query.Mode), "invalid").Inc()
		return nil, err
	}
	mode := string(query.Mode)
	defer func() {
		metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(startTime).Seconds())
	}()

	semanticWeight, keywordWeight := ResolveWeights(query, e.config)
	depth := CandidateDepth(query, e.config)

	branches, err := e.dispatch(ctx, query, depth)
	if err != nil {
		metrics.SearchTotal.WithLabelValues(mode, "failed").Inc()
		return nil, err
	}

	var semantic, kw []*ScoredChunk
	reports := make([]models.BranchReport, 0, len(branches))
	degraded := false
	for _, b := range branches {
		report := models.BranchReport{Branch: b.branch, Contributed: b.err == nil, Candidates: len(b.candidates)}
		if b.err != nil {
			report.Error = b.err.Error()
			degraded = true
		}
		reports = append(reports, report)
		switch b.branch {
		case models.BranchSemantic:
			semantic = b.candidates
		case models.BranchKeyword:
			kw = b.candidates
		}
	}

	fused := Fuse(semantic, kw, semanticWeight, keywordWeight)
	page := Paginate(fused, query.Offset, query.Limit)
	terms := keyword.QueryTerms(query.Query)

	response := &models.SearchResponse{
		Query:    query.Query,
		Mode:     query.Mode,
		Results:  make([]*models.SearchResult, 0, len(page)),
		Total:    len(fused),
		Offset:   query.Offset,
		Limit:    query.Limit,
		Branches: reports,
		Degraded: degraded,
	}
	for i, f := range page {
		response.Results = append(response.Results, e.toResult(f, query.Offset+i+1, terms, query.HighlightEnabled()))
	}
	response.QueryTime = time.Since(startTime).Milliseconds()

	status := "ok"
	if degraded {
		status = "degraded"
	}
	metrics.SearchTotal.WithLabelValues(mode, status).Inc()
	e.logSearch(ctx, response)
	return response, nil
}

func (e *Engine) dispatch(ctx context.Context, query *models.SearchQuery, depth int) ([]*branchResult, error) {
	var branches []*branchResult
	g, gctx := errgroup.WithContext(ctx)

	if query.Mode != models.ModeKeyword {
		res := &branchResult{branch: models.BranchSemantic}
		branches = append(branches, res)
		g.Go(func() error {
			res.candidates, res.err = e.runBranch(gctx, res.branch, func(bctx context.Context) ([]*ScoredChunk, error) {
				return e.semanticCandidates(bctx, query, depth)
			})
			return nil
		})
	}
	if query.Mode != models.ModeSemantic {
		res := &branchResult{branch: models.BranchKeyword}
		branches = append(branches, res)
		g.Go(func() error {
			res.candidates, res.err = e.runBranch(gctx, res.branch, func(bctx context.Context) ([]*ScoredChunk, error) {
				return e.keywordCandidates(bctx, query, depth)
			})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var errs []error
	for _, b := range branches {
		if b.err != nil {
			errs = append(errs, b.err)
		}
	}
	if len(errs) == len(branches) {
		return nil, fmt.Errorf("%w: %w", models.ErrSearchFailed, errors.Join(errs...))
	}
	return branches, nil
}

// runBranch bounds fn by the branch timeout. It returns when the deadline passes even if
// fn has not noticed the cancellation yet.
func (e *Engine) runBranch(
	ctx context.Context,
	branch models.Branch,
	fn func(context.Context) ([]*ScoredChunk, error),
) ([]*ScoredChunk, error) {
	bctx, cancel := ctx, context.CancelFunc(func() {})
	if e.config.BranchTimeout > 0 {
		bctx, cancel = context.WithTimeout(ctx, e.config.BranchTimeout)
	}
	defer cancel()

	type outcome struct {
		candidates []*ScoredChunk
		err        error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := fn(bctx)
		done <- outcome{c, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-bctx.Done():
		out.err = bctx.Err()
	}
	if out.err != nil {
		metrics.BranchFailures.WithLabelValues(string(branch)).Inc()
		e.logger.Warn("Search branch failed", zap.String("branch", string(branch)), zap.Error(out.err))
		return nil, fmt.Errorf("%w: %s: %w", models.ErrBranchTimeout, branch, out.err)
	}
	return out.candidates, nil
}

func (e *Engine) semanticCandidates(ctx context.Context, query *models.SearchQuery, depth int) ([]*ScoredChunk, error) {
	hits, err := e.semantic.Query(ctx, query.Query, depth, &query.Filters)
	if err != nil {
		return nil, err
	}
	out := make([]*ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, &ScoredChunk{Key: h.Key, Chunk: h.Chunk, Score: h.Similarity})
	}
	return out, nil
}

func (e *Engine) keywordCandidates(ctx context.Context, query *models.SearchQuery, depth int) ([]*ScoredChunk, error) {
	results, err := e.keyword.Search(ctx, keyword.QueryTerms(query.Query), depth, &query.Filters)
	if err != nil {
		return nil, err
	}
	out := make([]*ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, &ScoredChunk{Key: r.Key, Chunk: r.Chunk, Score: r.Score})
	}
	return out, nil
}

func (e *Engine) toResult(f *FusedResult, rank int, terms []string, highlight bool) *models.SearchResult {
	c := f.Chunk
	result := &models.SearchResult{
		DocumentID:    f.Key.DocumentID,
		ChunkID:       f.Key.String(),
		Ordinal:       f.Key.Ordinal,
		Title:         c.Title,
		DocumentType:  c.DocumentType,
		Jurisdiction:  c.Jurisdiction,
		Text:          c.Text,
		Score:         f.Score,
		SemanticScore: f.SemanticScore,
		KeywordScore:  f.KeywordScore,
		Sources:       f.Sources,
		PageNumber:    c.PageNumber,
		SectionTitle:  c.SectionTitle,
		Concepts:      c.Concepts,
		Citations:     c.Citations,
		Rank:          rank,
	}
	if highlight {
		result.Highlighted = Highlight(Snippet(c.Text, terms, e.config.SnippetLength), terms)
	}
	return result
}

func (e *Engine) logSearch(ctx context.Context, resp *models.SearchResponse) {
	entry := &models.SearchLogEntry{
		ID:         uuid.NewString(),
		Query:      resp.Query,
		Mode:       resp.Mode,
		Results:    resp.Total,
		Degraded:   resp.Degraded,
		DurationMS: resp.QueryTime,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.storage.LogSearch(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("Failed to log search", zap.Error(err))
	}
}
