package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/hyperjump/lexsearch/internal/keyword"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/internal/storage"
	"github.com/hyperjump/lexsearch/internal/vector"
)

type fakeSemantic struct {
	hits    []vector.Hit
	similar []vector.Hit
	err     error
	delay   time.Duration
}

func (f *fakeSemantic) Query(ctx context.Context, text string, k int, filter *models.Filters) ([]vector.Hit, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeSemantic) FindSimilar(ctx context.Context, key vector.Key, k int) ([]vector.Hit, error) {
	return f.similar, f.err
}

type fakeKeyword struct {
	keyword.Index
	results []*keyword.Result
	err     error
}

func (f *fakeKeyword) Search(ctx context.Context, terms []string, k int, filter *models.Filters) ([]*keyword.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func testConfig() *config.SearchConfig {
	return &config.SearchConfig{
		DefaultLimit:   10,
		MaxLimit:       50,
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		BranchTimeout:  time.Second,
		TopKCandidates: 20,
		SnippetLength:  200,
	}
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChunk(doc string, ordinal int, text string) *models.Chunk {
	return &models.Chunk{
		DocumentID:   doc,
		Ordinal:      ordinal,
		Text:         text,
		Title:        "Title " + doc,
		DocumentType: "contract",
		Jurisdiction: "state",
	}
}

func semanticHit(c *models.Chunk, similarity float64) vector.Hit {
	return vector.Hit{Key: c.Ref(), Chunk: c, Similarity: similarity}
}

func keywordHit(c *models.Chunk, score float64) *keyword.Result {
	return &keyword.Result{Key: c.Ref(), Chunk: c, Score: score}
}

func TestEngine_SearchFusesBothBranches(t *testing.T) {
	store := newTestStorage(t)
	c := testChunk("d1", 0, "The Contract breach was material.")
	engine := NewEngine(store,
		&fakeSemantic{hits: []vector.Hit{semanticHit(c, 0.8)}},
		&fakeKeyword{results: []*keyword.Result{keywordHit(c, 0.03)}},
		testConfig(), nil)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "contract breach"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.InDelta(t, 0.569, r.Score, 1e-9)
	assert.Equal(t, 0.8, r.SemanticScore)
	assert.Equal(t, 0.03, r.KeywordScore)
	assert.Equal(t, "doc_d1_chunk_0", r.ChunkID)
	assert.Equal(t, 1, r.Rank)
	assert.Equal(t, "The <mark>Contract</mark> <mark>breach</mark> was material.", r.Highlighted)
	assert.Equal(t, "The Contract breach was material.", r.Text)
	assert.False(t, resp.Degraded)
	assert.Equal(t, models.ModeHybrid, resp.Mode)
	require.Len(t, resp.Branches, 2)
	for _, b := range resp.Branches {
		assert.True(t, b.Contributed)
		assert.Empty(t, b.Error)
	}

	logged, err := store.RecentSearches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "contract breach", logged[0].Query)
}

func TestEngine_SearchSingleBranchModes(t *testing.T) {
	c := testChunk("d1", 0, "contract")
	sem := &fakeSemantic{hits: []vector.Hit{semanticHit(c, 0.8)}}
	kw := &fakeKeyword{results: []*keyword.Result{keywordHit(c, 0.03)}}
	engine := NewEngine(newTestStorage(t), sem, kw, testConfig(), nil)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "contract", Mode: models.ModeKeyword})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 0.03, resp.Results[0].Score, 1e-9)
	require.Len(t, resp.Branches, 1)
	assert.Equal(t, models.BranchKeyword, resp.Branches[0].Branch)

	resp, err = engine.Search(context.Background(), &models.SearchQuery{Query: "contract", Mode: models.ModeSemantic})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 0.8, resp.Results[0].Score, 1e-9)
	require.Len(t, resp.Branches, 1)
	assert.Equal(t, models.BranchSemantic, resp.Branches[0].Branch)
}

func TestEngine_SearchWeightOverrides(t *testing.T) {
	c := testChunk("d1", 0, "contract")
	engine := NewEngine(newTestStorage(t),
		&fakeSemantic{hits: []vector.Hit{semanticHit(c, 0.5)}},
		&fakeKeyword{results: []*keyword.Result{keywordHit(c, 0.5)}},
		testConfig(), nil)

	sw, kw := 1.0, 1.0
	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query: "contract", SemanticWeight: &sw, KeywordWeight: &kw,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
}

func TestEngine_SearchDegradesOnBranchFailure(t *testing.T) {
	c := testChunk("d1", 0, "contract law")
	engine := NewEngine(newTestStorage(t),
		&fakeSemantic{err: errors.New("embedder down")},
		&fakeKeyword{results: []*keyword.Result{keywordHit(c, 0.5)}},
		testConfig(), nil)

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "contract"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 0.15, resp.Results[0].Score, 1e-9)

	require.Len(t, resp.Branches, 2)
	assert.Equal(t, models.BranchSemantic, resp.Branches[0].Branch)
	assert.False(t, resp.Branches[0].Contributed)
	assert.Contains(t, resp.Branches[0].Error, "embedder down")
	assert.True(t, resp.Branches[1].Contributed)
}

func TestEngine_SearchBranchTimeout(t *testing.T) {
	c := testChunk("d1", 0, "contract")
	cfg := testConfig()
	cfg.BranchTimeout = 20 * time.Millisecond
	engine := NewEngine(newTestStorage(t),
		&fakeSemantic{hits: []vector.Hit{semanticHit(c, 0.9)}, delay: 2 * time.Second},
		&fakeKeyword{results: []*keyword.Result{keywordHit(c, 0.5)}},
		cfg, nil)

	start := time.Now()
	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "contract"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, resp.Degraded)
	assert.False(t, resp.Branches[0].Contributed)
	assert.Contains(t, resp.Branches[0].Error, context.DeadlineExceeded.Error())
}

func TestEngine_SearchFailsWhenAllBranchesFail(t *testing.T) {
	engine := NewEngine(newTestStorage(t),
		&fakeSemantic{err: errors.New("vector store down")},
		&fakeKeyword{err: errors.New("bleve down")},
		testConfig(), nil)

	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: "contract"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSearchFailed)
	assert.ErrorIs(t, err, models.ErrBranchTimeout)
	assert.Contains(t, err.Error(), "vector store down")
	assert.Contains(t, err.Error(), "bleve down")

	_, err = engine.Search(context.Background(), &models.SearchQuery{Query: "contract", Mode: models.ModeSemantic})
	assert.ErrorIs(t, err, models.ErrSearchFailed)
}

func TestEngine_SearchEmptyIsNotAnError(t *testing.T) {
	engine := NewEngine(newTestStorage(t), &fakeSemantic{}, &fakeKeyword{}, testConfig(), nil)
	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Total)
	assert.False(t, resp.Degraded)
}

func TestEngine_SearchRejectsInvalidQuery(t *testing.T) {
	sem := &fakeSemantic{}
	engine := NewEngine(newTestStorage(t), sem, &fakeKeyword{}, testConfig(), nil)

	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = engine.Search(context.Background(), &models.SearchQuery{Query: "x", Limit: 500})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEngine_SearchPaginationIsStable(t *testing.T) {
	var hits []vector.Hit
	var kw []*keyword.Result
	for i := 0; i < 23; i++ {
		c := testChunk(fmt.Sprintf("d%02d", i), 0, "contract")
		// repeated similarities produce ties
		hits = append(hits, semanticHit(c, 0.9-float64(i/3)*0.1))
		if i%2 == 0 {
			kw = append(kw, keywordHit(c, 0.05))
		}
	}
	extra := testChunk("kwonly", 0, "contract")
	kw = append(kw, keywordHit(extra, 0.9))

	cfg := testConfig()
	cfg.TopKCandidates = 50
	engine := NewEngine(newTestStorage(t), &fakeSemantic{hits: hits}, &fakeKeyword{results: kw}, cfg, nil)
	ctx := context.Background()

	full, err := engine.Search(ctx, &models.SearchQuery{Query: "contract", Limit: 50})
	require.NoError(t, err)
	require.Equal(t, 24, full.Total)
	require.Len(t, full.Results, 24)

	var paged []string
	for offset := 0; offset < full.Total; offset += 5 {
		resp, err := engine.Search(ctx, &models.SearchQuery{Query: "contract", Limit: 5, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, full.Total, resp.Total)
		for i, r := range resp.Results {
			assert.Equal(t, offset+i+1, r.Rank)
			paged = append(paged, r.ChunkID)
		}
	}

	var want []string
	for _, r := range full.Results {
		want = append(want, r.ChunkID)
	}
	assert.Equal(t, want, paged)

	for i := 1; i < len(full.Results); i++ {
		assert.GreaterOrEqual(t, full.Results[i-1].Score, full.Results[i].Score)
	}
}

func TestEngine_SearchHighlightDisabled(t *testing.T) {
	c := testChunk("d1", 0, "contract")
	engine := NewEngine(newTestStorage(t), &fakeSemantic{hits: []vector.Hit{semanticHit(c, 0.8)}}, &fakeKeyword{}, testConfig(), nil)
	off := false
	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "contract", Highlight: &off})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].Highlighted)
}

func TestEngine_SearchRespectsCancellation(t *testing.T) {
	engine := NewEngine(newTestStorage(t),
		&fakeSemantic{delay: time.Second},
		&fakeKeyword{},
		testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Search(ctx, &models.SearchQuery{Query: "contract"})
	assert.ErrorIs(t, err, context.Canceled)
}
