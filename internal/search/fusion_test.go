package search

import (
	"testing"

	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(doc string, ordinal int, score float64) *ScoredChunk {
	ref := models.ChunkRef{DocumentID: doc, Ordinal: ordinal}
	return &ScoredChunk{Key: ref, Chunk: &models.Chunk{DocumentID: doc, Ordinal: ordinal}, Score: score}
}

func TestFuse_WeightedSum(t *testing.T) {
	fused := Fuse(
		[]*ScoredChunk{scored("d1", 0, 0.8)},
		[]*ScoredChunk{scored("d1", 0, 0.03)},
		0.7, 0.3,
	)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.569, fused[0].Score, 1e-9)
	assert.Equal(t, 0.8, fused[0].SemanticScore)
	assert.Equal(t, 0.03, fused[0].KeywordScore)
	assert.Equal(t, []models.Branch{models.BranchSemantic, models.BranchKeyword}, fused[0].Sources)
}

func TestFuse_MissingBranchScoresZero(t *testing.T) {
	fused := Fuse(
		[]*ScoredChunk{scored("a", 0, 0.5)},
		[]*ScoredChunk{scored("b", 0, 0.5)},
		0.7, 0.3,
	)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].Key.DocumentID)
	assert.InDelta(t, 0.35, fused[0].Score, 1e-9)
	assert.Equal(t, "b", fused[1].Key.DocumentID)
	assert.InDelta(t, 0.15, fused[1].Score, 1e-9)
	assert.Equal(t, []models.Branch{models.BranchKeyword}, fused[1].Sources)
}

func TestFuse_ClampsKeywordButKeepsRaw(t *testing.T) {
	fused := Fuse(nil, []*ScoredChunk{scored("a", 0, 2.5)}, 0.7, 0.3)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.3, fused[0].Score, 1e-9)
	assert.Equal(t, 2.5, fused[0].KeywordScore)
}

func TestFuse_TiesKeepSemanticFirst(t *testing.T) {
	fused := Fuse(
		[]*ScoredChunk{scored("s1", 0, 0.5), scored("s2", 0, 0.5)},
		[]*ScoredChunk{scored("k1", 0, 0.5)},
		1, 1,
	)
	require.Len(t, fused, 3)
	assert.Equal(t, "s1", fused[0].Key.DocumentID)
	assert.Equal(t, "s2", fused[1].Key.DocumentID)
	assert.Equal(t, "k1", fused[2].Key.DocumentID)
}

func TestFuse_WeightMonotonicity(t *testing.T) {
	sem := []*ScoredChunk{scored("a", 0, 0.6)}
	kw := []*ScoredChunk{scored("a", 0, 0.2)}
	prev := -1.0
	for _, w := range []float64{0, 0.2, 0.5, 0.9, 1.5} {
		fused := Fuse(sem, kw, w, 0.3)
		require.Len(t, fused, 1)
		assert.GreaterOrEqual(t, fused[0].Score, prev)
		prev = fused[0].Score
	}
}

func TestPaginate(t *testing.T) {
	all := Fuse([]*ScoredChunk{scored("a", 0, 0.9), scored("b", 0, 0.8), scored("c", 0, 0.7)}, nil, 1, 0)
	assert.Len(t, Paginate(all, 0, 2), 2)
	page := Paginate(all, 2, 2)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].Key.DocumentID)
	assert.Empty(t, Paginate(all, 3, 2))
}
