package keyword

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func chunk(doc string, ordinal int, text string) *models.Chunk {
	return &models.Chunk{
		DocumentID:   doc,
		Ordinal:      ordinal,
		Text:         text,
		DocumentType: "contract",
		Jurisdiction: "state",
		Concepts:     []string{"contract_law"},
	}
}

func TestBleveIndex_SearchRanksByTermFrequency(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{
		chunk("a", 0, "The contract was signed. A breach of contract occurred. The contract ended."),
		chunk("a", 1, "Nothing relevant here at all."),
	}))
	require.NoError(t, idx.IndexChunks(ctx, "b", []*models.Chunk{
		chunk("b", 0, "A long discussion where the word contract appears once among many other words today."),
	}))

	results, err := idx.Search(ctx, []string{"contract", "breach"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.ChunkRef{DocumentID: "a", Ordinal: 0}, results[0].Key)
	assert.Equal(t, "b", results[1].Key.DocumentID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "contract", results[0].Chunk.DocumentType)
	assert.Equal(t, []string{"contract_law"}, results[0].Chunk.Concepts)
}

func TestBleveIndex_SubstringMatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{chunk("a", 0, "Subcontractors must be licensed.")}))

	results, err := idx.Search(ctx, []string{"contract"}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0/4.0, results[0].Score, 1e-9)
}

func TestBleveIndex_Filters(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	published := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	dated := chunk("dated", 0, "the statute applies to every tenant")
	dated.DocumentType = "statute"
	dated.Jurisdiction = "federal"
	dated.DatePublished = &published
	require.NoError(t, idx.IndexChunks(ctx, "dated", []*models.Chunk{dated}))
	require.NoError(t, idx.IndexChunks(ctx, "plain", []*models.Chunk{chunk("plain", 0, "every tenant pays rent")}))

	results, err := idx.Search(ctx, []string{"tenant"}, 10, &models.Filters{DocumentTypes: []string{"Statute"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dated", results[0].Key.DocumentID)
	require.NotNil(t, results[0].Chunk.DatePublished)
	assert.True(t, published.Equal(*results[0].Chunk.DatePublished))

	from := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	results, err = idx.Search(ctx, []string{"tenant"}, 10, &models.Filters{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dated", results[0].Key.DocumentID)

	results, err = idx.Search(ctx, []string{"tenant"}, 10, &models.Filters{Jurisdictions: []string{"state"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "plain", results[0].Key.DocumentID)
}

func TestBleveIndex_ReindexReplacesChunks(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{
		chunk("a", 0, "first version mentions estoppel"),
		chunk("a", 1, "second chunk mentions estoppel too"),
	}))
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{chunk("a", 0, "rewritten without the term")}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	results, err := idx.Search(ctx, []string{"estoppel"}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_DeleteDocument(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{chunk("a", 0, "negligence"), chunk("a", 1, "negligence again")}))
	require.NoError(t, idx.IndexChunks(ctx, "b", []*models.Chunk{chunk("b", 0, "negligence")}))
	require.NoError(t, idx.DeleteDocument(ctx, "a"))

	results, err := idx.Search(ctx, []string{"negligence"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Key.DocumentID)
	assert.NoError(t, idx.DeleteDocument(ctx, "missing"))
}

func TestBleveIndex_PunctuatedTerm(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{chunk("a", 0, "See 42 U.S.C. 1983 for remedies.")}))

	results, err := idx.Search(ctx, []string{"u.s.c."}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestBleveIndex_ReporterAbbreviation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{
		chunk("a", 0, "The court in Smith v. Jones, 123 F.3 d 456, held that late rent is a breach."),
		chunk("a", 1, "The fee was 3 dollars."),
	}))
	require.NoError(t, idx.IndexChunks(ctx, "b", []*models.Chunk{
		chunk("b", 0, "Reported at 540 F.3d 101 on appeal."),
	}))

	results, err := idx.Search(ctx, []string{"f.3d"}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].Key.DocumentID, results[1].Key.DocumentID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	for _, r := range results {
		assert.Equal(t, 0, r.Key.Ordinal)
	}

	results, err = idx.Search(ctx, []string{"§1983"}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_WidensCandidateWindow(t *testing.T) {
	idx, err := NewBleveIndex("", WithCandidates(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{
		chunk("a", 0, "contract filler filler filler filler filler filler filler filler filler"),
		chunk("a", 1, "contract contract filler"),
		chunk("a", 2, "contract"),
		chunk("a", 3, "contract filler filler filler"),
	}))

	results, err := idx.Search(ctx, []string{"contract"}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Key.Ordinal)
	assert.Equal(t, 1, results[1].Key.Ordinal)
}

func TestTermPieces(t *testing.T) {
	assert.Equal(t, []string{"u", "s", "c"}, termPieces("u.s.c."))
	assert.Equal(t, []string{"f", "3", "d"}, termPieces("f.3d"))
	assert.Equal(t, []string{"1983"}, termPieces("§1983"))
	assert.Equal(t, []string{"breach"}, termPieces("breach"))
	assert.Empty(t, termPieces("§§"))
}

func TestBleveIndex_EmptyTerms(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), []string{" "}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_TermsAndCorrections(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{
		chunk("a", 0, "negligence negligent neglect"),
		chunk("a", 1, "negligence claims"),
	}))

	terms, err := idx.Terms(ctx, "negl", 5)
	require.NoError(t, err)
	require.NotEmpty(t, terms)
	assert.Equal(t, "negligence", terms[0])
	assert.Contains(t, terms, "neglect")

	suggestions, err := idx.Corrections(ctx, "negligense", 3)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "negligence", suggestions[0].Term)
	assert.Equal(t, 1, suggestions[0].Distance)
}

func TestBleveIndex_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	ctx := context.Background()
	idx, err := NewBleveIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.IndexChunks(ctx, "a", []*models.Chunk{chunk("a", 0, "habeas corpus")}))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveIndex(path)
	require.NoError(t, err)
	defer reopened.Close()
	results, err := reopened.Search(ctx, []string{"habeas"}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
