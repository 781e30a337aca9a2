package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/lexsearch/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "breach of contract",
		Mode:      models.ModeHybrid,
		Total:     1,
		QueryTime: 12,
		Results: []*models.SearchResult{{
			DocumentID:    "doc-1",
			Title:         "Services Agreement",
			DocumentType:  "contract",
			Jurisdiction:  "state",
			Text:          "A breach of contract entitles the other party to damages.",
			Score:         0.569,
			SemanticScore: 0.5,
			KeywordScore:  0.75,
			Citations:     []string{"123 F.3d 456"},
			Rank:          1,
		}},
		Branches: []models.BranchReport{
			{Branch: models.BranchSemantic, Contributed: true, Candidates: 1},
			{Branch: models.BranchKeyword, Contributed: false, Error: "branch timed out"},
		},
		Degraded: true,
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputText))
	out := buf.String()
	for _, sub := range []string{
		`Found 1 results for "breach of contract" in 12ms (hybrid search)`,
		"warning: keyword search unavailable: branch timed out",
		"#1  0.5690",
		"Services Agreement [contract, state]",
		"ID: doc-1",
		"Citations: 123 F.3d 456",
		"entitles the other party",
	} {
		assert.Contains(t, out, sub)
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputJSON))
	var decoded models.SearchResponse
	require.NoError(t, json.NewDecoder(&buf).Decode(&decoded))
	assert.Equal(t, "breach of contract", decoded.Query)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "doc-1", decoded.Results[0].DocumentID)
	assert.True(t, decoded.Degraded)
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, &models.SearchResponse{Query: "x"}, OutputFormat("yaml")))
	assert.Contains(t, buf.String(), "Found 0 results")
}

func TestWriteOutcomes(t *testing.T) {
	outcomes := []*models.ProcessingOutcome{
		{DocumentID: "a", Status: models.StatusCompleted, Chunks: 3, Method: "text-layer"},
		{DocumentID: "b", Status: models.StatusCompleted, Skipped: true},
		{DocumentID: "c", Status: models.StatusFailed, Error: "extract: no text"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteOutcomes(&buf, outcomes, OutputText))
	out := buf.String()
	assert.Contains(t, out, "OK       a  3 chunks via text-layer")
	assert.Contains(t, out, "SKIPPED  b")
	assert.Contains(t, out, "FAILED   c  extract: no text")
	assert.True(t, strings.HasSuffix(out, "1 indexed, 1 skipped, 1 failed\n"))
}

func TestWriteSimilar(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSimilar(&buf, "a", nil, OutputText))
	assert.Equal(t, "No documents similar to a\n", buf.String())

	buf.Reset()
	similar := []*models.SimilarDocument{{DocumentID: "b", Title: "Lease", Similarity: 0.91, MatchedChunks: 2}}
	require.NoError(t, WriteSimilar(&buf, "a", similar, OutputText))
	assert.Contains(t, buf.String(), "[1] Lease (0.910)")
	assert.Contains(t, buf.String(), "2 matching chunks")
}

func TestWriteStatus(t *testing.T) {
	disk := int64(4096)
	status := &Status{
		Documents:       3,
		ByStatus:        map[models.Status]int64{models.StatusCompleted: 2, models.StatusFailed: 1},
		Chunks:          10,
		VectorIndexSize: 10,
		VectorBackend:   "memory",
		Embedding:       "hash",
		Dimensions:      384,
		DiskUsageBytes:  &disk,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, status, OutputText))
	out := buf.String()
	assert.Contains(t, out, "documents:          3")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "disk_usage_bytes:   4096")
	assert.Contains(t, out, "embedding:          hash (384 dims)")
	assert.NotContains(t, out, "pending")

	buf.Reset()
	require.NoError(t, WriteStatus(&buf, status, OutputJSON))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(10), decoded["chunks"])
}
