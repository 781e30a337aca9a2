// Package search provides hybrid search (keyword + semantic) and result fusion.
package search

import (
	"sort"

	"github.com/hyperjump/lexsearch/internal/models"
)

// ScoredChunk is one branch candidate with that branch's raw score.
type ScoredChunk struct {
	Key   models.ChunkRef
	Chunk *models.Chunk
	Score float64
}

// FusedResult holds a chunk and its fused semantic/keyword scores.
type FusedResult struct {
	Key           models.ChunkRef
	Chunk         *models.Chunk
	Score         float64
	SemanticScore float64
	KeywordScore  float64
	Sources       []models.Branch
}

// Fuse merges both branches keyed by (document, chunk). A key missing from a branch scores 0
// there. Keyword scores are clamped to [0,1] for the weighted sum but kept raw on the result.
// Ties keep first-seen order: semantic candidates first, then keyword-only ones.
func Fuse(semantic, keyword []*ScoredChunk, semanticWeight, keywordWeight float64) []*FusedResult {
	byKey := make(map[models.ChunkRef]*FusedResult, len(semantic)+len(keyword))
	results := make([]*FusedResult, 0, len(semantic)+len(keyword))

	for _, c := range semantic {
		if _, dup := byKey[c.Key]; dup {
			continue
		}
		r := &FusedResult{
			Key:           c.Key,
			Chunk:         c.Chunk,
			SemanticScore: c.Score,
			Sources:       []models.Branch{models.BranchSemantic},
		}
		byKey[c.Key] = r
		results = append(results, r)
	}
	for _, c := range keyword {
		if r, ok := byKey[c.Key]; ok {
			if !hasSource(r.Sources, models.BranchKeyword) {
				r.KeywordScore = c.Score
				r.Sources = append(r.Sources, models.BranchKeyword)
			}
			continue
		}
		r := &FusedResult{
			Key:          c.Key,
			Chunk:        c.Chunk,
			KeywordScore: c.Score,
			Sources:      []models.Branch{models.BranchKeyword},
		}
		byKey[c.Key] = r
		results = append(results, r)
	}

	for _, r := range results {
		r.Score = semanticWeight*r.SemanticScore + keywordWeight*clamp01(r.KeywordScore)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// Paginate returns the [offset, offset+limit) window of results.
func Paginate(results []*FusedResult, offset, limit int) []*FusedResult {
	if offset >= len(results) {
		return nil
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

func hasSource(sources []models.Branch, b models.Branch) bool {
	for _, s := range sources {
		if s == b {
			return true
		}
	}
	return false
}

func clamp01(x float64) float64 {
	switch {
	case x != x || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
