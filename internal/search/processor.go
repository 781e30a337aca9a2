package search

import (
	"github.com/hyperjump/lexsearch/internal/config"
	"github.com/hyperjump/lexsearch/internal/models"
)

// ProcessQuery validates and applies defaults to the search query.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	return query.Validate(cfg.DefaultLimit, cfg.MaxLimit)
}

// ResolveWeights returns the fusion weights for query. Single-branch modes score with
// that branch alone; hybrid uses the query overrides or the configured defaults.
func ResolveWeights(query *models.SearchQuery, cfg *config.SearchConfig) (semantic, keyword float64) {
	switch query.Mode {
	case models.ModeSemantic:
		return 1, 0
	case models.ModeKeyword:
		return 0, 1
	}
	semantic, keyword = cfg.SemanticWeight, cfg.KeywordWeight
	if query.SemanticWeight != nil {
		semantic = *query.SemanticWeight
	}
	if query.KeywordWeight != nil {
		keyword = *query.KeywordWeight
	}
	return semantic, keyword
}

// CandidateDepth is how many candidates each branch fetches before fusion. It always
// covers offset+limit so later pages are ranked over the same pool.
func CandidateDepth(query *models.SearchQuery, cfg *config.SearchConfig) int {
	depth := query.Offset + query.Limit
	if cfg.TopKCandidates > depth {
		depth = cfg.TopKCandidates
	}
	return depth
}
