package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/lexsearch/internal/indexer"
	"github.com/hyperjump/lexsearch/internal/keyword"
	"github.com/hyperjump/lexsearch/internal/models"
)

const (
	citationContextChars = 100
	maxCitationResults   = 20
	citationCandidates   = 200
	defaultSuggestions   = 5
)

// FindSimilar ranks other documents by the average similarity of their chunks to the
// source document's first chunk.
func (e *Engine) FindSimilar(ctx context.Context, documentID string, limit int) ([]*models.SimilarDocument, error) {
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if _, err := e.storage.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	chunks, err := e.storage.ListChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []*models.SimilarDocument{}, nil
	}

	hits, err := e.semantic.FindSimilar(ctx, chunks[0].Ref(), limit*3)
	if errors.Is(err, models.ErrNotFound) {
		return []*models.SimilarDocument{}, nil
	}
	if err != nil {
		return nil, err
	}

	type agg struct {
		doc   *models.SimilarDocument
		total float64
	}
	byDoc := make(map[string]*agg)
	order := make([]*agg, 0)
	for _, h := range hits {
		if h.Key.DocumentID == documentID {
			continue
		}
		a, ok := byDoc[h.Key.DocumentID]
		if !ok {
			a = &agg{doc: &models.SimilarDocument{
				DocumentID:   h.Key.DocumentID,
				Title:        h.Chunk.Title,
				DocumentType: h.Chunk.DocumentType,
				Jurisdiction: h.Chunk.Jurisdiction,
			}}
			byDoc[h.Key.DocumentID] = a
			order = append(order, a)
		}
		a.total += h.Similarity
		a.doc.MatchedChunks++
	}

	out := make([]*models.SimilarDocument, 0, len(order))
	for _, a := range order {
		a.doc.Similarity = a.total / float64(a.doc.MatchedChunks)
		out = append(out, a.doc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchCitations finds chunks mentioning citation. Exact matching looks for the whole
// citation; otherwise any of its terms qualifies and confidence is the fraction of terms found.
func (e *Engine) SearchCitations(ctx context.Context, citation string, exact bool) ([]*models.CitationResult, error) {
	citation = strings.TrimSpace(citation)
	if citation == "" {
		return nil, models.NewValidationError("citation", "cannot be empty")
	}
	terms := keyword.QueryTerms(citation)
	// chunk text is stored cleaned, so the needle is cleaned the same way
	needle := indexer.Clean(citation)

	var chunks []*models.Chunk
	if exact {
		found, err := e.storage.SearchChunksByCitation(ctx, needle, citationCandidates)
		if err != nil {
			return nil, err
		}
		chunks = found
	} else {
		found, err := e.keyword.Search(ctx, terms, citationCandidates, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range found {
			chunks = append(chunks, r.Chunk)
		}
	}

	results := make([]*models.CitationResult, 0, len(chunks))
	for _, c := range chunks {
		confidence := 1.0
		if !exact {
			confidence = termCoverage(c.Text, terms)
		}
		results = append(results, &models.CitationResult{
			Citation:     citation,
			DocumentID:   c.DocumentID,
			Title:        c.Title,
			ChunkOrdinal: c.Ordinal,
			Context:      citationContext(c.Text, needle, terms),
			Confidence:   confidence,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Confidence > results[j].Confidence })
	if len(results) > maxCitationResults {
		results = results[:maxCitationResults]
	}
	return results, nil
}

func termCoverage(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if keyword.CountTerm(lower, t) > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// citationContext returns the text around the first occurrence of the citation, or of
// its first matching term.
func citationContext(text, citation string, terms []string) string {
	loc := termPattern([]string{citation}).FindStringIndex(text)
	if loc == nil {
		if re := termPattern(terms); re != nil {
			loc = re.FindStringIndex(text)
		}
	}
	if loc == nil {
		loc = []int{0, 0}
	}
	start := loc[0] - citationContextChars
	if start < 0 {
		start = 0
	}
	end := loc[1] + citationContextChars
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	out := strings.TrimSpace(text[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}

// Suggestions completes partial from concept names and indexed terms, then falls back to
// spelling corrections of its last word.
func (e *Engine) Suggestions(ctx context.Context, partial string, limit int) ([]string, error) {
	partial = strings.ToLower(strings.TrimSpace(partial))
	if partial == "" {
		return nil, models.NewValidationError("query", "cannot be empty")
	}
	if limit <= 0 {
		limit = defaultSuggestions
	}

	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	add := func(s string) bool {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
		return len(out) >= limit
	}

	concepts, err := e.storage.DistinctValues(ctx, "concepts")
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		if strings.Contains(strings.ToLower(c), partial) && add(c) {
			return out, nil
		}
	}

	words := strings.Fields(partial)
	last := words[len(words)-1]
	head := strings.TrimSuffix(partial, last)
	terms, err := e.keyword.Terms(ctx, last, limit)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		if add(head + t) {
			return out, nil
		}
	}

	corrections, err := e.keyword.Corrections(ctx, last, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range corrections {
		if add(head + c.Term) {
			break
		}
	}
	return out, nil
}

// AvailableFilters lists the filter values present among indexed documents.
func (e *Engine) AvailableFilters(ctx context.Context) (*models.AvailableFilters, error) {
	types, err := e.storage.DistinctValues(ctx, "document_type")
	if err != nil {
		return nil, err
	}
	jurisdictions, err := e.storage.DistinctValues(ctx, "jurisdiction")
	if err != nil {
		return nil, err
	}
	concepts, err := e.storage.DistinctValues(ctx, "concepts")
	if err != nil {
		return nil, err
	}
	from, to, err := e.storage.DateRange(ctx)
	if err != nil {
		return nil, err
	}
	return &models.AvailableFilters{
		DocumentTypes: types,
		Jurisdictions: jurisdictions,
		Concepts:      concepts,
		DateFrom:      from,
		DateTo:        to,
	}, nil
}

// DocumentContent returns the document's cleaned text, rebuilt from its chunks when it has any.
func (e *Engine) DocumentContent(ctx context.Context, documentID string) (string, error) {
	doc, err := e.storage.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	chunks, err := e.storage.ListChunks(ctx, documentID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return doc.Content, nil
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n"), nil
}
