package keyword

import (
	"strings"

	"github.com/hyperjump/lexsearch/pkg/utils"
)

// TermFrequencyScore sums, over terms, the number of case-insensitive occurrences
// of the term in text divided by the word count of text. It is unbounded: a short
// chunk repeating a term can score above 1.
func TermFrequencyScore(text string, terms []string) float64 {
	words := utils.WordCount(text)
	if words == 0 || len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	var hits int
	for _, term := range terms {
		hits += CountTerm(lower, term)
	}
	return float64(hits) / float64(words)
}

// TermVariants returns the lower-cased term and, when it differs, the form cleaned
// document text stores it in, with letters and digits spaced apart.
func TermVariants(term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	split := utils.SplitLetterDigits(term)
	if split == term {
		return []string{term}
	}
	return []string{term, split}
}

// CountTerm counts occurrences of any variant of term in lower, which must already be
// lower-cased.
func CountTerm(lower, term string) int {
	n := 0
	for _, v := range TermVariants(term) {
		n += strings.Count(lower, v)
	}
	return n
}

// QueryTerms lower-cases and splits a query on whitespace, dropping duplicates.
func QueryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
