package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

const (
	fieldText         = "text"
	fieldDocumentID   = "document_id"
	fieldOrdinal      = "ordinal"
	fieldTitle        = "title"
	fieldSection      = "section_title"
	fieldDocumentType = "document_type"
	fieldJurisdiction = "jurisdiction"
	fieldConcepts     = "concepts"
	fieldCitations    = "citations"
	fieldDate         = "date_published"
	fieldPage         = "page_number"
	fieldImportance   = "importance"

	// textAnalyzer lower-cases unicode tokens and keeps stop words and single letters,
	// which reporter abbreviations ("u.s.c.", "f.3d") are made of.
	textAnalyzer = "lexsearch_text"

	// DefaultCandidates is the first Bleve result window re-scored per search.
	DefaultCandidates = 1000
	// MaxCandidates caps the widened window when more chunks match than DefaultCandidates.
	MaxCandidates     = 100000
	maxDocumentChunks = 100000
)

// BleveIndex stores one Bleve document per chunk, keyed by the chunk id.
type BleveIndex struct {
	index      bleve.Index
	candidates int
	logger     *zap.Logger
}

// BleveOption configures a BleveIndex.
type BleveOption func(*BleveIndex)

// WithCandidates sets the Bleve result window that is re-scored by term frequency.
func WithCandidates(n int) BleveOption {
	return func(b *BleveIndex) {
		if n > 0 {
			b.candidates = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) BleveOption {
	return func(b *BleveIndex) {
		b.logger = utils.OrNop(l)
	}
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an
// in-memory index. If the mapping changes in code, remove the index directory to rebuild.
func NewBleveIndex(path string, opts ...BleveOption) (*BleveIndex, error) {
	b := &BleveIndex{candidates: DefaultCandidates, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	var (
		index bleve.Index
		err   error
	)
	if path != "" && exists(path) {
		index, err = bleve.Open(path)
	} else {
		var im mapping.IndexMapping
		if im, err = chunkMapping(); err != nil {
			return nil, err
		}
		if path == "" {
			index, err = bleve.NewMemOnly(im)
		} else {
			index, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	b.index = index
	return b, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func chunkMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(textAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetokenizer.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register text analyzer: %w", err)
	}
	doc := bleve.NewDocumentMapping()

	// no stemming or stop words, so substring wildcards line up with the
	// term-frequency re-score
	text := bleve.NewTextFieldMapping()
	text.Analyzer = textAnalyzer
	text.IncludeTermVectors = false
	doc.AddFieldMappingsAt(fieldText, text)

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	doc.AddFieldMappingsAt(fieldTitle, stored)
	doc.AddFieldMappingsAt(fieldSection, stored)
	doc.AddFieldMappingsAt(fieldCitations, stored)

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keywordanalyzer.Name
	doc.AddFieldMappingsAt(fieldDocumentID, kw)
	doc.AddFieldMappingsAt(fieldDocumentType, kw)
	doc.AddFieldMappingsAt(fieldJurisdiction, kw)
	doc.AddFieldMappingsAt(fieldConcepts, kw)

	doc.AddFieldMappingsAt(fieldDate, bleve.NewDateTimeFieldMapping())
	doc.AddFieldMappingsAt(fieldOrdinal, bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt(fieldPage, bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt(fieldImportance, bleve.NewNumericFieldMapping())

	im.DefaultMapping = doc
	im.DefaultAnalyzer = textAnalyzer
	return im, nil
}

func chunkDocument(c *models.Chunk) map[string]interface{} {
	doc := map[string]interface{}{
		fieldText:         c.Text,
		fieldDocumentID:   c.DocumentID,
		fieldOrdinal:      float64(c.Ordinal),
		fieldTitle:        c.Title,
		fieldSection:      c.SectionTitle,
		fieldDocumentType: strings.ToLower(c.DocumentType),
		fieldJurisdiction: strings.ToLower(c.Jurisdiction),
		fieldConcepts:     c.Concepts,
		fieldCitations:    c.Citations,
		fieldPage:         float64(c.PageNumber),
		fieldImportance:   c.ImportanceScore,
	}
	if c.DatePublished != nil {
		doc[fieldDate] = c.DatePublished.UTC()
	}
	return doc
}

// IndexChunks swaps the document's chunks in a single batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error {
	old, err := b.documentChunkIDs(ctx, documentID)
	if err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range old {
		batch.Delete(id)
	}
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return fmt.Errorf("chunk %s does not belong to document %s", c.Ref(), documentID)
		}
		if err := batch.Index(c.Ref().String(), chunkDocument(c)); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.Ref(), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write keyword batch: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk of the document in one batch.
func (b *BleveIndex) DeleteDocument(ctx context.Context, documentID string) error {
	ids, err := b.documentChunkIDs(ctx, documentID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

func (b *BleveIndex) documentChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	q := bleve.NewTermQuery(documentID)
	q.SetField(fieldDocumentID)
	req := bleve.NewSearchRequestOptions(q, maxDocumentChunks, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks of %s: %w", documentID, err)
	}
	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search matches chunks containing any term, then re-ranks them by term frequency. A
// term with punctuation or mixed letters and digits matches when every letter or digit
// run of it is a substring of an indexed token. When more chunks match than the
// candidate window, the window widens to the match count, up to MaxCandidates.
func (b *BleveIndex) Search(ctx context.Context, terms []string, k int, filter *models.Filters) ([]*Result, error) {
	if k <= 0 {
		return []*Result{}, nil
	}
	match := termsQuery(terms)
	if match == nil {
		return []*Result{}, nil
	}
	q := match
	if fq := filterQueries(filter); len(fq) > 0 {
		q = bleve.NewConjunctionQuery(append([]blevequery.Query{match}, fq...)...)
	}

	size := b.candidates
	if size < k {
		size = k
	}
	res, err := b.search(ctx, q, size)
	if err != nil {
		return nil, err
	}
	if res.Total > uint64(len(res.Hits)) && size < MaxCandidates {
		size = MaxCandidates
		if res.Total < uint64(size) {
			size = int(res.Total)
		}
		if res, err = b.search(ctx, q, size); err != nil {
			return nil, err
		}
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunk := decodeHit(hit)
		score := TermFrequencyScore(chunk.Text, terms)
		if score <= 0 {
			continue
		}
		out = append(out, &Result{Key: chunk.Ref(), Chunk: chunk, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Key.DocumentID != out[j].Key.DocumentID {
			return out[i].Key.DocumentID < out[j].Key.DocumentID
		}
		return out[i].Key.Ordinal < out[j].Key.Ordinal
	})
	if len(out) > k {
		out = out[:k]
	}
	b.logger.Debug("keyword search",
		zap.Strings("terms", terms),
		zap.Uint64("bleve_total", res.Total),
		zap.Int("results", len(out)),
	)
	return out, nil
}

func (b *BleveIndex) search(ctx context.Context, q blevequery.Query, size int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"*"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	return res, nil
}

// termsQuery builds a disjunction with one clause per term; nil when there are no terms.
// The tokenizer may split a term like "u.s.c." or "f.3d" anywhere, so such a term becomes
// a conjunction of wildcards over its pieces. The term-frequency re-score drops chunks
// that hold the pieces apart.
func termsQuery(terms []string) blevequery.Query {
	clauses := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		pieces := termPieces(strings.ToLower(term))
		if len(pieces) == 0 {
			continue
		}
		wildcards := make([]blevequery.Query, len(pieces))
		for i, p := range pieces {
			wq := bleve.NewWildcardQuery("*" + p + "*")
			wq.SetField(fieldText)
			wildcards[i] = wq
		}
		if len(wildcards) == 1 {
			clauses = append(clauses, wildcards[0])
			continue
		}
		clauses = append(clauses, bleve.NewConjunctionQuery(wildcards...))
	}
	if len(clauses) == 0 {
		return nil
	}
	d := bleve.NewDisjunctionQuery(clauses...)
	d.SetMin(1)
	return d
}

// termPieces splits term into runs of letters and runs of digits.
func termPieces(term string) []string {
	var (
		pieces []string
		cur    []rune
		digits bool
	)
	flush := func() {
		if len(cur) > 0 {
			pieces = append(pieces, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range term {
		letter, digit := unicode.IsLetter(r), unicode.IsDigit(r)
		if !letter && !digit {
			flush()
			continue
		}
		if len(cur) > 0 && digit != digits {
			flush()
		}
		cur = append(cur, r)
		digits = digit
	}
	flush()
	return pieces
}

func filterQueries(filter *models.Filters) []blevequery.Query {
	if filter.IsEmpty() {
		return nil
	}
	var out []blevequery.Query
	anyOf := func(field string, values []string) {
		if len(values) == 0 {
			return
		}
		qs := make([]blevequery.Query, len(values))
		for i, v := range values {
			tq := bleve.NewTermQuery(strings.ToLower(v))
			tq.SetField(field)
			qs[i] = tq
		}
		out = append(out, bleve.NewDisjunctionQuery(qs...))
	}
	anyOf(fieldDocumentType, filter.DocumentTypes)
	anyOf(fieldJurisdiction, filter.Jurisdictions)
	anyOf(fieldConcepts, filter.Concepts)

	if filter.HasDateRange() {
		var start, end time.Time
		if filter.DateFrom != nil {
			start = filter.DateFrom.UTC()
		}
		if filter.DateTo != nil {
			end = filter.DateTo.UTC()
		}
		inclusive := true
		dq := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		dq.SetField(fieldDate)
		out = append(out, dq)
	}
	return out
}

// decodeHit rebuilds a chunk from stored fields. Single-valued arrays come back as scalars.
func decodeHit(hit *search.DocumentMatch) *models.Chunk {
	f := hit.Fields
	str := func(name string) string {
		s, _ := f[name].(string)
		return s
	}
	num := func(name string) float64 {
		n, _ := f[name].(float64)
		return n
	}
	c := &models.Chunk{
		DocumentID:      str(fieldDocumentID),
		Ordinal:         int(num(fieldOrdinal)),
		Text:            str(fieldText),
		Title:           str(fieldTitle),
		SectionTitle:    str(fieldSection),
		DocumentType:    str(fieldDocumentType),
		Jurisdiction:    str(fieldJurisdiction),
		Concepts:        stringList(f[fieldConcepts]),
		Citations:       stringList(f[fieldCitations]),
		PageNumber:      int(num(fieldPage)),
		ImportanceScore: num(fieldImportance),
	}
	c.WordCount = utils.WordCount(c.Text)
	c.CharCount = len([]rune(c.Text))
	if s := str(fieldDate); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			c.DatePublished = &t
		}
	}
	return c
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Terms walks the text field dictionary for prefix, most frequent first.
func (b *BleveIndex) Terms(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || limit <= 0 {
		return []string{}, nil
	}
	dict, err := b.index.FieldDictPrefix(fieldText, []byte(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to read term dictionary: %w", err)
	}
	defer dict.Close()

	type counted struct {
		term  string
		count uint64
	}
	var found []counted
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Term != prefix {
			found = append(found, counted{term: entry.Term, count: entry.Count})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].count != found[j].count {
			return found[i].count > found[j].count
		}
		return found[i].term < found[j].term
	})
	if len(found) > limit {
		found = found[:limit]
	}
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.term
	}
	return out, nil
}

// Corrections scans the text field dictionary for terms close to term.
func (b *BleveIndex) Corrections(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	dict, err := b.index.FieldDict(fieldText)
	if err != nil {
		return nil, fmt.Errorf("failed to read term dictionary: %w", err)
	}
	defer dict.Close()

	var entries []DictionaryTerm
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		entries = append(entries, DictionaryTerm{Term: entry.Term, Frequency: int(entry.Count)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Suggest(term, entries, DefaultMaxDistance, limit), nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
