package indexer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/lexsearch/internal/legal"
	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// DefaultChunkSize is the target chunk length in words.
const DefaultChunkSize = 1000

const (
	minSentencesToSplit = 3
	minParagraphChars   = 50
)

var errNoChunks = errors.New("no chunks produced")

// ChunkStrategy splits cleaned text into chunk texts.
type ChunkStrategy interface {
	Name() string
	Split(text string, size int) ([]string, error)
}

// Chunker splits normalized text into bounded chunks, falling back from sentence packing
// to token packing to paragraph splitting.
type Chunker struct {
	size       int
	strategies []ChunkStrategy
	logger     *zap.Logger
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkStrategies replaces the fallback chain.
func WithChunkStrategies(s ...ChunkStrategy) ChunkerOption {
	return func(c *Chunker) { c.strategies = s }
}

// WithChunkLogger sets the logger used when a strategy is skipped.
func WithChunkLogger(l *zap.Logger) ChunkerOption {
	return func(c *Chunker) { c.logger = l }
}

// NewChunker creates a chunker targeting size words per chunk.
func NewChunker(size int, opts ...ChunkerOption) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	c := &Chunker{
		size:       size,
		strategies: []ChunkStrategy{sentenceStrategy{}, tokenStrategy{}, paragraphStrategy{}},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Chunk returns the chunk texts for text. Non-empty input always yields at least one chunk.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, s := range c.strategies {
		chunks, err := s.Split(text, c.size)
		chunks = dropEmpty(chunks)
		if err == nil && len(chunks) > 0 {
			return chunks
		}
		c.logger.Debug("chunk strategy yielded nothing", zap.String("strategy", s.Name()), zap.Error(err))
	}
	return []string{text}
}

// Annotate wraps chunk texts as Chunks with contiguous ordinals and per-chunk tags.
func (c *Chunker) Annotate(docID string, texts []string) []*models.Chunk {
	out := make([]*models.Chunk, len(texts))
	for i, t := range texts {
		concepts, citations := legal.ChunkTags(t)
		words := len(strings.Fields(t))
		out[i] = &models.Chunk{
			DocumentID:      docID,
			Ordinal:         i,
			Text:            t,
			WordCount:       words,
			CharCount:       len([]rune(t)),
			SectionTitle:    sectionTitle(t),
			Concepts:        concepts,
			Citations:       citations,
			ImportanceScore: importance(words, concepts, citations),
		}
	}
	return out
}

func dropEmpty(chunks []string) []string {
	out := chunks[:0]
	for _, ch := range chunks {
		if strings.TrimSpace(ch) != "" {
			out = append(out, ch)
		}
	}
	return out
}

// importance rewards concept coverage and citation density.
func importance(words int, concepts, citations []string) float64 {
	if words == 0 {
		return 0
	}
	score := 0.15 * float64(len(concepts))
	score += math.Min(0.4, 20*float64(len(citations))/float64(words))
	return math.Round(math.Min(1, score)*1000) / 1000
}

var headingRe = regexp.MustCompile(`^(?i:section|article|chapter|part|clause|schedule)\s+[0-9IVXLC]+[A-Za-z]?\b`)

// sectionTitle returns the chunk's leading heading, if it has one.
func sectionTitle(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if loc := headingRe.FindStringIndex(line); loc != nil {
		title := line
		if r := []rune(title); len(r) > 100 {
			title = string(r[:100])
		}
		return title
	}
	if len([]rune(line)) <= 80 && isUpperHeading(line) {
		return line
	}
	return ""
}

func isUpperHeading(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

// sentences segments text with prose.
func sentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false))
	if err != nil {
		return nil, fmt.Errorf("segment sentences: %w", err)
	}
	out := make([]string, 0, len(doc.Sentences()))
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// pack greedily groups sentences until the next one would exceed size units.
// A sentence longer than size on its own is split into word windows.
func pack(sents []string, size int, measure func(string) int) []string {
	var chunks []string
	var cur []string
	curLen := 0
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
			cur, curLen = nil, 0
		}
	}
	for _, s := range sents {
		n := measure(s)
		if n > size {
			flush()
			chunks = append(chunks, splitWords(s, size)...)
			continue
		}
		if curLen+n > size && len(cur) > 0 {
			flush()
		}
		cur = append(cur, s)
		curLen += n
	}
	flush()
	return chunks
}

func splitWords(s string, size int) []string {
	words := strings.Fields(s)
	var out []string
	for i := 0; i < len(words); i += size {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}

func wordLen(s string) int { return len(strings.Fields(s)) }

// sentenceStrategy packs prose sentences by word count.
type sentenceStrategy struct{}

func (sentenceStrategy) Name() string { return "sentence" }

func (sentenceStrategy) Split(text string, size int) ([]string, error) {
	sents, err := sentences(text)
	if err != nil {
		return nil, err
	}
	if len(sents) == 0 {
		return nil, errNoChunks
	}
	if len(sents) < minSentencesToSplit {
		return []string{text}, nil
	}
	return pack(sents, size, wordLen), nil
}

// tokenStrategy packs sentences measured in prose tokens.
type tokenStrategy struct{}

func (tokenStrategy) Name() string { return "token" }

func (tokenStrategy) Split(text string, size int) ([]string, error) {
	sents, err := sentences(text)
	if err != nil {
		return nil, err
	}
	return pack(sents, size, tokenLen), nil
}

func tokenLen(s string) int {
	doc, err := prose.NewDocument(s,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return wordLen(s)
	}
	return len(doc.Tokens())
}

// paragraphStrategy splits on blank lines and drops short fragments.
type paragraphStrategy struct{}

func (paragraphStrategy) Name() string { return "paragraph" }

func (paragraphStrategy) Split(text string, _ int) ([]string, error) {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if len([]rune(p)) >= minParagraphChars {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, errNoChunks
	}
	return out, nil
}
