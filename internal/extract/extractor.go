// Package extract turns raw legal document bytes into plain text.
//
// Each supported file type owns an ordered chain of strategies. The chain is walked
// until one strategy returns at least the type's minimum amount of text; the best
// partial result is kept when none reaches it, and only a chain that yields nothing
// at all is reported as an extraction failure.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/lexsearch/internal/models"
	"github.com/hyperjump/lexsearch/pkg/utils"
	"go.uber.org/zap"
)

const (
	// DefaultMinTextChars is the floor under which a PDF text layer is considered unusable.
	DefaultMinTextChars = 100
	// DefaultOCRMaxPages caps how many pages are rasterised for OCR.
	DefaultOCRMaxPages = 10
	// MethodUnsupported is reported for file types without a strategy chain.
	MethodUnsupported = "unsupported"
)

// Attempt records one strategy run.
type Attempt struct {
	Method string `json:"method"`
	Chars  int    `json:"chars"`
	Err    string `json:"error,omitempty"`
}

// Result is the outcome of a successful extraction.
type Result struct {
	Text     string    `json:"text"`
	Method   string    `json:"method"`
	FileType string    `json:"file_type"`
	Pages    int       `json:"pages,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

type chain struct {
	strategies []Strategy
	minChars   int
}

// Tools names the external binaries used by the layout and OCR strategies.
type Tools struct {
	Pdftotext string
	Pdftoppm  string
	Tesseract string
	Language  string
}

// Extractor extracts plain text from document bytes.
type Extractor struct {
	logger       *zap.Logger
	runner       CommandRunner
	tools        Tools
	minTextChars int
	ocrMaxPages  int
	maxBytes     int64
	overrides    map[string][]Strategy
	chains       map[string]chain
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithRunner sets the runner used for pdftotext, pdftoppm and tesseract.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithTools overrides binary names and the OCR language. Empty fields keep their defaults.
func WithTools(t Tools) Option {
	return func(e *Extractor) {
		if t.Pdftotext != "" {
			e.tools.Pdftotext = t.Pdftotext
		}
		if t.Pdftoppm != "" {
			e.tools.Pdftoppm = t.Pdftoppm
		}
		if t.Tesseract != "" {
			e.tools.Tesseract = t.Tesseract
		}
		if t.Language != "" {
			e.tools.Language = t.Language
		}
	}
}

// WithMinTextChars sets the PDF text floor.
func WithMinTextChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minTextChars = n
		}
	}
}

// WithOCRMaxPages sets the OCR page cap.
func WithOCRMaxPages(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.ocrMaxPages = n
		}
	}
}

// WithMaxBytes rejects inputs larger than n bytes. Zero disables the check.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) { e.maxBytes = n }
}

// WithStrategies replaces the chain for fileType.
func WithStrategies(fileType string, strategies ...Strategy) Option {
	return func(e *Extractor) {
		e.overrides[NormalizeFileType(fileType)] = strategies
	}
}

// NewExtractor returns an Extractor with the default chains.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		runner: ExecRunner{},
		tools: Tools{
			Pdftotext: "pdftotext",
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Language:  "eng",
		},
		minTextChars: DefaultMinTextChars,
		ocrMaxPages:  DefaultOCRMaxPages,
		overrides:    make(map[string][]Strategy),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	e.chains = e.defaultChains()
	for ft, strategies := range e.overrides {
		c := e.chains[ft]
		if c.minChars == 0 {
			c.minChars = 1
		}
		c.strategies = strategies
		e.chains[ft] = c
	}
	return e
}

func (e *Extractor) defaultChains() map[string]chain {
	pdfChain := chain{
		strategies: []Strategy{
			textLayerStrategy{},
			&layoutStrategy{runner: e.runner, bin: e.tools.Pdftotext},
			&ocrStrategy{
				runner:    e.runner,
				pdftoppm:  e.tools.Pdftoppm,
				tesseract: e.tools.Tesseract,
				language:  e.tools.Language,
				maxPages:  e.ocrMaxPages,
				logger:    e.logger,
			},
		},
		minChars: e.minTextChars,
	}
	docChain := chain{strategies: []Strategy{docxXMLStrategy{}, catStrategy{name: "docx_cat"}}, minChars: 1}
	textChain := chain{strategies: plainStrategies(), minChars: 1}
	htmlChain := chain{strategies: []Strategy{htmlStrategy{}}, minChars: 1}
	return map[string]chain{
		"pdf":  pdfChain,
		"docx": docChain,
		"txt":  textChain,
		"md":   textChain,
		"html": htmlChain,
		"xlsx": {strategies: []Strategy{spreadsheetStrategy{}}, minChars: 1},
		"rtf":  {strategies: []Strategy{catStrategy{name: "rtf_cat"}}, minChars: 1},
		"odt":  {strategies: []Strategy{catStrategy{name: "odt_cat"}}, minChars: 1},
	}
}

// NormalizeFileType accepts "pdf", ".PDF" or "Report.pdf" and returns "pdf".
func NormalizeFileType(fileType string) string {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if ext := filepath.Ext(ft); ext != "" {
		ft = ext
	}
	ft = strings.TrimPrefix(ft, ".")
	switch ft {
	case "htm", "xhtml":
		return "html"
	case "text":
		return "txt"
	case "markdown":
		return "md"
	}
	return ft
}

// Supports reports whether fileType has a strategy chain.
func (e *Extractor) Supports(fileType string) bool {
	_, ok := e.chains[NormalizeFileType(fileType)]
	return ok
}

// ExtractFile reads path and extracts its text, using the extension as file type.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	if e.maxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat file: %w", err)
		}
		if info.Size() > e.maxBytes {
			return nil, models.NewValidationError("file", "%s is %d bytes, limit is %d", filepath.Base(path), info.Size(), e.maxBytes)
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(ctx, content, path)
}

// Extract runs the strategy chain for fileType over content.
// Unsupported types yield an empty result and no error.
func (e *Extractor) Extract(ctx context.Context, content []byte, fileType string) (*Result, error) {
	ft := NormalizeFileType(fileType)
	if e.maxBytes > 0 && int64(len(content)) > e.maxBytes {
		return nil, models.NewValidationError("file", "%d bytes exceeds limit of %d", len(content), e.maxBytes)
	}
	c, ok := e.chains[ft]
	if !ok {
		e.logger.Warn("unsupported file type", zap.String("file_type", ft))
		return &Result{FileType: ft, Method: MethodUnsupported}, nil
	}

	res := &Result{FileType: ft}
	if ft == "pdf" {
		res.Pages = pdfPageCount(content)
	}

	var best string
	var bestMethod string
	bestChars := 0
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := runStrategy(ctx, s, content)
		chars := utf8.RuneCountInString(strings.TrimSpace(text))
		att := Attempt{Method: s.Name(), Chars: chars}
		if err != nil {
			att.Err = err.Error()
			e.logger.Warn("extraction strategy failed",
				zap.String("file_type", ft),
				zap.String("method", s.Name()),
				zap.Error(err))
		}
		res.Attempts = append(res.Attempts, att)
		if err == nil && chars >= c.minChars {
			res.Text = text
			res.Method = s.Name()
			return res, nil
		}
		if chars > bestChars {
			best, bestMethod, bestChars = text, s.Name(), chars
		}
		e.logger.Debug("extraction below floor, trying next strategy",
			zap.String("file_type", ft),
			zap.String("method", s.Name()),
			zap.Int("chars", chars),
			zap.Int("floor", c.minChars))
	}
	if bestChars > 0 {
		res.Text = best
		res.Method = bestMethod
		return res, nil
	}
	reasons := make([]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		r := a.Err
		if r == "" {
			r = "no text"
		}
		reasons = append(reasons, a.Method+": "+r)
	}
	return nil, fmt.Errorf("%w: %s: %s", models.ErrExtraction, ft, strings.Join(reasons, "; "))
}
