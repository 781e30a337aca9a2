package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// textLayerStrategy reads the embedded text layer.
type textLayerStrategy struct{}

func (textLayerStrategy) Name() string { return "pdf_text" }

func (textLayerStrategy) Attempt(ctx context.Context, content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// pdfPageCount returns the number of pages, or 0 if the document cannot be parsed.
func pdfPageCount(content []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}

// layoutStrategy runs poppler's pdftotext in layout mode, which keeps table columns apart.
type layoutStrategy struct {
	runner CommandRunner
	bin    string
}

func (s *layoutStrategy) Name() string { return "pdf_layout" }

func (s *layoutStrategy) Attempt(ctx context.Context, content []byte) (string, error) {
	dir, err := os.MkdirTemp("", "lexsearch-layout-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	out, err := s.runner.Run(ctx, s.bin, "-layout", "-enc", "UTF-8", in, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ocrStrategy rasterises the first pages with pdftoppm and reads them with tesseract.
type ocrStrategy struct {
	runner    CommandRunner
	pdftoppm  string
	tesseract string
	language  string
	maxPages  int
	logger    *zap.Logger
}

func (s *ocrStrategy) Name() string { return "pdf_ocr" }

func (s *ocrStrategy) Attempt(ctx context.Context, content []byte) (string, error) {
	last := s.maxPages
	if pages := pdfPageCount(content); pages > 0 && pages < last {
		last = pages
	}

	dir, err := os.MkdirTemp("", "lexsearch-ocr-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	prefix := filepath.Join(dir, "page")
	if _, err := s.runner.Run(ctx, s.pdftoppm,
		"-r", "300", "-png",
		"-f", "1", "-l", strconv.Itoa(last),
		in, prefix); err != nil {
		return "", fmt.Errorf("rasterise: %w", err)
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", ErrInsufficient
	}
	sort.Strings(images)
	if len(images) > last {
		images = images[:last]
	}

	pages := make([]string, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := s.runner.Run(ctx, s.tesseract, img, "stdout", "-l", s.language)
		if err != nil {
			s.logger.Warn("ocr page failed", zap.String("image", filepath.Base(img)), zap.Error(err))
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", ErrInsufficient
	}
	return strings.Join(pages, "\n\n"), nil
}
