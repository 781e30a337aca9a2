package legal

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Metadata is everything derived from a document's text and filename.
type Metadata struct {
	Citations     []string   `json:"citations"`
	CaseNames     []string   `json:"case_names"`
	Statutes      []string   `json:"statutes"`
	Dates         []string   `json:"dates"`
	DocumentType  string     `json:"document_type"`
	Jurisdiction  string     `json:"jurisdiction"`
	Concepts      []string   `json:"concepts"`
	Title         string     `json:"title"`
	DatePublished *time.Time `json:"date_published,omitempty"`
}

// ExtractMetadata runs every pattern category and classifier over text.
func ExtractMetadata(filename, text string) Metadata {
	md := Metadata{
		Citations:    Find(CategoryCitations, text),
		CaseNames:    Find(CategoryCaseNames, text),
		Statutes:     Find(CategoryStatutes, text),
		Dates:        Find(CategoryDates, text),
		DocumentType: ClassifyDocumentType(filename, text),
		Jurisdiction: ClassifyJurisdiction(filename, text),
		Concepts:     Concepts(text),
		Title:        GuessTitle(filename, text),
	}
	if t, ok := DatePublished(text); ok {
		md.DatePublished = &t
	}
	return md
}

// ChunkTags returns the concept tags and citations for a single chunk.
func ChunkTags(text string) (concepts, citations []string) {
	return Concepts(text), Find(CategoryCitations, text)
}

var knownTitles = []struct{ key, title string }{
	{"constitution of india", "Constitution of India"},
	{"bnss", "Bharatiya Nagarik Suraksha Sanhita (BNSS)"},
	{"bns", "Bharatiya Nyaya Sanhita (BNS)"},
	{"bsa", "Bharatiya Sakshya Adhiniyam (BSA)"},
	{"easement act", "Indian Easements Act"},
	{"crpc", "Code of Criminal Procedure"},
	{"ipc", "Indian Penal Code"},
}

const titleScanLines = 15

// GuessTitle prefers a known statute name from the filename, then the first line
// of 20 to 200 characters near the top of the text, then the cleaned filename.
func GuessTitle(filename, text string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	cleaned := strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(base)), " ")

	if cleaned != "" {
		words := " " + strings.ToLower(cleaned) + " "
		for _, k := range knownTitles {
			if strings.Contains(words, " "+k.key+" ") {
				return k.title
			}
		}
	}

	lines := strings.Split(text, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		n := len([]rune(line))
		if n < 20 || n > 200 {
			continue
		}
		if isDigits(line) || strings.Contains(strings.ToLower(line), "page") {
			continue
		}
		return line
	}
	return titleCase(cleaned)
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var fullDate = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b|\b\d{1,2}-\d{1,2}-\d{4}\b|\b[A-Za-z]+ \d{1,2}, \d{4}\b`)

var dateLayouts = []string{"1/2/2006", "1-2-2006", "January 2, 2006", "Jan 2, 2006"}

// DatePublished returns the first full date in text that parses.
func DatePublished(text string) (time.Time, bool) {
	for _, m := range fullDate.FindAllString(text, -1) {
		if t, ok := ParseDate(m); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses the date forms matched by the dates category, month first.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
