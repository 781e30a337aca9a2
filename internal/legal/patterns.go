// Package legal derives citations, case names, statutes, dates, document type,
// jurisdiction and legal concepts from document text using regular expression tables.
package legal

import (
	"regexp"
	"strings"
)

// Category is a named set of patterns applied uniformly to text.
// Matches longer than MaxLen runes are dropped when MaxLen is set.
type Category struct {
	Name     string
	Patterns []*regexp.Regexp
	MaxLen   int
	format   func(m []string) string
}

// Category names.
const (
	CategoryCitations = "citations"
	CategoryCaseNames = "case_names"
	CategoryStatutes  = "statutes"
	CategoryDates     = "dates"
)

var usc = `\d+\s+U\.S\.C\.?\s+§?\s*\d+`

// reporterSeries rejoins a series suffix that cleaned text splits off ("F.3 d" -> "F.3d").
var reporterSeries = regexp.MustCompile(`(?i)(\d) (d)\b`)

// Categories is the pattern table evaluated by FindAll.
var Categories = []Category{
	{
		Name: CategoryCitations,
		Patterns: compile(
			`(?i)\d+\s+[A-Z][a-z]+\.?\s+\d+`,
			`(?i)`+usc,
			`(?i)\d+\s+F\.?\s*\d*\s?d?\s+\d+`,
			`(?i)\d+\s+S\.?\s*Ct\.?\s+\d+`,
			`(?i)\d+\s+L\.?\s*Ed\.?\s*\d*\s?d?\s+\d+`,
		),
		format: func(m []string) string {
			return reporterSeries.ReplaceAllString(m[0], "$1$2")
		},
	},
	{
		Name:     CategoryCaseNames,
		Patterns: compile(`([A-Z][a-zA-Z\s&.,-]+)\s+v\.?\s+([A-Z][a-zA-Z\s&.,-]+)`),
		MaxLen:   100,
		format: func(m []string) string {
			return strings.TrimSpace(m[1]) + " v. " + strings.TrimSpace(m[2])
		},
	},
	{
		Name: CategoryStatutes,
		Patterns: compile(
			`(?i)`+usc,
			`(?i)Section\s+\d+[a-z]?`,
			`§\s*\d+[a-z]?`,
		),
	},
	{
		Name: CategoryDates,
		Patterns: compile(
			`\b\d{1,2}/\d{1,2}/\d{4}\b`,
			`\b\d{1,2}-\d{1,2}-\d{4}\b`,
			`\b[A-Za-z]+ \d{1,2}, \d{4}\b`,
			`\b\d{4}\b`,
		),
	},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// FindAll applies every pattern of the category and returns the distinct matches,
// compared case-insensitively, in first-seen order.
func (c Category) FindAll(text string) []string {
	var set dedup
	for _, re := range c.Patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[0]
			if c.format != nil {
				v = c.format(m)
			}
			v = strings.TrimSpace(v)
			if c.MaxLen > 0 && len([]rune(v)) >= c.MaxLen {
				continue
			}
			set.add(v)
		}
	}
	return set.items
}

// Find returns the matches for the named category, or nil if the name is unknown.
func Find(name, text string) []string {
	for _, c := range Categories {
		if c.Name == name {
			return c.FindAll(text)
		}
	}
	return nil
}

type dedup struct {
	seen  map[string]struct{}
	items []string
}

func (d *dedup) add(v string) {
	if v == "" {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	k := strings.ToLower(v)
	if _, ok := d.seen[k]; ok {
		return
	}
	d.seen[k] = struct{}{}
	d.items = append(d.items, v)
}
