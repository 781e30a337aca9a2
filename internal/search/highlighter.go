package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/lexsearch/internal/keyword"
	"github.com/hyperjump/lexsearch/pkg/utils"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// Highlight wraps every case-insensitive occurrence of each term in <mark> tags. The
// matched text keeps its original case. Longer terms win where terms overlap.
func Highlight(text string, terms []string) string {
	re := termPattern(terms)
	if re == nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return markOpen + m + markClose
	})
}

// Snippet cuts text to about maxLen bytes around the first term occurrence.
func Snippet(text string, terms []string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	re := termPattern(terms)
	if re == nil {
		return utils.Truncate(text, maxLen)
	}
	loc := re.FindStringIndex(text)
	if loc == nil || loc[1] <= maxLen {
		return utils.Truncate(text, maxLen)
	}
	start := loc[0] - maxLen/4
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	if i := strings.IndexAny(text[start:loc[0]], " \n\t"); i >= 0 {
		start += i + 1
	}
	if start == 0 {
		return utils.Truncate(text, maxLen)
	}
	return "..." + utils.Truncate(text[start:], maxLen)
}

func termPattern(terms []string) *regexp.Regexp {
	seen := make(map[string]bool, len(terms))
	uniq := make([]string, 0, len(terms))
	for _, term := range terms {
		for _, t := range keyword.TermVariants(term) {
			if !seen[t] {
				seen[t] = true
				uniq = append(uniq, t)
			}
		}
	}
	if len(uniq) == 0 {
		return nil
	}
	sort.SliceStable(uniq, func(i, j int) bool { return len(uniq[i]) > len(uniq[j]) })
	quoted := make([]string, len(uniq))
	for i, t := range uniq {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}
