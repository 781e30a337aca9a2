package indexer

import (
	"regexp"
	"strings"

	"github.com/hyperjump/lexsearch/pkg/utils"
)

var punctuation = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`,
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-",
)

var (
	horizontalSpace = regexp.MustCompile(`[\t\v\f\p{Zs}\x{0085}\x{2028}\x{2029}]+`)
	lowerUpper      = regexp.MustCompile(`(\p{Ll})(\p{Lu})`)
	pageFooter      = regexp.MustCompile(`(?i)\bpage[ \t]+\d+[ \t]+of[ \t]+\d+\b`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text: ASCII quotes and dashes, single spaces, OCR glue
// split at case and letter/digit boundaries, page footers and page-number lines removed,
// at most one blank line between paragraphs. Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	text = punctuation.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")

	text = lowerUpper.ReplaceAllString(text, "$1 $2")
	text = utils.SplitLetterDigits(text)

	for pageFooter.MatchString(text) {
		text = pageFooter.ReplaceAllString(text, "")
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if isPageNumber(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func isPageNumber(line string) bool {
	if line == "" {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}
