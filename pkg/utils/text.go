// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	letterDigit = regexp.MustCompile(`(\p{L})(\d)`)
	digitLetter = regexp.MustCompile(`(\d)(\p{L})`)
)

// Truncate returns s cut to at most maxLen bytes on a rune boundary, preferring the last
// word break, with "..." appended if truncated. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if i := strings.LastIndexAny(s[:cut], " \n\t"); i > maxLen/2 {
		cut = i
	}
	return strings.TrimSpace(s[:cut]) + "..."
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// SplitLetterDigits inserts a space wherever a letter and a digit touch, so "F.3d"
// becomes "F.3 d".
func SplitLetterDigits(s string) string {
	s = letterDigit.ReplaceAllString(s, "$1 $2")
	return digitLetter.ReplaceAllString(s, "$1 $2")
}
