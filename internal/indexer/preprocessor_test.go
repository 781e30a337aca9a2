package indexer

import (
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse spaces", "  a  \t b  ", "a b"},
		{"curly quotes and dashes", "“Lessor’s” duty — 1990–1991", `"Lessor's" duty - 1990-1991`},
		{"crlf", "line one\r\nline two", "line one\nline two"},
		{"ocr glue case", "theCourt heldThat", "the Court held That"},
		{"ocr glue digits", "Section12 applies to2 parties", "Section 12 applies to 2 parties"},
		{"page footer", "end of text Page 3 of 10\nnext", "end of text\nnext"},
		{"page number lines", "first\n12\nsecond", "first\nsecond"},
		{"blank lines", "para one\n\n\n\n\npara two", "para one\n\npara two"},
		{"page line between paragraphs", "a\n\n7\n\nb", "a\n\nb"},
		{"nbsp", "due\u00a0process", "due process"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Page 1 of 2",
		"page page 1 of 2 1 of 2 trailing",
		"xPage 1 of 2Y",
		"abcDEF123ghi\r\n\r\n\r\n\r\n4\n\nPage 4 of 9\n“quoted”—dash",
		"1\n2\n3\ntext\n\n\n\n\n5\n\nmore",
		"état5Éclair   next  line",
		"Smith v. Jones, 410 U.S. 113 (1973)\n\n\n\n\tIn the Supreme Court\tof India",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}
