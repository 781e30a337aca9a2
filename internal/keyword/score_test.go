package keyword

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTermFrequencyScore(t *testing.T) {
	// 100 words with three occurrences of the query terms
	words := make([]string, 0, 100)
	words = append(words, "contract", "breach", "contract")
	for len(words) < 100 {
		words = append(words, "filler")
	}
	text := strings.Join(words, " ")

	tests := []struct {
		name  string
		text  string
		terms []string
		want  float64
	}{
		{"three in a hundred", text, []string{"contract", "breach"}, 0.03},
		{"case-insensitive", "Contract CONTRACT", []string{"contract"}, 1.0},
		{"unbounded on short repeats", "contract contracts", []string{"contract", "contracts"}, 1.5},
		{"reporter series split by cleaning", "see 123 F.3 d 456 here", []string{"f.3d"}, 1.0 / 6},
		{"reporter series as written", "see 123 F.3d 456", []string{"F.3d"}, 0.25},
		{"no words", "", []string{"contract"}, 0},
		{"no terms", "some text", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TermFrequencyScore(tt.text, tt.terms), 1e-9)
		})
	}
}

func TestTermVariants(t *testing.T) {
	assert.Equal(t, []string{"breach"}, TermVariants(" Breach "))
	assert.Equal(t, []string{"f.3d", "f.3 d"}, TermVariants("F.3d"))
	assert.Nil(t, TermVariants("  "))
	assert.Equal(t, 2, CountTerm("f.3d and f.3 d", "f.3d"))
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"breach", "of", "contract"}, QueryTerms("  Breach of CONTRACT breach "))
	assert.Empty(t, QueryTerms("   "))
}
