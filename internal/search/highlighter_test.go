package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		terms []string
		want  string
	}{
		{"preserves case", "Breach of CONTRACT", []string{"contract"}, "Breach of <mark>CONTRACT</mark>"},
		{"every occurrence", "contract and Contract", []string{"contract"}, "<mark>contract</mark> and <mark>Contract</mark>"},
		{"several terms", "breach of contract", []string{"breach", "contract"}, "<mark>breach</mark> of <mark>contract</mark>"},
		{"longer term wins", "contractual terms", []string{"contract", "contractual"}, "<mark>contractual</mark> terms"},
		{"metacharacters", "see 42 U.S.C. 1983", []string{"u.s.c."}, "see 42 <mark>U.S.C.</mark> 1983"},
		{"reporter split by cleaning", "held in 123 F.3 d 456", []string{"f.3d"}, "held in 123 <mark>F.3 d</mark> 456"},
		{"no terms", "unchanged", nil, "unchanged"},
		{"no match", "unchanged", []string{"tort"}, "unchanged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight(tt.text, tt.terms))
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", []string{"x"}, 10))
	assert.Equal(t, "long text here", Snippet("long text here", nil, 0))
	assert.Equal(t, "long...", Snippet("long text here", nil, 6))

	text := strings.Repeat("filler ", 50) + "the negligence standard applies"
	got := Snippet(text, []string{"negligence"}, 60)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.Contains(t, got, "negligence")
	assert.LessOrEqual(t, len(got), 60+6)
}

func TestSnippet_LongTermNearStart(t *testing.T) {
	term := strings.Repeat("x", 600)
	text := "a " + term + strings.Repeat(" filler", 100)

	var got string
	assert.NotPanics(t, func() { got = Snippet(text, []string{term}, 500) })
	assert.True(t, strings.HasPrefix(got, "...x"))
	assert.LessOrEqual(t, len(got), 500+6)

	got = Snippet(term+" tail", []string{term}, 500)
	assert.True(t, strings.HasPrefix(got, "xxx"))
}
