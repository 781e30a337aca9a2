package keyword

import (
	"sort"
	"strings"
)

// DefaultMaxDistance is the largest edit distance offered as a correction.
const DefaultMaxDistance = 2

// DictionaryTerm is an indexed term with the number of chunks containing it.
type DictionaryTerm struct {
	Term      string
	Frequency int
}

// Suggestion is a spelling correction candidate.
type Suggestion struct {
	Term      string  `json:"term"`
	Distance  int     `json:"distance"`
	Frequency int     `json:"frequency"`
	Score     float64 `json:"score"`
}

// Suggest ranks dictionary terms within maxDistance edits of term. Closer terms win,
// then more frequent ones. The term itself is never suggested.
func Suggest(term string, dict []DictionaryTerm, maxDistance, limit int) []Suggestion {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || limit <= 0 {
		return []Suggestion{}
	}
	n := len([]rune(term))
	out := make([]Suggestion, 0)
	for _, d := range dict {
		candidate := strings.ToLower(d.Term)
		if candidate == term {
			continue
		}
		if diff := len([]rune(candidate)) - n; diff > maxDistance || -diff > maxDistance {
			continue
		}
		dist := EditDistance(term, candidate)
		if dist > maxDistance {
			continue
		}
		out = append(out, Suggestion{
			Term:      candidate,
			Distance:  dist,
			Frequency: d.Frequency,
			Score:     float64(d.Frequency) / float64(dist+1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EditDistance is the optimal string alignment distance: insertions, deletions,
// substitutions and adjacent transpositions each cost one. Compares runes.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	// three rolling rows: two back, previous, current
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(rb)]
}
