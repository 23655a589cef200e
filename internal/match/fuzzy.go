package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// TokenSet is the sorted distinct lower-case alphanumeric tokens of a text.
type TokenSet []string

// NewTokenSet tokenizes s. Every non-alphanumeric rune separates tokens.
func NewTokenSet(s string) TokenSet {
	fields := words(s)
	sort.Strings(fields)
	out := fields[:0]
	for i, f := range fields {
		if i == 0 || f != fields[i-1] {
			out = append(out, f)
		}
	}
	return TokenSet(out)
}

// words splits s at every non-alphanumeric rune, lower-cased, in text order.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TokenSetRatio compares two texts on their shared and distinct tokens and
// returns a similarity in [0, 1]. A text whose tokens are a subset of the
// other's scores 1.
func TokenSetRatio(a, b string) float64 {
	return tokenSetRatio(NewTokenSet(a), NewTokenSet(b))
}

func tokenSetRatio(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter, onlyA, onlyB []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter = append(inter, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))
	return max(ratio(t0, t1), ratio(t0, t2), ratio(t1, t2))
}

// ratio is one minus the edit distance over the longer length.
func ratio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Rank finds the best same-organization candidate for every dimension.
// Ties keep the lower candidate index.
func Rank(cands []Candidate, dims []Dimension) []Ranked {
	return rankRange(cands, 0, len(cands), dims)
}

// RankChunks ranks the candidates in n contiguous chunks and merges the
// chunk winners. The result equals Rank for every n.
func RankChunks(cands []Candidate, dims []Dimension, n int) []Ranked {
	if n <= 1 || len(cands) <= 1 {
		return Rank(cands, dims)
	}
	n = min(n, len(cands))
	size := (len(cands) + n - 1) / n

	best := make([]Ranked, len(dims))
	for i := range best {
		best[i] = Ranked{Index: -1}
	}
	for start := 0; start < len(cands); start += size {
		chunk := rankRange(cands, start, min(start+size, len(cands)), dims)
		for i, r := range chunk {
			if better(r, best[i]) {
				best[i] = r
			}
		}
	}
	return best
}

// better orders by score descending, then index ascending; -1 loses.
func better(a, b Ranked) bool {
	switch {
	case a.Index < 0:
		return false
	case b.Index < 0:
		return true
	case a.Score != b.Score:
		return a.Score > b.Score
	default:
		return a.Index < b.Index
	}
}

func rankRange(cands []Candidate, from, to int, dims []Dimension) []Ranked {
	candTokens := make([]TokenSet, to-from)
	for i := from; i < to; i++ {
		candTokens[i-from] = NewTokenSet(cands[i].Text)
	}

	out := make([]Ranked, len(dims))
	for d, dim := range dims {
		dimTokens := NewTokenSet(dim.Text)
		best := Ranked{Index: -1}
		for i := from; i < to; i++ {
			if !sameOrganization(dim.OrganizationID, cands[i].OrganizationID) {
				continue
			}
			r := Ranked{Index: i, Score: tokenSetRatio(dimTokens, candTokens[i-from])}
			if better(r, best) {
				best = r
			}
		}
		out[d] = best
	}
	return out
}
