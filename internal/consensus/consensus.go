// Package consensus builds population-level correction dictionaries: within
// one batch the most frequent spelling of an address wins over variants that
// are missing a suffix, missing a street number, or list the same tokens in
// another order.
package consensus

import (
	"sort"
	"strings"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// Options selects the recovery passes.
type Options struct {
	MissingSuffix bool
	MissingNumber bool
	OrderSwitch   bool
}

// DefaultOptions enables every pass.
func DefaultOptions() Options {
	return Options{MissingSuffix: true, MissingNumber: true, OrderSwitch: true}
}

// Groups with this many members or more are left alone by the
// missing-number pass; the number is ambiguous there.
const maxMissingNumberGroup = 3

// Dictionary maps a token-sequence key to the corrected address.
type Dictionary map[string]string

// Key is the dictionary key for a token sequence.
func Key(tokens []string) string {
	return strings.Join(tokens, "\x1f")
}

type entry struct {
	address string
	tokens  []string
	key     string
	count   int
}

// Build derives the correction dictionary from the addresses of one batch.
func Build(addresses []string, t *normalize.Tables, opts Options) Dictionary {
	entries := countAddresses(addresses)

	observed := make(map[string]bool, len(entries))
	for _, e := range entries {
		observed[e.key] = true
	}

	dict := make(Dictionary)
	if opts.MissingSuffix {
		for k, v := range missingSuffix(entries, observed, t) {
			dict[k] = v
		}
	}
	if opts.MissingNumber {
		for k, v := range missingNumber(entries, observed) {
			dict[k] = v
		}
	}
	if opts.OrderSwitch {
		for k, v := range orderSwitch(entries) {
			dict[k] = v
		}
	}
	return dict
}

// countAddresses returns the distinct addresses ordered by count descending,
// then address ascending. The first entry of any group is its winner.
func countAddresses(addresses []string) []entry {
	counts := make(map[string]int)
	for _, a := range addresses {
		counts[a]++
	}
	entries := make([]entry, 0, len(counts))
	for a, c := range counts {
		tokens := normalize.Tokenize(a)
		entries = append(entries, entry{address: a, tokens: tokens, key: Key(tokens), count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].address < entries[j].address
	})
	return entries
}

// missingSuffix maps "1989 Ehemann" to "1989 Ehemann Drive" when the longer
// form is the most common address reducing to the shorter one.
func missingSuffix(entries []entry, observed map[string]bool, t *normalize.Tables) Dictionary {
	reduce := func(tokens []string) []string {
		out := make([]string, 0, len(tokens))
		for _, token := range tokens {
			if !t.IsSuffix(token) && !t.IsDirection(token) {
				out = append(out, token)
			}
		}
		return out
	}
	return reduceWinners(entries, observed, reduce, 0)
}

// missingNumber maps "Main Street" to "123 Main Street" when only a couple of
// numbered forms exist for that street.
func missingNumber(entries []entry, observed map[string]bool) Dictionary {
	reduce := func(tokens []string) []string {
		out := make([]string, 0, len(tokens))
		for _, token := range tokens {
			if !normalize.IsNumeric(token) {
				out = append(out, token)
			}
		}
		return out
	}
	return reduceWinners(entries, observed, reduce, maxMissingNumberGroup)
}

// reduceWinners groups entries by their reduced key, keeping groups whose
// reduced form is itself an observed address. Each group maps its reduced key
// to its winner unless the winner is the reduced form. maxGroup > 0 skips
// groups of that size or larger.
func reduceWinners(entries []entry, observed map[string]bool, reduce func([]string) []string, maxGroup int) Dictionary {
	winners := make(map[string]entry)
	sizes := make(map[string]int)
	for _, e := range entries {
		reduced := reduce(e.tokens)
		if len(reduced) == 0 {
			continue
		}
		rk := Key(reduced)
		if !observed[rk] {
			continue
		}
		sizes[rk]++
		if _, ok := winners[rk]; !ok {
			winners[rk] = e
		}
	}

	dict := make(Dictionary)
	for rk, winner := range winners {
		if maxGroup > 0 && sizes[rk] >= maxGroup {
			continue
		}
		if winner.key == rk {
			continue
		}
		dict[rk] = winner.address
	}
	return dict
}

// orderSwitch maps every ordering of a token multiset to its most common ordering.
func orderSwitch(entries []entry) Dictionary {
	groups := make(map[string][]entry)
	for _, e := range entries {
		sorted := append([]string(nil), e.tokens...)
		sort.Strings(sorted)
		sk := Key(sorted)
		groups[sk] = append(groups[sk], e)
	}

	dict := make(Dictionary)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		majority := group[0]
		for _, e := range group[1:] {
			dict[e.key] = majority.address
		}
	}
	return dict
}

// Apply rewrites address until its token key is no longer in the
// dictionary. Each key is followed at most once, so a cycle stops at the last
// address reached.
func (d Dictionary) Apply(address string) string {
	visited := make(map[string]bool)
	for {
		key := Key(normalize.Tokenize(address))
		next, ok := d[key]
		if !ok {
			return address
		}
		if visited[key] {
			logging.WithComponent("consensus").Warn("correction cycle", "address", address, "steps", len(visited))
			return address
		}
		visited[key] = true
		address = next
	}
}
