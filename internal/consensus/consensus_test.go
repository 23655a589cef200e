package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m25mathews/rainger-poc/internal/normalize"
)

func repeat(n int, s string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func applyAll(d Dictionary, addresses []string) map[string]bool {
	out := make(map[string]bool)
	for _, a := range addresses {
		out[d.Apply(a)] = true
	}
	return out
}

func TestBuild(t *testing.T) {
	tables := normalize.DefaultTables()

	tests := []struct {
		name      string
		addresses []string
		want      map[string]bool
	}{
		{
			name:      "missing street number",
			addresses: concat(repeat(9, "123 Main Street"), repeat(1, "Main Street")),
			want:      map[string]bool{"123 Main Street": true},
		},
		{
			name:      "missing suffix",
			addresses: concat(repeat(8, "1989 Ehemann Drive"), repeat(2, "1989 Ehemann")),
			want:      map[string]bool{"1989 Ehemann Drive": true},
		},
		{
			name: "order switch",
			addresses: concat(
				repeat(5, "1 North High Street"),
				repeat(3, "1 High Street North"),
				repeat(2, "1 High North Street"),
			),
			want: map[string]bool{"1 North High Street": true},
		},
		{
			name: "ambiguous street number is kept",
			addresses: concat(
				repeat(3, "10 Main Street"),
				repeat(2, "20 Main Street"),
				repeat(1, "Main Street"),
			),
			want: map[string]bool{"10 Main Street": true, "20 Main Street": true, "Main Street": true},
		},
		{
			name:      "more common short form wins nothing",
			addresses: concat(repeat(2, "1989 Ehemann Drive"), repeat(5, "1989 Ehemann")),
			want:      map[string]bool{"1989 Ehemann Drive": true, "1989 Ehemann": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Build(tt.addresses, tables, DefaultOptions())
			assert.Equal(t, tt.want, applyAll(d, tt.addresses))
		})
	}
}

func TestBuildTieBreaksOnAddress(t *testing.T) {
	d := Build([]string{"1 High Street North", "1 North High Street"}, normalize.DefaultTables(), DefaultOptions())
	assert.Equal(t, "1 High Street North", d.Apply("1 North High Street"))
}

func TestBuildPassesCanBeDisabled(t *testing.T) {
	addresses := concat(repeat(9, "123 Main Street"), repeat(1, "Main Street"))
	d := Build(addresses, normalize.DefaultTables(), Options{})
	assert.Empty(t, d)
}

func TestApplyStopsOnCycle(t *testing.T) {
	d := Dictionary{
		Key([]string{"A", "Street"}): "B Street",
		Key([]string{"B", "Street"}): "A Street",
	}
	assert.Equal(t, "A Street", d.Apply("A Street"))
	assert.Equal(t, "C Street", d.Apply("C Street"))
}

func TestApplyFollowsChains(t *testing.T) {
	d := Dictionary{
		Key([]string{"Main", "Street"}):        "123 Main",
		Key([]string{"123", "Main"}):           "123 Main Street",
		Key([]string{"Main", "Street", "123"}): "123 Main Street",
	}
	assert.Equal(t, "123 Main Street", d.Apply("Main Street"))
}
