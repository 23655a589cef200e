package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreCharacters(t *testing.T) {
	got := IgnoreCharacters("123main Street! Duder##", []string{"!", "#"})
	assert.Equal(t, " 123 main Street  Duder  ", got)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"double space", "123  Main Street Dude", []string{"123", "Main", "Street", "Dude"}},
		{"punctuation is its own token", "123 Main St!", []string{"123", "Main", "St", "!"}},
		{"apostrophe stays inside word", "O'Hare Road", []string{"O'Hare", "Road"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestIgnoreTokens(t *testing.T) {
	got := IgnoreTokens(Tokenize("123  Main Street Dude"), map[string]bool{"dude": true})
	assert.Equal(t, []string{"123", "Main", "Street"}, got)
}

func TestApplyDict(t *testing.T) {
	got := ApplyDict(Tokenize("123  Main Street Dude"), map[string]string{"street": "st"})
	assert.Equal(t, []string{"123", "Main", "st", "Dude"}, got)
}

func TestDetokenize(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{"capitalizes words", []string{"123", "MAIN", "street"}, "123 Main Street"},
		{"upper-cases coordinates", []string{"n64w1024", "big", "road"}, "N64W1024 Big Road"},
		{"multi-word values", []string{"1", "North East", "Street"}, "1 North East Street"},
		{"no space before punctuation", []string{"Main", "Street", ","}, "Main Street,"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detokenize(tt.tokens))
		})
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("123"))
	assert.False(t, IsNumeric("12a"))
	assert.False(t, IsNumeric(""))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Penasco Calle", Fold("Peñasco Calle"))
	assert.Equal(t, "Cafe", Fold("Café"))
}

func TestCleanAndTokenize(t *testing.T) {
	got := CleanAndTokenize("123main Street! Duder##", []string{"#", "!"}, map[string]string{"duder": "Dude"})
	assert.ElementsMatch(t, []string{"123", "Main", "Street", "Dude"}, got)
}
