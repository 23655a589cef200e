package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Digit runs get their own token: "Bldg12" -> "Bldg 12"
var reDigitRun = regexp.MustCompile(`([0-9]+(\.[0-9]+)?)`)

// Words keep inner apostrophes; every other symbol is a token on its own.
var reToken = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)

// Compass-letter street numbers as used in Wisconsin grid addresses, e.g. N64W1024.
var reCoordinate = regexp.MustCompile(`(?i)^([NSEW])?\s?(\d+)?\s?([NSEW])\s?(\d+)\s?(.*)$`)

var (
	reSpaceBeforePunct = regexp.MustCompile(`\s+([,.;:!?%)\]}])`)
	reSpaceAfterOpen   = regexp.MustCompile(`([(\[{])\s+`)
	reSpaceBeforeQuote = regexp.MustCompile(`\s+(['’](?:s|S|m|M|d|D|ll|LL|re|RE|ve|VE)?)(\s|$)`)
)

// IgnoreCharacters replaces each ignored character sequence with a space and
// separates digit runs from surrounding letters.
func IgnoreCharacters(s string, ignored []string) string {
	for _, ch := range ignored {
		s = strings.ReplaceAll(s, ch, " ")
	}
	return reDigitRun.ReplaceAllString(s, " $1 ")
}

// Tokenize splits s into word and symbol tokens.
func Tokenize(s string) []string {
	return reToken.FindAllString(s, -1)
}

// IgnoreTokens drops tokens whose lower-case form is in ignored.
func IgnoreTokens(tokens []string, ignored map[string]bool) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !ignored[strings.ToLower(token)] {
			out = append(out, token)
		}
	}
	return out
}

// ApplyDict replaces every token whose lower-case form is a key of d.
func ApplyDict(tokens []string, d map[string]string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		if v, ok := d[strings.ToLower(token)]; ok {
			out[i] = v
		} else {
			out[i] = token
		}
	}
	return out
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(word string) string {
	if word == "" {
		return word
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToTitle(r)) + strings.ToLower(word[size:])
}

// IsCoordinate reports whether word is a compass-letter street number.
func IsCoordinate(word string) bool {
	return reCoordinate.MatchString(word)
}

// Detokenize capitalizes every word (coordinate street numbers are
// upper-cased) and joins the tokens back into a single string.
func Detokenize(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		parts := strings.Split(token, " ")
		for i, part := range parts {
			if IsCoordinate(part) {
				parts[i] = strings.ToUpper(part)
			} else {
				parts[i] = Capitalize(part)
			}
		}
		words = append(words, strings.Join(parts, " "))
	}
	s := strings.Join(words, " ")
	s = reSpaceBeforePunct.ReplaceAllString(s, "$1")
	s = reSpaceAfterOpen.ReplaceAllString(s, "$1")
	s = reSpaceBeforeQuote.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(s)
}

// IsNumeric reports whether s is non-empty and made only of numeric runes.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

// Fold strips combining accents: "Peñasco" -> "Penasco".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// CleanAndTokenize cleans a free-text field and returns its tokens after
// applying d (which may be nil) and a capitalize round trip.
func CleanAndTokenize(field string, ignored []string, d map[string]string) []string {
	if ignored != nil {
		field = IgnoreCharacters(field, ignored)
	}
	tokens := Tokenize(field)
	if d != nil {
		tokens = ApplyDict(tokens, d)
	}
	return Tokenize(Detokenize(tokens))
}
