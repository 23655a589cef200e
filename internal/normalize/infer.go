package normalize

import (
	"strings"
)

// RowInput is the raw street information of one dimension record.
type RowInput struct {
	StreetNum    string
	Street       string
	Department   string
	Attention    string
	Supplemental string
	Receiver     string
}

// Inferred is a normalized street address with up to two sub-location levels,
// e.g. "1600 Pennsylvania Avenue", "Building A", "Dock 11".
type Inferred struct {
	Address      string `json:"address"`
	Sublocation1 string `json:"sublocation_lvl1"`
	Sublocation2 string `json:"sublocation_lvl2"`
}

// Infer normalizes one record using only what is present on that record.
func (t *Tables) Infer(in RowInput) Inferred {
	cleaned := IgnoreCharacters(Fold(in.Street), t.IgnoredChars)
	tokens := IgnoreTokens(Tokenize(cleaned), t.IgnoredTokens)

	streetTokens, sublocTokens := t.SplitSublocation(tokens)

	addressTokens := combineStreetNum(strings.TrimSpace(in.StreetNum), streetTokens)
	addressTokens = t.handleCoordinates(addressTokens)

	addressTokens = ApplyDict(addressTokens, t.Address)
	if !t.anySuffix(addressTokens) {
		addressTokens = ApplyDict(addressTokens, t.AddressSpanish)
	}

	sublocTokens = ApplyDict(sublocTokens, t.Sublocations)

	for _, field := range []string{in.Department, in.Attention, in.Supplemental, in.Receiver} {
		if strings.TrimSpace(field) == "" {
			continue
		}
		fieldTokens := ApplyDict(Tokenize(IgnoreCharacters(Fold(field), t.IgnoredChars)), t.Sublocations)
		sublocTokens = append(sublocTokens, t.grabRelevantTokens(sublocTokens, fieldTokens)...)
	}

	level1, level2 := t.SplitLevels(sublocTokens)

	return Inferred{
		Address:      Detokenize(addressTokens),
		Sublocation1: Detokenize(level1),
		Sublocation2: Detokenize(level2),
	}
}

// SplitSublocation separates address tokens from sub-location tokens.
//
// When the stream opens with a sub-location keyword the split happens two
// tokens after the last keyword ("Bldg 5 123 Main St"). Otherwise the first
// keyword not followed by a street suffix starts the sub-location, so
// "45 Dock Road" stays an address.
func (t *Tables) SplitSublocation(tokens []string) (address, subloc []string) {
	n := len(tokens)
	if n == 0 {
		return nil, nil
	}
	if _, ok := t.Sublocations[strings.ToLower(tokens[0])]; ok {
		for i := n - 1; i >= 0; i-- {
			if _, ok := t.Sublocations[strings.ToLower(tokens[i])]; ok {
				cut := i + 2
				if cut > n {
					cut = n
				}
				return tokens[cut:], tokens[:cut]
			}
		}
	}
	for i := 0; i < n-1; i++ {
		if _, ok := t.Sublocations[strings.ToLower(tokens[i])]; !ok {
			continue
		}
		if _, ok := t.USPS[strings.ToLower(tokens[i+1])]; ok {
			continue
		}
		return tokens[:i], tokens[i:]
	}
	return tokens, nil
}

// SplitLevels splits sub-location tokens at the first level-2 keyword.
func (t *Tables) SplitLevels(tokens []string) (level1, level2 []string) {
	for i, token := range tokens {
		if t.Level2[token] {
			return tokens[:i], tokens[i:]
		}
	}
	return tokens, nil
}

func combineStreetNum(streetNum string, tokens []string) []string {
	if streetNum == "" {
		return tokens
	}
	for _, token := range tokens {
		if token == streetNum {
			return tokens
		}
	}
	return append([]string{streetNum}, tokens...)
}

// handleCoordinates joins compass-letter street numbers: "N 64W 1024" -> "N64W1024".
func (t *Tables) handleCoordinates(tokens []string) []string {
	for _, token := range tokens {
		if t.OrdinalTokens[token] {
			return tokens
		}
	}
	address := reCoordinate.ReplaceAllString(Detokenize(tokens), "${1}${2}${3}${4} ${5}")
	return strings.Fields(address)
}

func (t *Tables) anySuffix(tokens []string) bool {
	for _, token := range tokens {
		if t.suffixValues[token] {
			return true
		}
	}
	return false
}

// grabRelevantTokens picks sub-location labels out of an auxiliary field.
// "Bldg 10 2" yields three tokens; "12 Bldg" is read as "Building 12".
func (t *Tables) grabRelevantTokens(known, field []string) []string {
	isKnown := make(map[string]bool, len(known))
	for _, token := range known {
		isKnown[token] = true
	}

	var grabbed []string
	for i, token := range field {
		if !t.sublocValues[token] || isKnown[token] {
			continue
		}
		if i+1 < len(field) {
			next := field[i+1]
			if len([]rune(next)) < 3 || IsNumeric(next) {
				if i+2 < len(field) && IsNumeric(field[i+2]) {
					grabbed = append(grabbed, field[i:i+3]...)
				} else {
					grabbed = append(grabbed, field[i:i+2]...)
				}
			}
		} else if len(field) == 2 && len([]rune(field[0])) < 3 {
			grabbed = append(grabbed, field[1], field[0])
		}
	}
	return grabbed
}
