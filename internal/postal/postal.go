// Package postal splits one-line US addresses into components and runs
// them through the street normalizer. Builds with the libpostal tag use
// gopostal; other builds use a pattern-based parser.
package postal

import (
	"strings"

	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// Components are the parts of a one-line address.
type Components struct {
	HouseNumber string `json:"house_number,omitempty"`
	Road        string `json:"road,omitempty"`
	Unit        string `json:"unit,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Method      string `json:"method"`
}

// Parser splits a one-line address.
type Parser interface {
	Parse(address string) Components
}

var defaultParser Parser

// Default returns libpostal when compiled in, the pattern parser otherwise.
func Default() Parser {
	if defaultParser != nil {
		return defaultParser
	}
	return NewRegexParser(normalize.DefaultTables())
}

// Normalized is a parsed address in canonical form.
type Normalized struct {
	Input        string     `json:"input"`
	Components   Components `json:"components"`
	Address      string     `json:"address"`
	Sublocation1 string     `json:"sublocation_lvl1,omitempty"`
	Sublocation2 string     `json:"sublocation_lvl2,omitempty"`
	Marker       string     `json:"marker,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	Zip5         string     `json:"zip5,omitempty"`
}

// Normalize parses line with p and normalizes the street.
func Normalize(p Parser, t *normalize.Tables, line string) Normalized {
	c := p.Parse(line)
	inferred := t.Infer(normalize.RowInput{
		StreetNum: c.HouseNumber,
		Street:    strings.TrimSpace(c.Road + " " + c.Unit),
	})
	out := Normalized{
		Input:        line,
		Components:   c,
		Address:      t.CleanFinalStreet(inferred.Address),
		Sublocation1: inferred.Sublocation1,
		Sublocation2: inferred.Sublocation2,
		City:         titleWords(c.City),
		State:        strings.ToUpper(c.State),
		Zip5:         zip5(c.Postcode),
	}
	if marker, ok := normalize.InferMarker(inferred.Sublocation1); ok {
		out.Marker = marker
	}
	return out
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = normalize.Capitalize(w)
	}
	return strings.Join(words, " ")
}

func zip5(postcode string) string {
	digits := strings.TrimSpace(postcode)
	if len(digits) >= 5 {
		return digits[:5]
	}
	return digits
}
