package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	rePOBox      = regexp.MustCompile(`(?i)^\s*P\.?\s?O\.?\s?B\s?[0O]?\s?X?\s?(\d+)\s*$`)
	reInterstate = regexp.MustCompile(`(?i)^(.*)\sIN?T?E?R?S?T?A?T?E?\s(\d+)`)
)

const intersectionKeywords = `(st|street|ave|avenue|pier|blvd|rd|ln|lane|road|drive|dr|jn|junction|fm|farmtomarket|east|west|north|south)`

var intersectionRules = []*regexp.Regexp{
	// US 191 & AZ 264
	regexp.MustCompile(`(?i)^US.?[0-9][0-9].*(and|&).*[0-9][0-9]$`),
	// Hwy 59 & Conde St
	regexp.MustCompile(`(?i)^(hwy|highway).?[0-9][0-9].*(and|&).*` + intersectionKeywords + `$`),
	// I 26 & Hwy 21 South
	regexp.MustCompile(`(?i)^I.?[0-9][0-9].*(and|&).?(hwy|highway).?[0-9][0-9].?` + intersectionKeywords + `$`),
	// East Hwy 160 And Warrior Drive
	regexp.MustCompile(`(?i)^.*(hwy|highway).?[0-9][0-9].*(and|&).*$`),
}

// Street names that are complete without a suffix.
var suffixlessStreetNames = map[string]bool{
	"broadway":   true,
	"interstate": true,
	"highway":    true,
	"concourse":  true,
}

// Tokens that carry meaningful qualifiers after the suffix ("State Road 7 North").
var garbageOverrides = map[string]bool{
	"state":      true,
	"route":      true,
	"county":     true,
	"fm":         true,
	"highway":    true,
	"interstate": true,
}

// HandlePOBox rewrites post office box spellings ("P.O BX 12", "PO B0X 12") as "PO Box 12".
func HandlePOBox(address string) string {
	if m := rePOBox.FindStringSubmatch(address); m != nil {
		return "PO Box " + m[1]
	}
	return address
}

// HandleInterstate rewrites "123 I 24" and "123 Int 24" as "123 Interstate 24".
// Anything after the interstate number is dropped.
func HandleInterstate(address string) string {
	if m := reInterstate.FindStringSubmatch(address); m != nil {
		return fmt.Sprintf("%s Interstate %s", m[1], m[2])
	}
	return address
}

// HandleSpecial applies the interstate rule and then the PO Box rule.
func HandleSpecial(address string) string {
	return HandlePOBox(HandleInterstate(address))
}

// IsIntersection reports whether the address reads as a road junction.
func IsIntersection(address string) bool {
	for _, re := range intersectionRules {
		if re.MatchString(address) {
			return true
		}
	}
	return strings.HasPrefix(strings.ToLower(address), "int")
}

// IsPOBox reports whether a canonical address is a post office box.
func IsPOBox(address string) bool {
	return strings.HasPrefix(address, "PO Box")
}

// ContainsStreetSuffix reports whether any token is a suffix, a direction or a
// street name that needs no suffix.
func (t *Tables) ContainsStreetSuffix(address string) bool {
	for _, token := range Tokenize(address) {
		lower := strings.ToLower(token)
		if suffixlessStreetNames[lower] || t.lowerStreetWords[lower] {
			return true
		}
	}
	return false
}

// FirstTokenIsStreetNumber reports whether the address starts with a number
// or a compass-letter street number.
func FirstTokenIsStreetNumber(address string) bool {
	tokens := Tokenize(address)
	if len(tokens) == 0 {
		return false
	}
	return IsNumeric(tokens[0]) || IsCoordinate(tokens[0])
}

// RemoveGarbageAfterSuffix truncates whatever follows the last suffix or
// direction token, e.g. "45 Slowpoke Lane Asdfwaf" -> "45 Slowpoke Lane".
func (t *Tables) RemoveGarbageAfterSuffix(address string) string {
	tokens := Tokenize(address)
	switch {
	case len(tokens) == 0:
		return address
	case t.hasGarbageOverride(tokens):
		return address
	case t.IsValidSuffix(tokens[len(tokens)-1]):
		return address
	case len(tokens) > 1 && t.IsDirection(tokens[1]):
		// no suffix but a direction, e.g. "123 South Alloy"
		return address
	}

	found := false
	for _, token := range tokens {
		if t.IsValidSuffix(token) || t.IsDirection(token) {
			found = true
			break
		}
	}
	if !found {
		return address
	}
	cut := 0
	for i, token := range tokens {
		if t.addressValues[token] {
			cut = i + 1
		}
	}
	if cut == 0 {
		return address
	}
	return Detokenize(tokens[:cut])
}

func (t *Tables) hasGarbageOverride(tokens []string) bool {
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if garbageOverrides[lower] || t.lowerSpanish[lower] {
			return true
		}
	}
	return false
}

// StreetCleaner restores ordinal street numbers that the dictionaries expanded,
// e.g. "22 Street Avenue" -> "22st Avenue" and "22 Nd Street" -> "22nd Street".
type StreetCleaner struct {
	rules []cleanRule
}

type cleanRule struct {
	re   *regexp.Regexp
	repl string
}

// NewStreetCleaner builds the ordinal rules for the given road names.
func NewStreetCleaner(roadNames []string) *StreetCleaner {
	quoted := make([]string, 0, len(roadNames))
	for _, name := range roadNames {
		quoted = append(quoted, regexp.QuoteMeta(name))
	}
	alt := strings.Join(quoted, "|")
	mk := func(word, suffix string) cleanRule {
		return cleanRule{
			re:   regexp.MustCompile(`(\d+) ` + word + ` (` + alt + `)`),
			repl: "${1}" + suffix + " ${2}",
		}
	}
	return &StreetCleaner{rules: []cleanRule{
		mk("Street", "st"),
		mk("Road", "rd"),
		mk("Th", "th"),
		mk("Nd", "nd"),
	}}
}

// Clean applies the ordinal rules in order.
func (c *StreetCleaner) Clean(street string) string {
	for _, rule := range c.rules {
		street = rule.re.ReplaceAllString(street, rule.repl)
	}
	return street
}
