package postal

import (
	"regexp"
	"strings"

	"github.com/m25mathews/rainger-poc/internal/normalize"
)

const unitID = `(?:\d[A-Za-z0-9-]*|[A-Za-z](?:-?\d[A-Za-z0-9-]*)?)`

var (
	stateZipPattern = regexp.MustCompile(`(?i)[\s,]+([A-Z]{2})[\s,]+(\d{5})(?:-\d{4})?\s*$`)
	zipPattern      = regexp.MustCompile(`[\s,]+(\d{5})(?:-\d{4})?\s*$`)
	houseNumPattern = regexp.MustCompile(`^\s*(\d+[A-Za-z]?)\b`)
	unitPattern     = regexp.MustCompile(`(?i)[\s,]+((?:apt|apartment|suite|ste|unit|bldg|building|dock|room|rm|floor|fl)\.?\s*#?\s*` + unitID + `|#\s*` + unitID + `)\s*$`)
)

// RegexParser is the pattern-based parser. Without commas the city is
// taken to be the words after the last street suffix.
type RegexParser struct {
	tables *normalize.Tables
}

func NewRegexParser(t *normalize.Tables) *RegexParser {
	return &RegexParser{tables: t}
}

func (p *RegexParser) Parse(address string) Components {
	c := Components{Method: "regex_fallback"}
	rest := strings.TrimSpace(address)
	if rest == "" {
		return c
	}

	if m := stateZipPattern.FindStringSubmatchIndex(rest); m != nil {
		c.State = strings.ToUpper(rest[m[2]:m[3]])
		c.Postcode = rest[m[4]:m[5]]
		rest = rest[:m[0]]
	} else if m := zipPattern.FindStringSubmatchIndex(rest); m != nil {
		c.Postcode = rest[m[2]:m[3]]
		rest = rest[:m[0]]
	}

	var street string
	if parts := splitCommas(rest); len(parts) > 1 {
		c.City = parts[len(parts)-1]
		street = strings.Join(parts[:len(parts)-1], " ")
	} else {
		street, c.City = p.splitCity(strings.Join(parts, " "))
	}

	if m := houseNumPattern.FindStringSubmatch(street); m != nil {
		c.HouseNumber = m[1]
		street = street[len(m[0]):]
	}
	street = " " + strings.TrimSpace(street)
	if m := unitPattern.FindStringSubmatchIndex(street); m != nil {
		c.Unit = strings.TrimSpace(street[m[2]:m[3]])
		street = street[:m[0]]
	}
	c.Road = strings.TrimSpace(street)
	return c
}

func splitCommas(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// splitCity cuts after the last street suffix, keeping a trailing
// direction or unit with the street. Without a suffix everything is street.
func (p *RegexParser) splitCity(s string) (street, city string) {
	words := strings.Fields(s)
	last := -1
	for i := 1; i < len(words); i++ {
		if p.isSuffix(words[i]) {
			last = i
		}
	}
	if last < 0 {
		return s, ""
	}
	cut := last + 1
	for cut < len(words)-1 {
		word := clean(words[cut])
		if p.isDirection(word) {
			cut++
			continue
		}
		if p.isUnitKeyword(word) && cut+2 < len(words) {
			cut += 2
			continue
		}
		break
	}
	return strings.Join(words[:cut], " "), strings.Join(words[cut:], " ")
}

func clean(word string) string {
	return strings.ToLower(strings.Trim(word, ".,#"))
}

func (p *RegexParser) isSuffix(word string) bool {
	if p.tables == nil {
		return false
	}
	lower := clean(word)
	if _, ok := p.tables.Suffix[lower]; ok {
		return true
	}
	return p.tables.IsSuffix(normalize.Capitalize(lower))
}

func (p *RegexParser) isDirection(word string) bool {
	if p.tables == nil {
		return false
	}
	_, ok := p.tables.Directions[word]
	return ok
}

func (p *RegexParser) isUnitKeyword(word string) bool {
	if p.tables == nil {
		return false
	}
	_, ok := p.tables.Sublocations[word]
	return ok
}
