package normalize

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

//go:embed data/usps.json
var uspsJSON []byte

//go:embed data/usps_es.json
var uspsSpanishJSON []byte

// Tables holds the read-only dictionaries used by the normalizer. Build one
// with NewTables or share the process-wide instance from DefaultTables.
type Tables struct {
	IgnoredChars   []string
	IgnoredTokens  map[string]bool
	Sublocations   map[string]string
	Level2         map[string]bool
	OrdinalTokens  map[string]bool
	Directions     map[string]string
	USPS           map[string]string
	Additions      map[string]string
	Spanish        map[string]string
	SpanishExtra   map[string]string
	Suffix         map[string]string
	Address        map[string]string
	AddressSpanish map[string]string

	suffixValues    map[string]bool
	spanishValues   map[string]bool
	directionValues map[string]bool
	addressValues   map[string]bool
	sublocValues    map[string]bool

	// lower-case forms for case-insensitive checks
	lowerStreetWords map[string]bool
	lowerSpanish     map[string]bool

	cleaner *StreetCleaner
}

var (
	defaultTables     *Tables
	defaultTablesErr  error
	defaultTablesOnce sync.Once
)

// DefaultTables returns the tables built from the embedded USPS dictionaries.
// The result is built once and must not be modified.
func DefaultTables() *Tables {
	defaultTablesOnce.Do(func() {
		defaultTables, defaultTablesErr = NewTables(uspsJSON, uspsSpanishJSON)
	})
	if defaultTablesErr != nil {
		panic(defaultTablesErr)
	}
	return defaultTables
}

// NewTables builds the normalizer tables from USPS suffix JSON documents
// mapping lower-case abbreviations to full suffix names.
func NewTables(usps, spanish []byte) (*Tables, error) {
	t := &Tables{
		IgnoredChars: []string{"c/o", "C/O", ".", "-", ";", ",", "#", "@", ":", "/", `"`, "(", ")"},
		IgnoredTokens: set("receiving", "recv", "rec", "rcving", "amp"),
		Sublocations: map[string]string{
			"building":  "Building",
			"bldng":     "Building",
			"bldg":      "Building",
			"blding":    "Building",
			"bld":       "Building",
			"dock":      "Dock",
			"dk":        "Dock",
			"do":        "Dock",
			"doc":       "Dock",
			"gate":      "Gate",
			"gt":        "Gate",
			"facility":  "Facility",
			"warehouse": "Warehouse",
			"warhse":    "Warehouse",
			"whse":      "Warehouse",
			"unit":      "Unit",
			"door":      "Door",
			"plant":     "Plant",
			"plnt":      "Plant",
			"room":      "Room",
			"rm":        "Room",
			"apartment": "Apartment",
			"apt":       "Apartment",
			"suite":     "Suite",
			"ste":       "Suite",
			"gstore":    "Gstore",
		},
		Level2:        set("Dock", "Room", "Apartment", "Suite", "Gate", "Door"),
		OrdinalTokens: set("th", "nd", "st", "rd"),
		Directions: map[string]string{
			"n":         "North",
			"s":         "South",
			"e":         "East",
			"w":         "West",
			"ne":        "North East",
			"nw":        "North West",
			"se":        "South East",
			"sw":        "South West",
			"north":     "North",
			"south":     "South",
			"east":      "East",
			"west":      "West",
			"northeast": "North East",
			"northwest": "North West",
			"southeast": "South East",
			"southwest": "South West",
		},
		Additions: map[string]string{
			"rte":  "Route",
			"rt":   "Route",
			"dri":  "Drive",
			"d":    "Drive",
			"hw":   "Highway",
			"hyw":  "Highway",
			"ro":   "Road",
			"cr":   "County Road",
			"sr":   "State Road",
			"tpke": "Turnpike",
			"fm":   "Fm",
		},
		SpanishExtra: map[string]string{"nrte": "Norte"},
	}

	var err error
	if t.USPS, err = loadSuffixJSON(usps, "via"); err != nil {
		return nil, errors.Wrap(err, "load usps suffixes")
	}
	if t.Spanish, err = loadSuffixJSON(spanish); err != nil {
		return nil, errors.Wrap(err, "load spanish suffixes")
	}

	t.Suffix = merge(t.USPS, t.Additions)
	t.Address = merge(t.Suffix, t.Directions)
	t.AddressSpanish = merge(t.Spanish, t.SpanishExtra)

	t.suffixValues = values(t.Suffix)
	t.spanishValues = values(t.Spanish)
	t.directionValues = values(t.Directions)
	t.addressValues = values(t.Address)
	t.sublocValues = values(t.Sublocations)

	t.lowerSpanish = lowered(t.spanishValues)
	t.lowerStreetWords = lowered(t.suffixValues, t.spanishValues, t.directionValues)
	t.cleaner = NewStreetCleaner(t.SuffixValues())
	return t, nil
}

// CleanFinalStreet restores ordinals in a canonical street: "22 Nd Street" -> "22nd Street".
func (t *Tables) CleanFinalStreet(street string) string {
	return t.cleaner.Clean(street)
}

// IsSuffix reports whether token is a full English street suffix such as "Street".
func (t *Tables) IsSuffix(token string) bool { return t.suffixValues[token] }

// IsSpanishSuffix reports whether token is a full Spanish street suffix such as "Calle".
func (t *Tables) IsSpanishSuffix(token string) bool { return t.spanishValues[token] }

// IsDirection reports whether token is a full direction such as "North".
func (t *Tables) IsDirection(token string) bool { return t.directionValues[token] }

// IsAddressWord reports whether token is any full suffix or direction value.
func (t *Tables) IsAddressWord(token string) bool { return t.addressValues[token] }

// IsSublocationWord reports whether token is a full sub-location keyword such as "Building".
func (t *Tables) IsSublocationWord(token string) bool { return t.sublocValues[token] }

// IsValidSuffix covers English and Spanish suffixes.
func (t *Tables) IsValidSuffix(token string) bool {
	return t.suffixValues[token] || t.spanishValues[token]
}

// SuffixValues returns the distinct full USPS suffix names.
func (t *Tables) SuffixValues() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(t.USPS))
	for _, v := range t.USPS {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func loadSuffixJSON(data []byte, removed ...string) (map[string]string, error) {
	raw := make(map[string]string)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	skip := set(removed...)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.TrimSpace(k)
		if skip[k] {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func values(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for _, v := range m {
		out[v] = true
	}
	return out
}

func lowered(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			out[strings.ToLower(k)] = true
		}
	}
	return out
}

func set(items ...string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item] = true
	}
	return out
}
