package curate

import (
	"strings"

	"github.com/m25mathews/rainger-poc/internal/geocode"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// candidate is a location being assembled during Autocurate.
type candidate struct {
	street, city, state, zip string
	subloc                   string
	orgID, orgName           string
	marker                   string
	isIntersection           bool
	rawCount                 int
	dimIDs                   []string

	name     string
	geo      geocode.Result
	geocoded bool
}

type groupKey struct {
	street, city, state, zip, subloc, orgID, orgName string
}

func (c *candidate) groupKey() groupKey {
	return groupKey{c.street, c.city, c.state, c.zip, c.subloc, c.orgID, c.orgName}
}

// regroupKey adds everything that can differ after filtering and geocoding.
type regroupKey struct {
	groupKey
	name, marker string
	lat, lon     float64
	level        string
	accuracy     float64
	geocoded     bool
}

func (c *candidate) regroupKey() regroupKey {
	return regroupKey{
		groupKey: c.groupKey(),
		name:     c.name,
		marker:   c.marker,
		lat:      c.geo.Latitude,
		lon:      c.geo.Longitude,
		level:    c.geo.Level,
		accuracy: c.geo.Accuracy,
		geocoded: c.geocoded,
	}
}

// group merges rows sharing a key, in order of first appearance. The first
// non-empty marker and intersection flag win; raw counts add up and ids are
// concatenated.
func group[K comparable](rows []*candidate, key func(*candidate) K) []*candidate {
	index := make(map[K]*candidate)
	var out []*candidate
	for _, r := range rows {
		k := key(r)
		g, ok := index[k]
		if !ok {
			merged := *r
			merged.dimIDs = append([]string(nil), r.dimIDs...)
			index[k] = &merged
			out = append(out, &merged)
			continue
		}
		g.rawCount += r.rawCount
		g.dimIDs = append(g.dimIDs, r.dimIDs...)
		if g.marker == "" {
			g.marker = r.marker
		}
	}
	return out
}

// keep applies the plausibility filter: PO boxes, intersections (when
// allowed) and numbered streets with a suffix survive.
func keep(t *normalize.Tables, c *candidate, allowIntersections bool) bool {
	switch {
	case c.street == "":
		return false
	case normalize.IsPOBox(c.street):
		return true
	case allowIntersections && c.isIntersection:
		return true
	default:
		return t.ContainsStreetSuffix(c.street) && normalize.FirstTokenIsStreetNumber(c.street)
	}
}

func filter(t *normalize.Tables, rows []*candidate, allowIntersections bool) []*candidate {
	out := rows[:0]
	for _, r := range rows {
		if keep(t, r, allowIntersections) {
			out = append(out, r)
		}
	}
	return out
}

func (c *candidate) location() Location {
	loc := Location{
		Name:             c.name,
		Street:           c.street,
		Sublocation:      c.subloc,
		City:             c.city,
		State:            c.state,
		Zip5:             c.zip,
		Marker:           c.marker,
		OrganizationID:   c.orgID,
		OrganizationName: c.orgName,
		RawCount:         c.rawCount,
		DimensionIDs:     c.dimIDs,
	}
	if c.geocoded {
		loc.Latitude = c.geo.Latitude
		loc.Longitude = c.geo.Longitude
		loc.Accuracy = c.geo.Accuracy
		loc.Level = c.geo.Level
		loc.Geocoded = true
	}
	return loc
}

func joinName(parts ...string) string {
	return strings.TrimSpace(strings.Join(parts, " "))
}
