// Package cluster groups nearby locations of one organization into parent
// sites.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/m25mathews/rainger-poc/internal/curate"
)

const (
	// EarthRadius is the mean earth radius in meters used for distances.
	EarthRadius = 6371007.2
	// SearchRadius is the linkage distance in meters.
	SearchRadius = 100.0
)

// Site is a synthetic parent location for two or more nearby locations.
type Site struct {
	curate.Location
	Cluster  int      `json:"cluster"`
	Children []string `json:"children"`
}

// Haversine returns the great-circle distance in meters between two
// lon/lat points.
func Haversine(p1, p2 orb.Point) float64 {
	lat1 := p1.Lat() * math.Pi / 180
	lat2 := p2.Lat() * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (p2.Lon() - p1.Lon()) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Cluster links locations of the same organization that lie closer than
// SearchRadius, directly or through a chain of such links, and returns one
// Site per group of two or more. Residential and non-geocoded locations
// take no part. Cluster numbers follow the order in which groups first
// appear in locs.
func Cluster(locs []curate.Location, newID func() string) []Site {
	var members []curate.Location
	for _, l := range locs {
		if l.IsResidential || !l.Geocoded {
			continue
		}
		members = append(members, l)
	}
	if len(members) < 2 {
		return nil
	}
	if newID == nil {
		newID = curate.NewID
	}

	points := make([]orb.Point, len(members))
	for i, l := range members {
		points[i] = orb.Point{l.Longitude, l.Latitude}
	}

	uf := newUnionFind(len(members))
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			if members[i].OrganizationID != members[j].OrganizationID {
				continue
			}
			if Haversine(points[i], points[j]) < SearchRadius {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range members {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	var sites []Site
	for ix, r := range roots {
		idx := groups[r]
		if len(idx) < 2 {
			continue
		}
		sites = append(sites, newSite(ix, members, points, idx, newID()))
	}
	return sites
}

func newSite(ix int, members []curate.Location, points []orb.Point, idx []int, id string) Site {
	pick := func(field func(curate.Location) string) string {
		values := make([]string, len(idx))
		for k, i := range idx {
			values[k] = field(members[i])
		}
		return mode(values)
	}
	street := pick(func(l curate.Location) string { return l.Street })
	city := pick(func(l curate.Location) string { return l.City })
	state := pick(func(l curate.Location) string { return l.State })
	zip := pick(func(l curate.Location) string { return l.Zip5 })
	orgID := pick(func(l curate.Location) string { return l.OrganizationID })
	orgName := pick(func(l curate.Location) string { return l.OrganizationName })

	mp := make(orb.MultiPoint, len(idx))
	children := make([]string, len(idx))
	for k, i := range idx {
		mp[k] = points[i]
		children[k] = members[i].ID
	}
	center, _ := planar.CentroidArea(mp)

	main := fmt.Sprintf("%s %s P%d", orgName, state, ix)
	return Site{
		Location: curate.Location{
			ID:               id,
			Name:             fmt.Sprintf("%s %s %s", main, street, city),
			MainName:         main,
			Street:           street,
			City:             city,
			State:            state,
			Zip5:             zip,
			OrganizationID:   orgID,
			OrganizationName: orgName,
			Latitude:         center.Lat(),
			Longitude:        center.Lon(),
			Geocoded:         true,
			IsSite:           true,
		},
		Cluster:  ix,
		Children: children,
	}
}

// mode returns the most frequent value; ties go to the smallest.
func mode(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
